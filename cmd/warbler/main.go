package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the live pitch tracker.
 *
 *		Captures from the default input device and reports
 *		the detected fundamental as it changes.
 *
 *---------------------------------------------------------------*/

import (
	warbler "github.com/doismellburning/warbler/src"
)

func main() {
	warbler.TrackerMain()
}
