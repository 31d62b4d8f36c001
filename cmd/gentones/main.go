package main

import (
	warbler "github.com/doismellburning/warbler/src"
)

func main() {
	warbler.GenTonesMain()
}
