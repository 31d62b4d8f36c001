package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Save pitch readings to a trace file.
 *
 *		Rather than dumping raw detector state, write
 *		separated properties into CSV format for easy reading
 *		and later processing (plotting a pitch contour,
 *		checking tracking against a reference, and so on).
 *
 *		There are two alternatives here.
 *
 *		An explicit file path: one trace file, appended to.
 *
 *		A directory: daily file names are created inside it,
 *		so a long-running tracker rolls its traces over at
 *		midnight.
 *
 *		Use one or the other but not both.
 *
 *----------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"
)

type PitchTrace struct {
	daily_names bool
	path        string // directory when daily_names, file otherwise

	open_name string // currently open file, for daily rollover
	fp        *os.File
	w         *csv.Writer
}

/*------------------------------------------------------------------
 *
 * Name:	NewPitchTrace
 *
 * Inputs:	dailyNames	- True if daily names should be generated.
 *				  In this case path is a directory.
 *				  When false, path is the file name.
 *
 *		path		- Trace file name or just directory.
 *				  Use "." for current directory.
 *
 *----------------------------------------------------------------*/

func NewPitchTrace(dailyNames bool, path string) *PitchTrace {
	var t = new(PitchTrace)

	t.daily_names = dailyNames
	t.path = path

	return t
}

func (t *PitchTrace) file_name(now time.Time) (string, error) {
	if !t.daily_names {
		return t.path, nil
	}

	var day, err = strftime.Format("%Y-%m-%d", now)
	if err != nil {
		return "", err
	}
	return filepath.Join(t.path, day+".pitch.csv"), nil
}

/*------------------------------------------------------------------
 *
 * Name:	PitchTrace.Write
 *
 * Purpose:	Append one reading.
 *
 * Inputs:	frame	- Sample index of the reading.
 *		info	- The fused estimate.
 *		f1, f2	- The branch readings that produced it, for
 *			  after-the-fact comparison.  Zero when a
 *			  branch had nothing to say.
 *
 *----------------------------------------------------------------*/

func (t *PitchTrace) Write(frame int, info PitchInfo, f1 float64, f2 float64) error {
	var now = time.Now()

	var name, nameErr = t.file_name(now)
	if nameErr != nil {
		return nameErr
	}

	// Roll over when the date (and hence name) changes.
	if t.fp != nil && name != t.open_name {
		t.Close()
	}

	if t.fp == nil {
		var exists = false
		if _, err := os.Stat(name); err == nil {
			exists = true
		}

		var fp, err = os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("could not open trace file %s: %w", name, err)
		}

		t.fp = fp
		t.w = csv.NewWriter(fp)
		t.open_name = name

		if !exists {
			if err := t.w.Write([]string{"time", "frame", "frequency", "periodicity", "snac", "bacf"}); err != nil {
				return err
			}
		}
	}

	var record = []string{
		now.Format(time.RFC3339),
		strconv.Itoa(frame),
		strconv.FormatFloat(info.Frequency, 'f', 3, 64),
		strconv.FormatFloat(info.Periodicity, 'f', 4, 64),
		strconv.FormatFloat(f1, 'f', 3, 64),
		strconv.FormatFloat(f2, 'f', 3, 64),
	}

	if err := t.w.Write(record); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *PitchTrace) Close() {
	if t.w != nil {
		t.w.Flush()
		t.w = nil
	}
	if t.fp != nil {
		t.fp.Close()
		t.fp = nil
	}
	t.open_name = ""
}
