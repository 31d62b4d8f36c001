// Package warbler is a real-time pitch and periodicity analysis library.
//
// Everything here operates one audio sample at a time.  A detector is
// created once, fed samples through Tick, and queried for its current
// estimate.  Nothing allocates after initialization and nothing spawns
// goroutines; any threading is the caller's concern.
package warbler

import (
	"fmt"
	"math"
)

/*
 * Default analysis sample rate, used when the caller doesn't say otherwise.
 * Everything is parameterized on the actual rate; this is just a
 * convenient default for the commands and tests.
 */

const DEFAULT_SAMPLE_RATE = 48000

func Assert(cond bool) {
	if !cond {
		panic("assertion failed")
	}
}

// Assertf is Assert with an explanation for the stack trace.
func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic(fmt.Sprintf(format, a...))
	}
}

/*------------------------------------------------------------------
 *
 * Purpose:	Small math helpers shared by the analysis code.
 *
 *		The dB conversions follow the usual audio conventions:
 *		dbtoa is a plain 20 dB/decade amplitude conversion,
 *		powtodb maps power onto a 0..100 dB scale with 100 dB
 *		corresponding to full scale, clamped at 0 at the bottom.
 *
 *----------------------------------------------------------------*/

const LOGTEN = 2.302585092994046

func dbtoa(db float64) float64 {
	return math.Pow(10.0, db*0.05)
}

func powtodb(f float64) float64 {
	if f <= 0 {
		return 0
	}
	var val = 100 + 10.0/LOGTEN*math.Log(f)
	if val < 0 {
		return 0
	}
	return val
}

func clipf(minimum float64, val float64, maximum float64) float64 {
	if val < minimum {
		return minimum
	}
	if val > maximum {
		return maximum
	}
	return val
}

/*------------------------------------------------------------------
 *
 * Purpose:	Three-point parabolic interpolation around a local
 *		peak of a sampled function.
 *
 *		interpolate3max returns the estimated height of the
 *		true peak; interpolate3phase returns its fractional
 *		offset from the integer peak index, in -0.5 .. 0.5.
 *
 * Inputs:	buf		- Sampled function.
 *		peakindex	- Index of the local maximum.  Must have
 *				  a valid neighbour on each side.
 *
 *----------------------------------------------------------------*/

func interpolate3max(buf []float64, peakindex int) float64 {
	var a = buf[peakindex-1]
	var b = buf[peakindex]
	var c = buf[peakindex+1]

	return b + 0.5*(0.5*((c-a)*(c-a)))/(2.0*b-a-c)
}

func interpolate3phase(buf []float64, peakindex int) float64 {
	var a = buf[peakindex-1]
	var b = buf[peakindex]
	var c = buf[peakindex+1]

	return (0.5 * (c - a)) / (2.0*b - a - c)
}

// Round up to the next power of two.  Sizes of the internal rings are
// kept as powers of two so wrapping is a mask, not a modulo; some index
// arithmetic below goes negative and relies on masking, not %.
func next_power_of_2(n int) int {
	var p = 1
	for p < n {
		p <<= 1
	}
	return p
}
