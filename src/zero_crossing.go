package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Zero-crossing collection with hysteresis.
 *
 *		The collector watches the incoming signal for rising
 *		zero crossings and records one ZeroCrossingInfo per
 *		crossing: where it happened, the peak that followed,
 *		and the samples either side of the crossing so a
 *		sub-sample crossing time can be interpolated later.
 *
 *		Edges are collected over a sliding analysis window.
 *		When a full window has gone by and the signal is in
 *		the low state, the collector flags ready; the period
 *		detector then reads the edges out and the window
 *		scrolls back by half its length.
 *
 * Hysteresis:	The low -> high transition fires on any sample above
 *		zero, but high -> low waits for the signal to drop
 *		below a (negative) lower arm.  The input is offset by
 *		half the hysteresis so the detected crossing stays
 *		centered on the actual zero.
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

const UNINITIALIZED_EDGE = math.MinInt32

type ZeroCrossingInfo struct {
	before_crossing float64
	after_crossing  float64
	peak            float64
	leading_edge    int
	trailing_edge   int
	width           float64
}

func (z *ZeroCrossingInfo) update_peak(s float64, pos int) {
	z.peak = math.Max(s, z.peak)
	if z.width == 0.0 && s < z.peak*0.3 {
		z.width = float64(pos - z.leading_edge)
	}
}

// Period returns the whole-sample distance between two rising edges.
func (z *ZeroCrossingInfo) Period(next *ZeroCrossingInfo) int {
	return next.leading_edge - z.leading_edge
}

/*------------------------------------------------------------------
 *
 * Name:	ZeroCrossingInfo.FractionalPeriod
 *
 * Purpose:	Distance between two rising edges including the
 *		sub-sample positions of the two crossings.
 *
 * Description:	Each crossing is located by linear interpolation
 *		between the sample before and the sample after it.
 *
 *----------------------------------------------------------------*/

func (z *ZeroCrossingInfo) FractionalPeriod(next *ZeroCrossingInfo) float64 {
	// Sub-sample position of the start edge
	var dy1 = z.after_crossing - z.before_crossing
	var dx1 = -z.before_crossing / dy1

	// Sub-sample position of the next edge
	var dy2 = next.after_crossing - next.before_crossing
	var dx2 = -next.before_crossing / dy2

	var result = float64(next.leading_edge - z.leading_edge)
	return result + (dx2 - dx1)
}

func (z *ZeroCrossingInfo) Peak() float64 {
	return z.peak
}

func (z *ZeroCrossingInfo) LeadingEdge() int {
	return z.leading_edge
}

func (z *ZeroCrossingInfo) TrailingEdge() int {
	return z.trailing_edge
}

func (z *ZeroCrossingInfo) Width() int {
	return int(z.width)
}

type ZeroCrossingCollector struct {
	info        []ZeroCrossingInfo
	pos         int
	mask        int
	prev        float64
	hysteresis  float64 // linear amplitude, negative: the lower arm
	state       bool
	num_edges   int
	window_size int
	frame       int
	ready       bool
	peak_update float64
	peak        float64
}

/*------------------------------------------------------------------
 *
 * Name:	NewZeroCrossingCollector
 *
 * Inputs:	windowSize	- Analysis window in samples.  Rounded up
 *				  to a whole number of bitset words so the
 *				  period detector's bitstream covers it
 *				  exactly.
 *
 *		hysteresisDB	- Hysteresis in dB, e.g. -120 for clean
 *				  synthetic signals, -60 or higher for
 *				  noisy ones.
 *
 *----------------------------------------------------------------*/

func NewZeroCrossingCollector(windowSize int, hysteresisDB float64) *ZeroCrossingCollector {
	var z = new(ZeroCrossingCollector)

	z.hysteresis = -dbtoa(hysteresisDB)

	var words = (windowSize + BITSET_VALUE_SIZE - 1) / BITSET_VALUE_SIZE
	if words < 2 {
		words = 2
	}
	z.window_size = words * BITSET_VALUE_SIZE

	var size = next_power_of_2(z.window_size / 2)
	z.info = make([]ZeroCrossingInfo, size)
	z.mask = size - 1

	for i := range z.info {
		z.info[i].leading_edge = UNINITIALIZED_EDGE
		z.info[i].trailing_edge = UNINITIALIZED_EDGE
	}

	return z
}

/*------------------------------------------------------------------
 *
 * Name:	ZeroCrossingCollector.Tick
 *
 * Purpose:	Advance the collector by one sample.
 *
 * Returns:	The current state: true while the signal is in the
 *		high (post-rising-edge) phase.
 *
 * Description:	One full pass of the per-sample state machine:
 *		overflow and silence resets, drain-after-ready
 *		bookkeeping, the edge state update, then the window
 *		boundary handling.  Ready is only raised at a window
 *		boundary with the signal low and at least two edges
 *		collected.
 *
 *----------------------------------------------------------------*/

func (z *ZeroCrossingCollector) Tick(s float64) bool {
	// Offset by half the hysteresis so detection is centered on the
	// actual zero.
	s += z.hysteresis * 0.5

	if z.num_edges >= len(z.info) {
		z.reset()
	}

	if z.frame == z.window_size/2 && z.num_edges == 0 {
		z.reset()
	}

	z.update_state(s)

	z.frame++
	if z.frame >= z.window_size && !z.state {
		// Drop back by half a window so collection continues
		// seamlessly.
		z.frame -= z.window_size / 2

		// We need at least two rising edges.
		if z.num_edges > 1 {
			z.ready = true
		} else {
			z.reset()
		}
	}

	return z.state
}

func (z *ZeroCrossingCollector) update_state(s float64) {
	if z.ready {
		z.shift(z.window_size / 2)
		z.ready = false
		z.peak = z.peak_update
		z.peak_update = 0.0
	}

	if z.num_edges >= len(z.info) {
		z.reset()
	}

	if s > 0.0 {
		if !z.state {
			// New rising edge.  The ring fills downward from
			// high indices, so the newest edge is at pos.
			z.pos--
			z.pos &= z.mask
			var crossing = &z.info[z.pos]
			crossing.before_crossing = z.prev
			crossing.after_crossing = s
			crossing.peak = s
			crossing.leading_edge = z.frame
			crossing.trailing_edge = UNINITIALIZED_EDGE
			crossing.width = 0.0
			z.num_edges++
			z.state = true
		} else {
			z.info[z.pos].update_peak(s, z.frame)
		}
		if s > z.peak_update {
			z.peak_update = s
		}
	} else if z.state && s < z.hysteresis {
		z.state = false
		z.info[z.pos].trailing_edge = z.frame
		if z.peak == 0.0 {
			z.peak = z.peak_update
		}
	}

	// Runaway guard against callers that never drain.
	if z.frame > z.window_size*2 {
		z.reset()
	}

	z.prev = s
}

// Scroll all edges back by n samples.  Edges whose trailing edge goes
// negative have left the window and are dropped.  The still-open edge
// (signal currently high) keeps its unfinished trailing edge.
func (z *ZeroCrossingCollector) shift(n int) {
	var crossing = &z.info[z.pos]

	crossing.leading_edge -= n
	if !z.state {
		crossing.trailing_edge -= n
	}

	var i = 1
	for ; i != z.num_edges; i++ {
		var idx = (z.pos + i) & z.mask
		z.info[idx].leading_edge -= n
		z.info[idx].trailing_edge -= n
		if z.info[idx].trailing_edge < 0 {
			break
		}
	}
	z.num_edges = i
}

func (z *ZeroCrossingCollector) reset() {
	z.num_edges = 0
	z.state = false
	z.frame = 0
}

func (z *ZeroCrossingCollector) GetState() bool {
	return z.state
}

// GetCrossing returns the index-th edge in chronological order:
// index 0 is the earliest edge still in the window, NumEdges()-1 the
// most recent.
func (z *ZeroCrossingCollector) GetCrossing(index int) *ZeroCrossingInfo {
	var i = (z.num_edges - 1) - index
	return &z.info[(z.pos+i)&z.mask]
}

func (z *ZeroCrossingCollector) NumEdges() int {
	return z.num_edges
}

func (z *ZeroCrossingCollector) Capacity() int {
	return len(z.info)
}

func (z *ZeroCrossingCollector) Frame() int {
	return z.frame
}

func (z *ZeroCrossingCollector) WindowSize() int {
	return z.window_size
}

func (z *ZeroCrossingCollector) IsReady() bool {
	return z.ready
}

// Peak of the signal over the current window.  Double buffered: until
// the halfway shift, readers see the peak of the previous half.
func (z *ZeroCrossingCollector) GetPeak() float64 {
	return math.Max(z.peak, z.peak_update)
}

func (z *ZeroCrossingCollector) IsReset() bool {
	return z.frame == 0
}

func (z *ZeroCrossingCollector) SetHysteresis(hysteresisDB float64) {
	z.hysteresis = -dbtoa(hysteresisDB)
}

func (z *ZeroCrossingCollector) Hysteresis() float64 {
	return z.hysteresis
}
