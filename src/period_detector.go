package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Bitstream period detection.
 *
 *		The zero-crossing collector reduces the signal to
 *		rising-edge pulses.  Pulses whose peak clears a
 *		fraction of the window peak are painted into a bit
 *		stream, one bit per sample.  Candidate periods - the
 *		distances between strong edges - are then scored by
 *		bitstream autocorrelation: the Hamming distance
 *		between the window's first half and the stream at that
 *		lag.  A sub-harmonic arbiter decides which candidate
 *		is the fundamental rather than a harmonic.
 *
 *		This is the approach described by Joel de Guzman for
 *		the Q DSP library ("Fast and Efficient Pitch Detection:
 *		Bitstream Autocorrelation").
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

/* A pulse counts toward the bitstream if its peak reaches this
 * fraction of the window peak. */
const PULSE_THRESHOLD = 0.6

const HARMONIC_PERIODICITY_FACTOR = 16

/* Fraction of the window midpoint tolerated when deciding whether a
 * candidate is a rational subdivision of the first period. */
const PERIODICITY_DIFF_FACTOR = 0.25

type PeriodInfo struct {
	Period      float64
	Periodicity float64
}

type PeriodDetector struct {
	zc   *ZeroCrossingCollector
	bits *Bitset
	bacf *BACF

	sampleRate  float64
	lowestFreq  float64
	highestFreq float64

	min_period                 float64
	pd_range                   int // highest/lowest: harmonic search bound
	weight                     float64
	mid_point                  int
	periodicity_diff_threshold float64

	predicted_period float64
	edge_mark        int
	predict_edge     int
	num_pulses       int
	half_empty       bool

	fundamental PeriodInfo
}

func NewPeriodDetector(lowestFreq float64, highestFreq float64, hysteresisDB float64, sampleRate float64) *PeriodDetector {
	var p = new(PeriodDetector)

	p.sampleRate = sampleRate
	p.lowestFreq = lowestFreq
	p.highestFreq = highestFreq

	p.zc = NewZeroCrossingCollector(int((1.0/lowestFreq)*sampleRate*2.0), hysteresisDB)
	p.derive()

	p.predicted_period = -1.0

	return p
}

// Everything downstream of the window size.
func (p *PeriodDetector) derive() {
	p.min_period = (1.0 / p.highestFreq) * p.sampleRate
	p.pd_range = int(p.highestFreq / p.lowestFreq)

	var windowSize = p.zc.WindowSize()
	p.bits = NewBitset(windowSize)
	p.weight = 2.0 / float64(windowSize)
	p.mid_point = windowSize / 2
	p.periodicity_diff_threshold = float64(p.mid_point) * PERIODICITY_DIFF_FACTOR

	p.bacf = NewBACF(p.bits)
}

/*------------------------------------------------------------------
 *
 * Name:	PeriodDetector.Tick
 *
 * Purpose:	Advance by one sample.
 *
 * Returns:	true when a full analysis window was just processed
 *		and the fundamental has been updated.
 *
 *----------------------------------------------------------------*/

func (p *PeriodDetector) Tick(s float64) bool {
	// Zero crossing
	var prev = p.zc.GetState()
	var zc = p.zc.Tick(s)

	if !zc && prev != zc {
		p.edge_mark++
		p.predicted_period = -1.0
	}

	if p.zc.IsReset() {
		p.fundamental.Period = -1.0
		p.fundamental.Periodicity = 0.0
	}

	if p.zc.IsReady() {
		p.set_bitstream()
		p.autocorrelate()
		return true
	}
	return false
}

func (p *PeriodDetector) GetPeriod() float64 {
	return p.fundamental.Period
}

func (p *PeriodDetector) GetPeriodicity() float64 {
	return p.fundamental.Periodicity
}

func (p *PeriodDetector) Fundamental() PeriodInfo {
	return p.fundamental
}

// Harmonic returns the periodicity the bitstream shows at an integer
// division of the current fundamental period.
func (p *PeriodDetector) Harmonic(harmonicIndex int) float64 {
	if harmonicIndex > 0 {
		if harmonicIndex == 1 {
			return p.fundamental.Periodicity
		}

		var target_period = p.fundamental.Period / float64(harmonicIndex)
		if target_period >= p.min_period && target_period < float64(p.mid_point) {
			var count = p.bacf.GetCorrelation(int(math.Round(target_period)))
			return 1.0 - float64(count)*p.weight
		}
	}
	return 0.0
}

/*------------------------------------------------------------------
 *
 * Name:	PeriodDetector.PredictPeriod
 *
 * Purpose:	Cheap period estimate between analysis windows: the
 *		fractional distance between the two most recent edges
 *		whose peaks clear the pulse threshold.
 *
 *		Memoized per falling edge so repeated calls between
 *		edges don't rescan.
 *
 *----------------------------------------------------------------*/

func (p *PeriodDetector) PredictPeriod() float64 {
	if p.predicted_period == -1.0 && p.edge_mark != p.predict_edge {
		p.predict_edge = p.edge_mark
		var n = p.zc.NumEdges()
		if n > 1 {
			var threshold = p.zc.GetPeak() * PULSE_THRESHOLD
			for i := n - 1; i > 0; i-- {
				var edge2 = p.zc.GetCrossing(i)
				if edge2.peak >= threshold {
					for j := i - 1; j >= 0; j-- {
						var edge1 = p.zc.GetCrossing(j)
						if edge1.peak >= threshold {
							var period = edge1.FractionalPeriod(edge2)
							if period > p.min_period {
								p.predicted_period = period
								return p.predicted_period
							}
						}
					}
					p.predicted_period = -1.0
					return p.predicted_period
				}
			}
		}
	}
	return p.predicted_period
}

func (p *PeriodDetector) IsReady() bool {
	return p.zc.IsReady()
}

func (p *PeriodDetector) IsReset() bool {
	return p.zc.IsReset()
}

func (p *PeriodDetector) NumPulses() int {
	return p.num_pulses
}

func (p *PeriodDetector) ZC() *ZeroCrossingCollector {
	return p.zc
}

func (p *PeriodDetector) SetHysteresis(hysteresisDB float64) {
	p.zc.SetHysteresis(hysteresisDB)
}

// SetSampleRate rebuilds the window-sized state; the hysteresis
// setting carries over.
func (p *PeriodDetector) SetSampleRate(sr float64) {
	var hysteresis = p.zc.Hysteresis()

	p.sampleRate = sr
	p.zc = NewZeroCrossingCollector(int((1.0/p.lowestFreq)*sr*2.0), 0)
	p.zc.hysteresis = hysteresis
	p.derive()
}

/*------------------------------------------------------------------
 *
 * Name:	PeriodDetector.set_bitstream
 *
 * Purpose:	Paint qualifying pulses into the bitstream and note
 *		whether the strong pulses only cover half the window.
 *
 *----------------------------------------------------------------*/

func (p *PeriodDetector) set_bitstream() {
	var threshold = p.zc.GetPeak() * PULSE_THRESHOLD
	var leading_edge = p.zc.WindowSize()
	var trailing_edge = 0

	p.num_pulses = 0
	p.bits.Clear()

	for i := 0; i != p.zc.NumEdges(); i++ {
		var info = p.zc.GetCrossing(i)
		if info.peak >= threshold {
			p.num_pulses++
			if info.leading_edge >= 0 && info.leading_edge < leading_edge {
				leading_edge = info.leading_edge
			}
			if info.trailing_edge > trailing_edge {
				trailing_edge = info.trailing_edge
			}
			var pos = info.leading_edge
			if pos < 0 {
				pos = 0
			}
			var n = info.trailing_edge - pos
			p.bits.SetMultiple(pos, n, true)
		}
	}
	p.half_empty = leading_edge > p.mid_point || trailing_edge < p.mid_point
}

/*------------------------------------------------------------------
 *
 * Name:	PeriodDetector.autocorrelate
 *
 * Purpose:	Score candidate periods between strong edge pairs and
 *		commit the arbiter's fundamental.
 *
 * Description:	Pairs are visited chronologically; once a pair spans
 *		more than half the window every later pair with the
 *		same first edge does too, so the inner loop breaks.
 *		Low resolution periods (under 32 samples) hill climb
 *		to the neighbouring lag with the lowest count.  A zero
 *		count at both the period and its half marks a false
 *		doubled period and abandons the frame; a zero count
 *		alone is perfect correlation and ends the scan.
 *
 *----------------------------------------------------------------*/

func (p *PeriodDetector) autocorrelate() {
	var threshold = p.zc.GetPeak() * PULSE_THRESHOLD

	var collect sub_collector
	collect.init(p.zc, p.periodicity_diff_threshold, p.pd_range)

	if p.half_empty || p.num_pulses < 2 {
		p.fundamental.Periodicity = -1.0
		return
	}

	var shouldBreak = false
	var n = p.zc.NumEdges()
	for i := 0; i != n-1; i++ {
		var curr = p.zc.GetCrossing(i)
		if curr.peak < threshold {
			continue
		}
		for j := i + 1; j != n; j++ {
			var next = p.zc.GetCrossing(j)
			if next.peak < threshold {
				continue
			}

			var period = curr.Period(next)
			if period > p.mid_point {
				break
			}
			if float64(period) < p.min_period {
				continue
			}

			var count = p.bacf.GetCorrelation(period)
			var mid = p.bacf.mid_array * BITSET_VALUE_SIZE
			var start = period

			if collect.fundamental.period == -1 && count == 0 {
				// A zero count on the very first candidate may
				// be a doubled period; check the half.
				if p.bacf.GetCorrelation(period/2) == 0 {
					count = -1
				}
			} else if period < 32 { // Search minimum if the resolution is low
				// Search upwards for the minimum autocorrelation count
				for d := start + 1; d < mid; d++ {
					var c = p.bacf.GetCorrelation(d)
					if c > count {
						break
					}
					count = c
					period = d
				}
				// Search downwards for the minimum autocorrelation count
				for d := start - 1; float64(d) > p.min_period; d-- {
					var c = p.bacf.GetCorrelation(d)
					if c > count {
						break
					}
					count = c
					period = d
				}
			}

			if count == -1 {
				shouldBreak = true
				break // Return early if we have false correlation
			}

			var periodicity = 1.0 - float64(count)*p.weight
			collect.process(auto_correlation_info{i1: i, i2: j, period: period, periodicity: periodicity})
			if count == 0 {
				shouldBreak = true
				break // Return early if we have perfect correlation
			}
		}
		if shouldBreak {
			break
		}
	}

	// Get the final results
	collect.get(collect.fundamental, &p.fundamental)
}

/******************************************************************************/
/*                        Sub-harmonic arbitration                            */
/******************************************************************************/

type auto_correlation_info struct {
	i1          int
	i2          int
	period      int
	periodicity float64
	harmonic    int
}

/*------------------------------------------------------------------
 *
 * Purpose:	Decide which autocorrelation candidate is the true
 *		fundamental rather than a harmonic.
 *
 *		The first accepted candidate sets the reference
 *		period.  Later candidates that are rational multiples
 *		of it are treated as sub-harmonics: they only displace
 *		the fundamental when their periodicity is genuinely
 *		better, and only take over as a new harmonic index
 *		when the improvement is within the harmonic threshold
 *		(otherwise they replace the reference outright).
 *
 *----------------------------------------------------------------*/

type sub_collector struct {
	zc *ZeroCrossingCollector

	first_period               float64
	fundamental                auto_correlation_info
	harmonic_threshold         float64
	periodicity_diff_threshold float64
	sc_range                   int
}

func (c *sub_collector) init(crossings *ZeroCrossingCollector, pdt float64, r int) {
	c.zc = crossings
	c.harmonic_threshold = HARMONIC_PERIODICITY_FACTOR * 2.0 / float64(crossings.WindowSize())
	c.periodicity_diff_threshold = pdt
	c.sc_range = r
	c.fundamental.i1 = -1
	c.fundamental.i2 = -1
	c.fundamental.period = -1
	c.fundamental.periodicity = 0.0
	c.fundamental.harmonic = 0
	c.first_period = 0.01
}

func (c *sub_collector) period_of(info auto_correlation_info) float64 {
	var first = c.zc.GetCrossing(info.i1)
	var next = c.zc.GetCrossing(info.i2)
	return first.FractionalPeriod(next)
}

func (c *sub_collector) save(info auto_correlation_info) {
	c.fundamental = info
	c.fundamental.harmonic = 1
	c.first_period = c.period_of(c.fundamental)
}

func (c *sub_collector) try_sub_harmonic(harmonic int, info auto_correlation_info, incoming_period float64) bool {
	if math.Abs(incoming_period-c.first_period) < c.periodicity_diff_threshold {
		// If incoming is a different harmonic and has better
		// periodicity ...
		if info.periodicity > c.fundamental.periodicity &&
			harmonic != c.fundamental.harmonic {
			var periodicity_diff = math.Abs(info.periodicity - c.fundamental.periodicity)

			if periodicity_diff <= c.harmonic_threshold {
				// Within the harmonic periodicity threshold:
				// upgrade the fundamental in place and note the
				// harmonic for later.
				c.fundamental.i1 = info.i1
				c.fundamental.i2 = info.i2
				c.fundamental.periodicity = info.periodicity
				c.fundamental.harmonic = harmonic
			} else {
				// Otherwise incoming replaces the current
				// fundamental.
				c.save(info)
			}
		}
		return true
	}
	return false
}

func (c *sub_collector) process_harmonics(info auto_correlation_info) bool {
	if float64(info.period) < c.first_period {
		return false
	}

	var incoming_period = c.period_of(info)
	var multiple = int(math.Max(1.0, math.Round(incoming_period/c.first_period)))
	var harmonic = multiple
	if harmonic > c.sc_range {
		harmonic = c.sc_range
	}
	return c.try_sub_harmonic(harmonic, info, incoming_period/float64(multiple))
}

func (c *sub_collector) process(info auto_correlation_info) {
	if c.fundamental.period == -1 {
		c.save(info)
	} else if c.process_harmonics(info) {
		return
	} else if info.periodicity > c.fundamental.periodicity {
		c.save(info)
	}
}

func (c *sub_collector) get(info auto_correlation_info, result *PeriodInfo) {
	if info.period != -1 {
		result.Period = c.period_of(info) / float64(info.harmonic)
		result.Periodicity = info.periodicity
	} else {
		// Unvoiced sentinel.
		result.Period = -1.0
		result.Periodicity = 0.0
	}
}
