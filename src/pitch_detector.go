package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Frequency estimation over the bitstream period
 *		detector, with onset gating and bias merging.
 *
 *		A fresh detector only latches on when the window's
 *		periodicity clears the onset threshold.  Once locked,
 *		incoming estimates within a quarter semitone replace
 *		the current reading directly; estimates that are an
 *		integer multiple or division away are folded back onto
 *		the current frequency; anything else is a potential
 *		note change and has to clear the onset threshold again
 *		before it is committed.
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

/* Periodicity needed to latch a brand-new frequency. */
const ONSET_PERIODICITY = 0.95

/* Periodicity a reading away from the current frequency must exceed to
 * count as a possible note change; below it the current frequency is
 * kept. */
const MIN_PERIODICITY = 0.9

type PitchInfo struct {
	Frequency   float64
	Periodicity float64
}

type PitchDetector struct {
	pd *PeriodDetector

	sampleRate         float64
	current            PitchInfo
	frames_after_shift int
}

func NewPitchDetector(lowestFreq float64, highestFreq float64, sampleRate float64) *PitchDetector {
	var p = new(PitchDetector)

	p.pd = NewPeriodDetector(lowestFreq, highestFreq, -120.0, sampleRate)
	p.sampleRate = sampleRate

	return p
}

/*------------------------------------------------------------------
 *
 * Name:	PitchDetector.Tick
 *
 * Returns:	true when the underlying period detector completed a
 *		window this sample (whether or not the frequency
 *		estimate changed).
 *
 *----------------------------------------------------------------*/

func (p *PitchDetector) Tick(s float64) bool {
	p.pd.Tick(s)

	if p.pd.IsReset() {
		p.current.Frequency = 0.0
		p.current.Periodicity = 0.0
	}

	var ready = p.pd.IsReady()
	if ready {
		var periodicity = p.pd.fundamental.Periodicity

		if periodicity == -1.0 {
			// Unvoiced window.
			p.current.Frequency = 0.0
			p.current.Periodicity = 0.0
			return ready
		}

		if p.current.Frequency == 0.0 {
			// Not locked yet: only accept a confident reading.
			if periodicity >= ONSET_PERIODICITY {
				var f = p.calculate_frequency()
				if f > 0.0 {
					p.current.Frequency = f
					p.current.Periodicity = periodicity
					p.frames_after_shift = 0
				}
			}
		} else {
			if periodicity < MIN_PERIODICITY {
				p.frames_after_shift = 0
			}
			var f = p.calculate_frequency()
			if f > 0.0 {
				p.bias(PitchInfo{Frequency: f, Periodicity: periodicity})
			}
		}
	}
	return ready
}

func (p *PitchDetector) GetFrequency() float64 {
	return p.current.Frequency
}

func (p *PitchDetector) GetPeriodicity() float64 {
	return p.current.Periodicity
}

func (p *PitchDetector) Current() PitchInfo {
	return p.current
}

func (p *PitchDetector) FramesAfterShift() int {
	return p.frames_after_shift
}

func (p *PitchDetector) Harmonic(harmonicIndex int) float64 {
	return p.pd.Harmonic(harmonicIndex)
}

// PredictFrequency converts the period detector's cheap inter-window
// prediction to Hz, or 0 if there is none.
func (p *PitchDetector) PredictFrequency() float64 {
	var period = p.pd.PredictPeriod()
	if period > 0.0 {
		return p.sampleRate / period
	}
	return 0.0
}

// Indeterminate reports whether no frequency is currently latched.
func (p *PitchDetector) Indeterminate() bool {
	return p.current.Frequency == 0.0
}

func (p *PitchDetector) PeriodDetector() *PeriodDetector {
	return p.pd
}

func (p *PitchDetector) SetHysteresis(hysteresisDB float64) {
	p.pd.SetHysteresis(hysteresisDB)
}

func (p *PitchDetector) SetSampleRate(sr float64) {
	p.sampleRate = sr
	p.pd.SetSampleRate(sr)
}

func (p *PitchDetector) calculate_frequency() float64 {
	var period = p.pd.fundamental.Period
	if period > 0.0 {
		return p.sampleRate / period
	}
	return 0.0
}

/*------------------------------------------------------------------
 *
 * Name:	PitchDetector.bias
 *
 * Purpose:	Merge an incoming estimate into the current one.
 *
 * Description:	error is a quarter semitone of the current frequency.
 *		In order: accept within error; fold harmonics and
 *		sub-harmonics back onto the current frequency once the
 *		reading has been stable for at least two frames; else
 *		treat as a potential shift, which requires the window
 *		periodicity to beat MIN_PERIODICITY and only commits
 *		once it reaches ONSET_PERIODICITY.
 *
 *----------------------------------------------------------------*/

func (p *PitchDetector) bias(incoming PitchInfo) {
	p.frames_after_shift++
	var shifted = false

	var result PitchInfo

	var errlimit = p.current.Frequency * 0.015625 // approx 1/4 semitone
	var diff = math.Abs(p.current.Frequency - incoming.Frequency)
	var done = false

	// Try fundamental
	if diff < errlimit {
		result = incoming
		done = true
	} else if p.frames_after_shift > 1 {
		// Try harmonics and sub-harmonics
		if p.current.Frequency > incoming.Frequency {
			var multiple = int(math.Round(p.current.Frequency / incoming.Frequency))
			if multiple > 1 {
				var f = incoming.Frequency * float64(multiple)
				if math.Abs(p.current.Frequency-f) < errlimit {
					result.Frequency = f
					result.Periodicity = incoming.Periodicity
					done = true
				}
			}
		} else {
			var multiple = int(math.Round(incoming.Frequency / p.current.Frequency))
			if multiple > 1 {
				var f = incoming.Frequency / float64(multiple)
				if math.Abs(p.current.Frequency-f) < errlimit {
					result.Frequency = f
					result.Periodicity = incoming.Periodicity
					done = true
				}
			}
		}
	}

	// Don't do anything if the latest autocorrelation is not periodic
	// enough.  Note that we only do this check on frequency shifts
	// (i.e. at this point we are looking at a potential shift, after
	// checking for fundamental and harmonic matches above).
	if !done {
		if p.pd.fundamental.Periodicity > MIN_PERIODICITY {
			// Now we have a frequency shift
			shifted = true
			result = incoming
		} else {
			result = p.current
		}
	}

	if shifted {
		var periodicity = p.pd.fundamental.Periodicity
		if periodicity >= ONSET_PERIODICITY {
			p.frames_after_shift = 0
			p.current = result
		} else if periodicity < MIN_PERIODICITY {
			p.current.Frequency = 0.0
			p.current.Periodicity = 0.0
		}
	} else {
		p.current = result
	}
}
