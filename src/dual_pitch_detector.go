package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Fusion of the two pitch estimators.
 *
 *		The FFT branch (SNAC) and the bitstream branch (BACF)
 *		run on the same samples.  Each time the bitstream
 *		branch completes a window, their readings are
 *		arbitrated around a slow running mean: agreement goes
 *		to the bitstream reading, small moves win over large
 *		ones, low-fidelity SNAC readings are rejected, and
 *		matched rises or falls are checked for octave jumps.
 *		Ambiguous frames leave the estimate alone.
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

type DualPitchDetector struct {
	pd1 *PeriodDetection // FFT branch
	pd2 *PitchDetector   // bitstream branch

	sampleRate float64
	current    PitchInfo
	mean       float64
	first      bool

	fidelity_thresh    float64 // minimum SNAC fidelity to accept a change
	periodicity_thresh float64 // minimum bitstream periodicity on rise/fall

	lowest  float64
	highest float64

	predicted_frequency float64
}

/*------------------------------------------------------------------
 *
 * Name:	NewDualPitchDetector
 *
 * Inputs:	lowestFreq, highestFreq	- Tracking range in Hz.  Sets
 *			the bitstream window (two periods of the lowest
 *			frequency) and the harmonic search range.
 *
 *		bufSize	- FFT branch buffer; one SNAC block is half of
 *			this.
 *
 *----------------------------------------------------------------*/

func NewDualPitchDetector(lowestFreq float64, highestFreq float64, bufSize int, sampleRate float64) *DualPitchDetector {
	var p = new(DualPitchDetector)

	p.pd1 = NewPeriodDetection(bufSize, bufSize/2, sampleRate)
	p.pd2 = NewPitchDetector(lowestFreq, highestFreq, sampleRate)

	p.sampleRate = sampleRate
	p.mean = lowestFreq + (highestFreq-lowestFreq)/2.0
	p.first = true
	p.fidelity_thresh = 0.98
	p.periodicity_thresh = 0.98

	p.lowest = lowestFreq
	p.highest = highestFreq

	return p
}

/*------------------------------------------------------------------
 *
 * Name:	DualPitchDetector.Tick
 *
 * Purpose:	Advance both branches by one sample and, when the
 *		bitstream branch completes a window, arbitrate.
 *
 * Returns:	true on bitstream window completion.
 *
 *----------------------------------------------------------------*/

func (p *DualPitchDetector) Tick(sample float64) bool {
	p.pd1.Tick(sample)
	var ready = p.pd2.Tick(sample)

	if !ready {
		return ready
	}

	var period = p.pd1.GetPeriod()
	if p.pd2.Indeterminate() || period == 0.0 {
		return ready
	}

	var i1 = PitchInfo{
		Frequency:   p.sampleRate / period,
		Periodicity: p.pd1.GetFidelity(),
	}
	var i2 = p.pd2.Current()

	var pd1_diff = math.Abs(i1.Frequency - p.mean)
	var pd2_diff = math.Abs(i2.Frequency - p.mean)

	var i PitchInfo
	var disagreement = math.Abs(i1.Frequency-i2.Frequency) > p.mean*0.03125

	switch {
	// If they agree, we'll use bacf
	case !disagreement:
		i = i2

	// A disagreement implies a change.  Start with smaller changes.
	case pd2_diff < p.mean*0.03125:
		i = i2
	case pd1_diff < p.mean*0.03125:
		i = i1

	// Now filter out lower fidelity stuff
	case i1.Periodicity < p.fidelity_thresh:
		return ready

	// Changing up (bacf tends to lead changes)
	case i1.Frequency > p.mean && i2.Frequency > p.mean &&
		i1.Frequency < i2.Frequency && i2.Periodicity > p.periodicity_thresh:
		if math.Round(i2.Frequency/i1.Frequency) > 1 {
			i = i1
		} else {
			i = i2
		}

	// Changing down
	case i1.Frequency < p.mean && i2.Frequency < p.mean &&
		i1.Frequency > i2.Frequency && i2.Periodicity > p.periodicity_thresh:
		if math.Round(i1.Frequency/i2.Frequency) > 1 {
			i = i1
		} else {
			i = i2
		}

	// A bit of handling for stuff out of bacf range, won't be as
	// solid but better than nothing
	case i1.Frequency > p.highest:
		if math.Round(i1.Frequency/i2.Frequency) > 1 {
			i = i2
		} else {
			i = i1
		}
	case i1.Frequency < p.lowest:
		if math.Round(i2.Frequency/i1.Frequency) > 1 {
			i = i2
		} else {
			i = i1
		}

	// Don't change if we met none of these, probably a bad read
	default:
		return ready
	}

	if p.first {
		p.current = i
		p.mean = p.current.Frequency
		p.first = false
		p.predicted_frequency = 0.0
	} else {
		p.current = i
		p.mean = 0.2222222*p.current.Frequency + 0.7777778*p.mean
		p.predicted_frequency = 0.0
	}

	return ready
}

func (p *DualPitchDetector) GetFrequency() float64 {
	return p.current.Frequency
}

func (p *DualPitchDetector) GetPeriodicity() float64 {
	return p.current.Periodicity
}

func (p *DualPitchDetector) Current() PitchInfo {
	return p.current
}

func (p *DualPitchDetector) Mean() float64 {
	return p.mean
}

// PredictFrequency is the lazy fused prediction: the branches'
// predictions must agree within 10%, else 0.
func (p *DualPitchDetector) PredictFrequency() float64 {
	if p.predicted_frequency == 0.0 {
		p.compute_predicted_frequency()
	}
	return p.predicted_frequency
}

func (p *DualPitchDetector) PeriodDetection() *PeriodDetection {
	return p.pd1
}

func (p *DualPitchDetector) PitchDetector() *PitchDetector {
	return p.pd2
}

func (p *DualPitchDetector) SetHysteresis(hysteresisDB float64) {
	p.pd2.SetHysteresis(hysteresisDB)
}

func (p *DualPitchDetector) SetFidelityThreshold(thresh float64) {
	p.fidelity_thresh = clipf(0.0, thresh, 1.0)
	p.pd1.SetFidelityThreshold(p.fidelity_thresh)
}

func (p *DualPitchDetector) SetPeriodicityThreshold(thresh float64) {
	p.periodicity_thresh = clipf(0.0, thresh, 1.0)
}

func (p *DualPitchDetector) SetSampleRate(sr float64) {
	p.sampleRate = sr
	p.pd1.SetSampleRate(sr)
	p.pd2.SetSampleRate(sr)
}

func (p *DualPitchDetector) compute_predicted_frequency() {
	var period = p.pd1.GetPeriod()
	if period <= 0.0 {
		p.predicted_frequency = 0.0
		return
	}

	var f1 = 1.0 / period
	var f2 = p.pd2.PredictFrequency()
	if f2 > 0.0 {
		var errlimit = f1 * 0.1
		if math.Abs(f1-f2) < errlimit {
			p.predicted_frequency = f1
			return
		}
	}

	p.predicted_frequency = 0.0
}
