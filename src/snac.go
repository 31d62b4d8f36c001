package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	SNAC: Special Normalized AutoCorrelation pitch
 *		estimation, McLeod/Wyvill style.
 *
 *		One analysis frame is: window the last framesize
 *		samples, zero pad to twice that, autocorrelate by a
 *		real FFT / power spectrum / inverse FFT round trip,
 *		normalize to remove the energy bias, then pick the
 *		autocorrelation peak that most probably represents the
 *		period.  A logarithmic bias favours the earliest
 *		plausible candidate, which keeps the estimate from
 *		hopping between a fundamental and its sub-harmonics.
 *
 *		Short periods (under 8 samples) are refined against
 *		the stored power spectrum, where resolution is better
 *		than in the lag domain.
 *
 * References:	P. McLeod, G. Wyvill, "A Smarter Way to Find Pitch".
 *		K. Vetter, http://www.katjaas.nl/helmholtz/helmholtz.html
 *
 *----------------------------------------------------------------*/

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const SNAC_FRAME_SIZE = 1024

const DEFOVERLAP = 1
const DEFBIAS = 0.2
const DEFMINRMS = 0.003

/* Fraction of the frame searched for a period; the tail beyond it is
 * numerically unstable after normalization and is flushed. */
const SEEK = 0.85

type SNAC struct {
	inputbuf    []float64 // input ring, framesize, power of two
	processbuf  []float64 // fftsize scratch; autocorrelation after a frame
	spectrumbuf []float64 // power spectrum up to SR/4
	biasbuf     []float64
	coeffbuf    []complex128 // half spectrum scratch for the FFT
	fft         *fourier.FFT

	timeindex    int
	framesize    int
	overlap      int
	periodindex  int
	periodlength float64
	fidelity     float64
	biasfactor   float64
	minrms       float64
}

func NewSNAC(overlap int) *SNAC {
	var s = new(SNAC)

	s.biasfactor = DEFBIAS
	s.minrms = DEFMINRMS
	s.framesize = SNAC_FRAME_SIZE

	s.inputbuf = make([]float64, s.framesize)
	s.processbuf = make([]float64, s.framesize*2)
	s.spectrumbuf = make([]float64, s.framesize/2)
	s.biasbuf = make([]float64, s.framesize)
	s.coeffbuf = make([]complex128, s.framesize+1)
	s.fft = fourier.NewFFT(s.framesize * 2)

	s.biasbuf_update()
	s.SetOverlap(overlap)

	return s
}

/*------------------------------------------------------------------
 *
 * Name:	SNAC.IOSamples
 *
 * Purpose:	Feed a block of samples into the input ring.
 *
 * Description:	An analysis frame runs whenever the write index hits
 *		a multiple of framesize/overlap, so a higher overlap
 *		means more frequent (and more correlated) estimates.
 *
 *----------------------------------------------------------------*/

func (s *SNAC) IOSamples(in []float64) {
	var timeindex = s.timeindex
	var mask = s.framesize - 1

	// call analysis function when it is time
	if timeindex&(s.framesize/s.overlap-1) == 0 {
		s.analyzeframe()
	}

	for _, v := range in {
		s.inputbuf[timeindex] = v
		timeindex++
		timeindex &= mask
	}
	s.timeindex = timeindex
}

func (s *SNAC) SetOverlap(lap int) {
	if lap != 1 && lap != 2 && lap != 4 && lap != 8 {
		lap = DEFOVERLAP
	}
	s.overlap = lap
}

func (s *SNAC) SetBias(bias float64) {
	s.biasfactor = clipf(0.0, bias, 1.0)
	s.biasbuf_update()
}

func (s *SNAC) SetMinRMS(rms float64) {
	s.minrms = clipf(0.0, rms, 1.0)
}

// GetPeriod returns the interpolated period estimate of the last
// frame, in (fractional) samples.
func (s *SNAC) GetPeriod() float64 {
	return s.periodlength
}

// GetFidelity returns the height of the normalized autocorrelation at
// the detected period: near 1 for a cleanly periodic frame, near 0
// for silence or noise.
func (s *SNAC) GetFidelity() float64 {
	return s.fidelity
}

// main analysis function
func (s *SNAC) analyzeframe() {
	var tindex = s.timeindex
	var framesize = s.framesize
	var mask = framesize - 1
	var norm = 1.0 / math.Sqrt(float64(framesize*2))

	// copy input to processing buffer
	for n := 0; n < framesize; n++ {
		s.processbuf[n] = s.inputbuf[tindex] * norm
		tindex++
		tindex &= mask
	}

	// zeropadding
	for n := framesize; n < framesize<<1; n++ {
		s.processbuf[n] = 0.0
	}

	s.autocorrelation()
	s.normalize()
	s.pickpeak()
	s.periodandfidelity()
}

func (s *SNAC) autocorrelation() {
	var framesize = s.framesize

	s.fft.Coefficients(s.coeffbuf, s.processbuf)

	// compute power spectrum
	for n := range s.coeffbuf {
		var re = real(s.coeffbuf[n])
		var im = imag(s.coeffbuf[n])
		s.coeffbuf[n] = complex(re*re+im*im, 0)
	}

	// store power spectrum up to SR/4 for possible later use
	for m := 0; m < framesize>>1; m++ {
		s.spectrumbuf[m] = real(s.coeffbuf[m])
	}

	// transform power spectrum to autocorrelation function
	s.fft.Sequence(s.processbuf, s.coeffbuf)
}

/*------------------------------------------------------------------
 *
 * Name:	SNAC.normalize
 *
 * Purpose:	Convert the biased autocorrelation in processbuf to
 *		the normalized (unbiased) form, in place.
 *
 * Description:	The normalization integral starts at twice the zero
 *		lag energy and sheds the squared edge samples as the
 *		lag grows.  It is accumulated in double precision;
 *		the subtraction cancels catastrophically otherwise.
 *
 *		A minimum r[0] derived from minrms acts as a white
 *		noise floor so silence doesn't normalize to spurious
 *		full-scale correlation.
 *
 *----------------------------------------------------------------*/

func (s *SNAC) normalize() {
	var framesize = s.framesize
	var framesizeplustimeindex = s.framesize + s.timeindex
	var timeindexminusone = s.timeindex - 1
	var mask = framesize - 1
	var seek = int(float64(framesize) * SEEK)

	// minimum RMS implemented as minimum autocorrelation at index 0
	// functionally equivalent to white noise floor
	var rms = s.minrms / math.Sqrt(1.0/float64(framesize))
	var minrzero = rms * rms
	var rzero = s.processbuf[0]
	if rzero < minrzero {
		rzero = minrzero
	}
	var normintegral = rzero * 2.0

	// normalize biased autocorrelation function
	// inputbuf is circular buffer: timeindex may be non-zero when overlap > 1
	s.processbuf[0] = 1
	for n, m := 1, s.timeindex+1; n < seek; n, m = n+1, m+1 {
		var signal1 = s.inputbuf[(n+timeindexminusone)&mask]
		var signal2 = s.inputbuf[(framesizeplustimeindex-n)&mask]
		normintegral -= signal1*signal1 + signal2*signal2
		s.processbuf[n] /= normintegral * 0.5
	}

	// flush instable function tail
	for n := seek; n < framesize; n++ {
		s.processbuf[n] = 0.0
	}
}

// select the peak which most probably represents period length
func (s *SNAC) pickpeak() {
	var peakindex = 0
	var seek = int(float64(s.framesize) * SEEK)
	var maxvalue = 0.0

	// skip main lobe
	var n = 1
	for ; n < seek; n++ {
		if s.processbuf[n] < 0.0 {
			break
		}
	}

	// find interpolated / biased maximum in SNAC function
	// interpolation finds the 'real maximum'
	// biasing favours the first candidate
	for ; n < seek-1; n++ {
		if s.processbuf[n] >= s.processbuf[n-1] {
			if s.processbuf[n] > s.processbuf[n+1] { // we have a local peak
				var biasedpeak = interpolate3max(s.processbuf, n) * s.biasbuf[n]

				if biasedpeak > maxvalue {
					maxvalue = biasedpeak
					peakindex = n
				}
			}
		}
	}
	s.periodindex = peakindex
}

func (s *SNAC) periodandfidelity() {
	if s.periodindex != 0 {
		var periodlength = float64(s.periodindex) + interpolate3phase(s.processbuf, s.periodindex)
		if periodlength < 8 {
			periodlength = s.spectralpeak(periodlength)
		}
		s.periodlength = periodlength
		s.fidelity = interpolate3max(s.processbuf, s.periodindex)
	}
}

// verify period length via frequency domain (up till SR/4)
// frequency domain is more precise than lag domain for period lengths < 8
// argument 'periodlength' is initial estimation from autocorrelation
func (s *SNAC) spectralpeak(periodlength float64) float64 {
	if periodlength < 4.0 {
		return periodlength
	}

	var max = 0.0
	var peakbin = 0
	var spectrumsize = s.framesize >> 1
	var peaklocation = float64(s.framesize*2) / periodlength

	var startbin = int(peaklocation*0.8 + 0.5)
	if startbin < 1 {
		startbin = 1
	}
	var stopbin = int(peaklocation*1.25 + 0.5)
	if stopbin >= spectrumsize-1 {
		stopbin = spectrumsize - 1
	}

	for n := startbin; n < stopbin; n++ {
		if s.spectrumbuf[n] >= s.spectrumbuf[n-1] {
			if s.spectrumbuf[n] > s.spectrumbuf[n+1] {
				if s.spectrumbuf[n] > max {
					max = s.spectrumbuf[n]
					peakbin = n
				}
			}
		}
	}

	if peakbin == 0 {
		return periodlength
	}

	// calculate amplitudes in peak region
	for n := peakbin - 1; n < peakbin+2; n++ {
		s.spectrumbuf[n] = math.Sqrt(s.spectrumbuf[n])
	}

	peaklocation = float64(peakbin) + interpolate3phase(s.spectrumbuf, peakbin)
	return float64(s.framesize*2) / peaklocation
}

// modified logarithmic bias function
func (s *SNAC) biasbuf_update() {
	var maxperiod = int(float64(s.framesize) * SEEK)
	var bias = s.biasfactor / math.Log(float64(maxperiod-4))

	for n := 0; n < 5; n++ { // periods < 5 samples can't be tracked
		s.biasbuf[n] = 0.0
	}

	for n := 5; n < maxperiod; n++ {
		s.biasbuf[n] = 1.0 - math.Log(float64(n)-4.0)*bias
	}
}

/******************************************************************************/
/*                           Period Detection                                 */
/******************************************************************************/

const DEFHOPSIZE = 64
const DEFWINDOWSIZE = 1024

/*------------------------------------------------------------------
 *
 * Purpose:	Block driver for the FFT pitch branch.
 *
 *		Collects samples into a two-block buffer and, each
 *		time a block fills, runs the power envelope and a
 *		SNAC frame over it.  This is one of the two branches
 *		the dual detector arbitrates between.
 *
 *----------------------------------------------------------------*/

type PeriodDetection struct {
	env  *EnvPD
	snac *SNAC

	inBuffer        []float64
	bufSize         int
	frameSize       int
	framesPerBuffer int
	curBlock        int
	lastBlock       int
	index           int

	hopSize    int
	windowSize int

	invSampleRate float64
	period        float64

	fidelityThreshold float64
}

func NewPeriodDetection(bufSize int, frameSize int, sampleRate float64) *PeriodDetection {
	Assert(frameSize > 0 && bufSize%frameSize == 0)

	var p = new(PeriodDetection)

	p.invSampleRate = 1.0 / sampleRate
	p.inBuffer = make([]float64, bufSize)
	p.bufSize = bufSize
	p.frameSize = frameSize
	p.framesPerBuffer = bufSize / frameSize
	p.curBlock = 1
	p.lastBlock = 0

	p.hopSize = DEFHOPSIZE
	p.windowSize = DEFWINDOWSIZE

	p.env = NewEnvPD(p.windowSize, p.hopSize, p.frameSize)
	p.snac = NewSNAC(DEFOVERLAP)

	// Fidelity threshold recommended by Katja Vetters is 0.95 for most
	// instruments/voices http://www.katjaas.nl/helmholtz/helmholtz.html
	p.fidelityThreshold = 0.95

	return p
}

func (p *PeriodDetection) Tick(sample float64) float64 {
	var i = p.curBlock * p.frameSize

	p.inBuffer[i+p.index] = sample
	p.index++

	if p.index >= p.frameSize {
		p.index = 0

		p.env.ProcessBlock(p.inBuffer[i : i+p.frameSize])
		p.snac.IOSamples(p.inBuffer[i : i+p.frameSize])

		p.period = p.snac.GetPeriod()

		p.curBlock++
		if p.curBlock >= p.framesPerBuffer {
			p.curBlock = 0
		}
		p.lastBlock++
		if p.lastBlock >= p.framesPerBuffer {
			p.lastBlock = 0
		}
	}
	return p.period
}

func (p *PeriodDetection) GetPeriod() float64 {
	return p.period
}

func (p *PeriodDetection) GetFidelity() float64 {
	return p.snac.GetFidelity()
}

// GetEnvelope returns the current window power in dB, from the power
// envelope that runs alongside the SNAC frames.
func (p *PeriodDetection) GetEnvelope() float64 {
	return p.env.Tick()
}

func (p *PeriodDetection) SetFidelityThreshold(threshold float64) {
	p.fidelityThreshold = threshold
}

func (p *PeriodDetection) FidelityThreshold() float64 {
	return p.fidelityThreshold
}

func (p *PeriodDetection) SetSampleRate(sr float64) {
	p.invSampleRate = 1.0 / sr
}
