package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Amplitude and power followers.
 *
 *		Simple companions to the pitch analysis: a peak-riding
 *		envelope follower, a one-pole power follower, a
 *		windowed zero-crossing density counter, a block-based
 *		attack detector, and the sliding Hann-window power
 *		envelope used by the FFT pitch branch.
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

// Denormal floor.  Values below this decay straight to zero rather
// than lingering as denormals.
const VSF = 1.0e-38

/******************************************************************************/
/*                            Envelope Follower                               */
/******************************************************************************/

type EnvelopeFollower struct {
	y        float64
	a_thresh float64
	d_coeff  float64
}

func NewEnvelopeFollower(attackThreshold float64, decayCoeff float64) *EnvelopeFollower {
	var e = new(EnvelopeFollower)

	e.a_thresh = attackThreshold
	e.d_coeff = decayCoeff

	return e
}

func (e *EnvelopeFollower) Tick(x float64) float64 {
	if x < 0.0 {
		x = -x /* Absolute value. */
	}

	if math.IsNaN(x) {
		return 0.0
	}

	if x >= e.y && x > e.a_thresh {
		e.y = x /* If we hit a peak, ride the peak to the top. */
	} else {
		e.y = e.y * e.d_coeff /* Else, exponential decay of output. */
	}

	if e.y < VSF {
		e.y = 0.0
	}

	return e.y
}

func (e *EnvelopeFollower) SetDecayCoefficient(decayCoeff float64) {
	e.d_coeff = decayCoeff
}

func (e *EnvelopeFollower) SetAttackThreshold(attackThresh float64) {
	e.a_thresh = attackThresh
}

/******************************************************************************/
/*                             Power Follower                                 */
/******************************************************************************/

type PowerFollower struct {
	factor         float64
	oneminusfactor float64
	curr           float64
}

func NewPowerFollower(factor float64) *PowerFollower {
	var p = new(PowerFollower)

	p.SetFactor(factor)

	return p
}

func (p *PowerFollower) SetFactor(factor float64) {
	p.factor = clipf(0.0, factor, 1.0)
	p.oneminusfactor = 1.0 - p.factor
}

func (p *PowerFollower) Tick(input float64) float64 {
	p.curr = p.factor*input*input + p.oneminusfactor*p.curr
	return p.curr
}

func (p *PowerFollower) GetPower() float64 {
	return p.curr
}

/******************************************************************************/
/*                          Zero Crossing Counter                             */
/******************************************************************************/

// ZeroCrossingCounter reports the proportion of zero crossings within
// its window: 0.0 for none, (window-1)/window if every adjacent pair of
// samples changes sign (the slot about to be overwritten is not
// counted).
type ZeroCrossingCounter struct {
	count          int
	maxWindowSize  int
	currWindowSize int
	invWindowSize  float64
	position       int
	prevPosition   int
	inBuffer       []float64
	countBuffer    []uint16
}

func NewZeroCrossingCounter(maxWindowSize int) *ZeroCrossingCounter {
	var z = new(ZeroCrossingCounter)

	z.maxWindowSize = maxWindowSize
	z.currWindowSize = maxWindowSize
	z.invWindowSize = 1.0 / float64(maxWindowSize)
	z.prevPosition = maxWindowSize
	z.inBuffer = make([]float64, maxWindowSize)
	z.countBuffer = make([]uint16, maxWindowSize)

	return z
}

func (z *ZeroCrossingCounter) Tick(input float64) float64 {
	z.inBuffer[z.position] = input
	var futurePosition = (z.position + 1) % z.currWindowSize

	// Add the newest pair to the count...
	if z.prevPosition < len(z.inBuffer) && z.inBuffer[z.position]*z.inBuffer[z.prevPosition] < 0.0 {
		z.countBuffer[z.position] = 1
		z.count++
	} else {
		z.countBuffer[z.position] = 0
	}

	// ...and retire the oldest.
	if z.countBuffer[futurePosition] > 0 {
		z.count--
		if z.count < 0 {
			z.count = 0
		}
	}

	z.prevPosition = z.position
	z.position = futurePosition

	return float64(z.count) * z.invWindowSize
}

func (z *ZeroCrossingCounter) SetWindowSize(windowSize int) {
	if windowSize <= z.maxWindowSize && windowSize > 0 {
		z.currWindowSize = windowSize
	} else {
		z.currWindowSize = z.maxWindowSize
	}
	z.invWindowSize = 1.0 / float64(z.currWindowSize)
}

/******************************************************************************/
/*                             Attack Detection                               */
/******************************************************************************/

const DEFTHRESHOLD = 6.0

type AttackDetection struct {
	env        float64
	blockSize  int
	sampleRate float64
	threshold  float64
	prevAmp    float64
	atk        int
	atk_coeff  float64
	rel        int
	rel_coeff  float64
}

// NewAttackDetection expects attack and release in milliseconds.
func NewAttackDetection(blockSize int, atk int, rel int, sampleRate float64) *AttackDetection {
	var a = new(AttackDetection)

	a.blockSize = blockSize
	a.threshold = DEFTHRESHOLD
	a.sampleRate = sampleRate
	a.SetAttack(atk)
	a.SetRelease(rel)

	return a
}

func (a *AttackDetection) SetBlocksize(size int) {
	a.blockSize = size
}

func (a *AttackDetection) SetThreshold(thres float64) {
	a.threshold = thres
}

func (a *AttackDetection) SetAttack(inAtk int) {
	a.atk = inAtk
	a.atk_coeff = math.Pow(0.01, 1.0/(float64(a.atk)*a.sampleRate*0.001))
}

func (a *AttackDetection) SetRelease(inRel int) {
	a.rel = inRel
	a.rel_coeff = math.Pow(0.01, 1.0/(float64(a.rel)*a.sampleRate*0.001))
}

func (a *AttackDetection) SetSampleRate(sr float64) {
	a.sampleRate = sr
	a.SetAttack(a.atk)
	a.SetRelease(a.rel)
}

// Detect reports whether the block-level envelope jumped by 6 dB
// (a doubling) over the previous block.
func (a *AttackDetection) Detect(in []float64) bool {
	a.envelope(in)

	var result = a.env >= a.prevAmp*2

	a.prevAmp = a.env

	return result
}

func (a *AttackDetection) envelope(in []float64) {
	for i := 0; i < a.blockSize && i < len(in); i++ {
		var tmp = math.Abs(in[i])

		if tmp > a.env {
			a.env = a.atk_coeff*(a.env-tmp) + tmp
		} else {
			a.env = a.rel_coeff*(a.env-tmp) + tmp
		}
	}
}

/******************************************************************************/
/*                       Windowed Power Envelope                              */
/******************************************************************************/

/*
 * Maximum number of simultaneously tracked, differently phased
 * partial sums.
 */

const MAXOVERLAP = 32

// Zero padding kept past the end of the window table so a partially
// aligned final block never reads off the end.
const INITVSTAKEN = 64

/*------------------------------------------------------------------
 *
 * Purpose:	Power envelope over a sliding Hann window.
 *
 *		Keeps up to MAXOVERLAP running sums of windowed
 *		sample squares, one per active hop phase.  When a hop
 *		boundary passes, the oldest finished sum becomes the
 *		result and its slot is recycled.  Tick converts the
 *		result to dB.
 *
 *----------------------------------------------------------------*/

type EnvPD struct {
	buf        []float64 // Hann window, scaled by 1/npoints
	sumbuf     [MAXOVERLAP + 1]float64
	npoints    int
	phase      int
	period     int // requested hop
	realperiod int // hop snapped up to a block boundary
	blockSize  int
	result     float64
}

/*------------------------------------------------------------------
 *
 * Name:	NewEnvPD
 *
 * Inputs:	ws	- Window size in samples.
 *		hs	- Hop size in samples.  Bounded below so that no
 *			  more than MAXOVERLAP phases are ever active,
 *			  and snapped up to a multiple of the block size.
 *		bs	- Block size handed to ProcessBlock.
 *
 *----------------------------------------------------------------*/

func NewEnvPD(ws int, hs int, bs int) *EnvPD {
	var x = new(EnvPD)

	var npoints = ws
	var period = hs

	if npoints < 1 {
		npoints = 1024
	}
	if period < 1 {
		period = npoints / 2
	}
	if period < npoints/MAXOVERLAP+1 {
		period = npoints/MAXOVERLAP + 1
	}

	x.npoints = npoints
	x.period = period
	x.blockSize = bs

	x.buf = make([]float64, npoints+INITVSTAKEN)
	for i := 0; i < npoints; i++ {
		x.buf[i] = (1.0 - math.Cos((2.0*math.Pi*float64(i))/float64(npoints))) / float64(npoints)
	}

	if x.period%x.blockSize != 0 {
		x.realperiod = x.period + x.blockSize - (x.period % x.blockSize)
	} else {
		x.realperiod = x.period
	}

	return x
}

// Tick returns the most recent window power in dB.
func (x *EnvPD) Tick() float64 {
	return powtodb(x.result)
}

/*------------------------------------------------------------------
 *
 * Name:	EnvPD.ProcessBlock
 *
 * Purpose:	Accumulate one block of samples into every active
 *		partial sum, then retire the oldest sum if the block
 *		crossed a hop boundary.
 *
 * Description:	The block is walked backwards against a forward walk
 *		of the window, so each phased sum sees the window
 *		aligned with its own start point.
 *
 *----------------------------------------------------------------*/

func (x *EnvPD) ProcessBlock(in []float64) {
	var n = x.blockSize
	if n > len(in) {
		n = len(in)
	}

	var sump = 0
	for count := x.phase; count < x.npoints; count += x.realperiod {
		var sum = x.sumbuf[sump]
		for i := 0; i < n && count+i < len(x.buf); i++ {
			var fp = in[n-1-i]
			sum += x.buf[count+i] * (fp * fp)
		}
		x.sumbuf[sump] = sum
		sump++
	}
	x.sumbuf[sump] = 0.0

	x.phase -= n
	if x.phase < 0 {
		x.result = x.sumbuf[0]
		sump = 0
		for count := x.realperiod; count < x.npoints; count += x.realperiod {
			x.sumbuf[sump] = x.sumbuf[sump+1]
			sump++
		}
		x.sumbuf[sump] = 0.0
		x.phase = x.realperiod - n
	}
}

func (x *EnvPD) WindowSize() int {
	return x.npoints
}

func (x *EnvPD) HopSize() int {
	return x.realperiod
}
