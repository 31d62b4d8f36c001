package warbler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelopeFollowerRejectsNaN(t *testing.T) {
	var e = NewEnvelopeFollower(0.01, 0.999)

	e.Tick(0.8)
	assert.Zero(t, e.Tick(math.NaN()))
}

func TestEnvelopeFollowerRidesPeaksAndDecays(t *testing.T) {
	var e = NewEnvelopeFollower(0.01, 0.5)

	assert.InDelta(t, 0.8, e.Tick(0.8), 1e-12)
	assert.InDelta(t, 0.8, e.Tick(-0.8), 1e-12) // absolute value, still at the peak

	// Below the peak: exponential decay.
	assert.InDelta(t, 0.4, e.Tick(0.1), 1e-12)
	assert.InDelta(t, 0.2, e.Tick(0.1), 1e-12)

	// Denormal floor snaps to zero eventually.
	for i := 0; i < 1000; i++ {
		e.Tick(0.0)
	}
	assert.Zero(t, e.Tick(0.0))
}

func TestEnvelopeFollowerAttackThreshold(t *testing.T) {
	var e = NewEnvelopeFollower(0.5, 0.99)

	// Peaks below the attack threshold never latch.
	assert.Zero(t, e.Tick(0.4))
	assert.Zero(t, e.Tick(0.49))
	assert.InDelta(t, 0.6, e.Tick(0.6), 1e-12)
}

func TestPowerFollowerConvergesToMeanSquare(t *testing.T) {
	var p = NewPowerFollower(0.01)

	var out = 0.0
	for i := 0; i < 5000; i++ {
		out = p.Tick(0.5)
	}
	assert.InDelta(t, 0.25, out, 1e-3)
	assert.InDelta(t, 0.25, p.GetPower(), 1e-3)
}

func TestPowerFollowerClampsFactor(t *testing.T) {
	var p = NewPowerFollower(7.0)

	// A clamped factor of 1 tracks the instantaneous square.
	assert.InDelta(t, 0.25, p.Tick(0.5), 1e-12)
	assert.InDelta(t, 0.01, p.Tick(0.1), 1e-12)
}

func TestEnvPDFullScaleIsHundredDB(t *testing.T) {
	var bs = 64
	var x = NewEnvPD(1024, 64, bs)

	// A full-scale DC input sums the whole window to exactly 1, and
	// powtodb(1) pins the dB scale at 100.
	var block = make([]float64, bs)
	for i := range block {
		block[i] = 1.0
	}

	for i := 0; i < 64; i++ {
		x.ProcessBlock(block)
	}

	assert.InDelta(t, 100.0, x.Tick(), 0.1)
}

func TestEnvPDSilence(t *testing.T) {
	var bs = 64
	var x = NewEnvPD(1024, 64, bs)

	var block = make([]float64, bs)
	for i := 0; i < 64; i++ {
		x.ProcessBlock(block)
	}

	assert.Zero(t, x.Tick())
}

func TestEnvPDHopSnapsToBlockSize(t *testing.T) {
	var x = NewEnvPD(1024, 100, 64)

	// 100 is not a block multiple; the effective hop rounds up.
	assert.Equal(t, 128, x.HopSize())
	assert.Equal(t, 1024, x.WindowSize())
}

func TestAttackDetectionFiresOnJump(t *testing.T) {
	var bs = 64
	var a = NewAttackDetection(bs, 5, 50, DEFAULT_SAMPLE_RATE)

	var quiet = make([]float64, bs)
	var loud = make([]float64, bs)
	for i := range loud {
		quiet[i] = 0.01
		loud[i] = 0.8
	}

	// Settle on the quiet level first.
	var fired = false
	for i := 0; i < 20; i++ {
		fired = a.Detect(quiet)
	}
	assert.False(t, fired)

	assert.True(t, a.Detect(loud))

	// Staying loud is not another attack.
	for i := 0; i < 20; i++ {
		fired = a.Detect(loud)
	}
	assert.False(t, fired)
}
