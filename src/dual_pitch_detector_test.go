package warbler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(lowest float64, highest float64) *DualPitchDetector {
	var config = DefaultConfig()
	config.LowestFreq = lowest
	config.HighestFreq = highest
	return config.NewDetector()
}

func TestDualPitchDetector440(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	var samples = GenSine(440.0, 0.5, 4096, sr)
	for _, s := range samples {
		d.Tick(s)
	}

	require.Greater(t, d.GetFrequency(), 0.0, "no lock within 4096 samples")
	assert.InDelta(t, 440.0, d.GetFrequency(), 3.0)
	assert.GreaterOrEqual(t, d.GetPeriodicity(), 0.98)
}

func TestDualPitchDetectorBass(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(60.0, 1000.0)

	// E2, the low E of a bass guitar.
	var samples = GenSine(82.41, 0.5, 8192, sr)
	for _, s := range samples {
		d.Tick(s)
	}

	require.Greater(t, d.GetFrequency(), 0.0, "no lock within 8192 samples")
	assert.InDelta(t, 82.41, d.GetFrequency(), 0.6)
}

func TestDualPitchDetectorSquareWave(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	var samples = GenSquare(220.0, 0.5, 8192, sr)
	for _, s := range samples {
		d.Tick(s)
	}

	require.Greater(t, d.GetFrequency(), 0.0)
	assert.InDelta(t, 220.0, d.GetFrequency(), 2.0)
}

func TestDualPitchDetectorSilence(t *testing.T) {
	var d = newTestDetector(80.0, 1000.0)

	for i := 0; i < DEFAULT_SAMPLE_RATE; i++ {
		d.Tick(0.0)
	}

	assert.Zero(t, d.GetFrequency())
	assert.LessOrEqual(t, d.GetPeriodicity(), 0.0)
}

func TestDualPitchDetectorNoiseDoesNotLock(t *testing.T) {
	var d = newTestDetector(80.0, 1000.0)

	// One second of Gaussian noise.
	var samples = GenNoise(0.3, DEFAULT_SAMPLE_RATE, 1)
	for _, s := range samples {
		d.Tick(s)
		assert.Less(t, d.GetPeriodicity(), 0.5)
	}
}

func TestDualPitchDetectorOnsetFromSilence(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	// Silence, then a tone starting at sample 10000.
	for i := 0; i < 10000; i++ {
		d.Tick(0.0)
		assert.Zero(t, d.GetFrequency())
	}

	var locked_at = -1
	var samples = GenSine(440.0, 0.5, 10000, sr)
	for n, s := range samples {
		d.Tick(s)
		if locked_at < 0 && d.GetFrequency() != 0.0 {
			locked_at = n
		}
	}

	require.GreaterOrEqual(t, locked_at, 0, "never locked after onset")
	assert.Less(t, locked_at, 4096)
	assert.InDelta(t, 440.0, d.GetFrequency(), 3.0)
}

func TestDualPitchDetectorRampIsMonotonic(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	var samples = GenSweep(220.0, 440.0, 0.5, DEFAULT_SAMPLE_RATE, sr)

	var prev = 0.0
	var worst_backtrack = 0.0
	for _, s := range samples {
		if !d.Tick(s) {
			continue
		}
		var f = d.GetFrequency()
		if f == 0.0 {
			continue
		}
		if prev != 0.0 && f < prev {
			if prev-f > worst_backtrack {
				worst_backtrack = prev - f
			}
		}
		prev = f
	}

	require.Greater(t, prev, 0.0)
	assert.InDelta(t, 440.0, prev, 5.0)
	assert.LessOrEqual(t, worst_backtrack, 2.0)
}

func TestDualPitchDetectorOctaveStability(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)

	// A strong second harmonic must not read an octave high.
	for _, freq := range []float64{110.0, 220.0, 440.0} {
		var d = newTestDetector(80.0, 1000.0)
		for _, s := range GenMix(freq, 0.5, 0.5, 16384, sr) {
			d.Tick(s)
		}

		require.Greater(t, d.GetFrequency(), 0.0, "freq %v", freq)
		assert.InEpsilon(t, freq, d.GetFrequency(), 0.01, "freq %v", freq)
	}
}

func TestDualPitchDetectorMeanSeedsOnFirstRead(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	// Before any reading the mean sits mid-range.
	assert.InDelta(t, 540.0, d.Mean(), 1.0)

	for _, s := range GenSine(220.0, 0.5, 8192, sr) {
		d.Tick(s)
	}

	// After lock the mean has moved to the detected note.
	assert.InDelta(t, 220.0, d.Mean(), 3.0)
}

func TestDualPitchDetectorPredictFrequency(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var d = newTestDetector(80.0, 1000.0)

	// The fused prediction only reports when both branches agree;
	// on a steady sine it must either stay silent or agree with the
	// SNAC period.
	for _, s := range GenSine(220.0, 0.5, 8192, sr) {
		d.Tick(s)
	}

	var f = d.PredictFrequency()
	if f != 0.0 {
		var period = d.PeriodDetection().GetPeriod()
		require.Greater(t, period, 0.0)
		assert.InDelta(t, 1.0/period, f, 1e-9)
	}
}
