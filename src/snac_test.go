package warbler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run a PeriodDetection over a buffer and return it for inspection.
func analyzePD(samples []float64, sampleRate float64) *PeriodDetection {
	var pd = NewPeriodDetection(1024, 512, sampleRate)
	for _, s := range samples {
		pd.Tick(s)
	}
	return pd
}

func TestSNACPureSinePeriod(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)

	for _, freq := range []float64{110.0, 220.0, 440.0} {
		var pd = analyzePD(GenSine(freq, 0.5, 8192, sr), sr)

		var want = sr / freq
		require.Greater(t, pd.GetPeriod(), 0.0, "freq %v", freq)
		assert.InEpsilon(t, want, pd.GetPeriod(), 0.005, "freq %v", freq)
		assert.Greater(t, pd.GetFidelity(), 0.9, "freq %v", freq)
	}
}

func TestSNACSilence(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var pd = analyzePD(make([]float64, 8192), sr)

	assert.Zero(t, pd.GetPeriod())
	assert.LessOrEqual(t, pd.GetFidelity(), 0.01)
}

func TestSNACDCRobustness(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)

	var samples = make([]float64, 8192)
	for i := range samples {
		samples[i] = 0.7
	}
	var pd = analyzePD(samples, sr)

	// Constant input is not periodic; fidelity must not pretend
	// otherwise.
	assert.LessOrEqual(t, pd.GetFidelity(), 0.01)
}

func TestSNACOctaveStability(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)

	// A strong second harmonic must not pull the estimate to half
	// the period: the first-candidate bias keeps the fundamental.
	for _, freq := range []float64{110.0, 220.0, 440.0} {
		var pd = analyzePD(GenMix(freq, 0.5, 0.5, 8192, sr), sr)

		var want = sr / freq
		require.Greater(t, pd.GetPeriod(), 0.0, "freq %v", freq)
		assert.InEpsilon(t, want, pd.GetPeriod(), 0.01, "freq %v", freq)
	}
}

func TestSNACOverlapValidation(t *testing.T) {
	var s = NewSNAC(3)
	assert.Equal(t, DEFOVERLAP, s.overlap)

	s.SetOverlap(8)
	assert.Equal(t, 8, s.overlap)

	s.SetOverlap(0)
	assert.Equal(t, DEFOVERLAP, s.overlap)
}

func TestSNACParameterClamping(t *testing.T) {
	var s = NewSNAC(1)

	s.SetBias(1.5)
	assert.InDelta(t, 1.0, s.biasfactor, 1e-12)
	s.SetBias(-0.5)
	assert.Zero(t, s.biasfactor)

	s.SetMinRMS(2.0)
	assert.InDelta(t, 1.0, s.minrms, 1e-12)
}

func TestSNACBiasBufShape(t *testing.T) {
	var s = NewSNAC(1)

	// Periods under 5 samples can't be tracked at all.
	for n := 0; n < 5; n++ {
		assert.Zero(t, s.biasbuf[n])
	}

	// The bias decreases monotonically with lag, favouring early
	// candidates.
	var maxperiod = int(float64(s.framesize) * SEEK)
	for n := 6; n < maxperiod; n++ {
		assert.Less(t, s.biasbuf[n], s.biasbuf[n-1])
	}
}

func TestPeriodDetectionEnvelopeTracksLevel(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)

	var loud = analyzePD(GenSine(440.0, 0.5, 8192, sr), sr)
	var quiet = analyzePD(GenSine(440.0, 0.05, 8192, sr), sr)

	// 20 dB of amplitude difference shows up as 20 dB of envelope
	// difference.
	assert.InDelta(t, 20.0, loud.GetEnvelope()-quiet.GetEnvelope(), 1.0)
}
