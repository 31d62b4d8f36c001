package warbler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feed samples until the collector reports ready, returning the number
// of samples consumed.  Fails the test if it never happens.
func feedUntilReady(t *testing.T, z *ZeroCrossingCollector, samples []float64) int {
	t.Helper()

	for n, s := range samples {
		z.Tick(s)
		if z.IsReady() {
			return n + 1
		}
	}
	require.FailNow(t, "collector never became ready")
	return 0
}

func TestZeroCrossingCollectorWindowRounding(t *testing.T) {
	var z = NewZeroCrossingCollector(1000, -120.0)

	assert.Zero(t, z.WindowSize()%BITSET_VALUE_SIZE)
	assert.GreaterOrEqual(t, z.WindowSize(), 1000)

	// Capacity is a power of two.
	assert.Zero(t, z.Capacity()&(z.Capacity()-1))
}

func TestZeroCrossingCollectorCollectsSineEdges(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var z = NewZeroCrossingCollector(int(2.0/100.0*sr), -120.0) // two periods of 100 Hz

	var samples = GenSine(100.0, 0.5, 4*DEFAULT_SAMPLE_RATE/100, sr)
	feedUntilReady(t, z, samples)

	require.Greater(t, z.NumEdges(), 1)

	// Edges come out in chronological order: every later index is a
	// strictly later rising edge.
	for k := 1; k < z.NumEdges(); k++ {
		var prev = z.GetCrossing(k - 1)
		var curr = z.GetCrossing(k)
		assert.Greater(t, curr.LeadingEdge(), prev.LeadingEdge())
	}

	// Successive rising edges of a 100 Hz sine are one period apart.
	var period = float64(sr) / 100.0
	for k := 1; k < z.NumEdges(); k++ {
		var got = z.GetCrossing(k-1).FractionalPeriod(z.GetCrossing(k))
		assert.InDelta(t, period, got, 1.0)
	}

	// The window peak is the sine's amplitude.
	assert.InDelta(t, 0.5, z.GetPeak(), 0.01)
}

func TestZeroCrossingCollectorEdgeStatistics(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var z = NewZeroCrossingCollector(int(2.0/100.0*sr), -120.0)

	var samples = GenSine(100.0, 1.0, DEFAULT_SAMPLE_RATE/10, sr)
	feedUntilReady(t, z, samples)

	var period = sr / 100.0
	for k := 0; k < z.NumEdges(); k++ {
		var e = z.GetCrossing(k)
		assert.InDelta(t, 1.0, e.Peak(), 0.01)

		// Width is recorded where the signal falls below 30% of the
		// peak, about nine tenths of the way through the positive
		// half wave.
		if e.Width() != 0 {
			assert.Greater(t, e.Width(), int(period/4))
			assert.Less(t, e.Width(), int(period/2))
		}

		// A closed edge spans roughly the positive half period.
		if e.TrailingEdge() != UNINITIALIZED_EDGE && e.TrailingEdge() > e.LeadingEdge() {
			assert.InDelta(t, period/2, float64(e.TrailingEdge()-e.LeadingEdge()), 3.0)
		}
	}
}

func TestZeroCrossingCollectorSilenceNeverReady(t *testing.T) {
	var z = NewZeroCrossingCollector(1024, -120.0)

	for i := 0; i < 10000; i++ {
		z.Tick(0.0)
		assert.False(t, z.IsReady())
	}

	assert.Zero(t, z.NumEdges())
}

func TestZeroCrossingCollectorResetOnSilenceWindow(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var z = NewZeroCrossingCollector(int(2.0/100.0*sr), -120.0)

	// A burst of tone followed by silence: the collector should
	// drain back to its reset state rather than holding stale edges
	// forever.
	var samples = GenSine(100.0, 0.5, DEFAULT_SAMPLE_RATE/20, sr)
	for _, s := range samples {
		z.Tick(s)
	}
	for i := 0; i < 4*z.WindowSize(); i++ {
		z.Tick(0.0)
	}

	assert.Zero(t, z.NumEdges())
}

func TestZeroCrossingCounterDensity(t *testing.T) {
	var z = NewZeroCrossingCounter(64)

	// Alternating signs: every sample is a crossing.
	var out = 0.0
	for i := 0; i < 256; i++ {
		var s = 1.0
		if i%2 == 1 {
			s = -1.0
		}
		out = z.Tick(s)
	}
	assert.InDelta(t, 1.0, out, 0.05)

	// Constant sign: density decays to zero as the window slides.
	for i := 0; i < 256; i++ {
		out = z.Tick(1.0)
	}
	assert.Zero(t, out)
}
