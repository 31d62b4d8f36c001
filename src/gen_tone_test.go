package warbler

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneGeneratorFrequency(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var g = NewToneGenerator(440.0, sr)

	// Count rising zero crossings over one second.
	var crossings = 0
	var prev = g.Next()
	for i := 1; i < DEFAULT_SAMPLE_RATE; i++ {
		var s = g.Next()
		if prev <= 0 && s > 0 {
			crossings++
		}
		prev = s
	}

	assert.InDelta(t, 440, crossings, 1)
}

func TestToneGeneratorMatchesSine(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var g = NewToneGenerator(100.0, sr)

	// Table lookup with interpolation stays close to the real thing.
	for i := 0; i < 4800; i++ {
		var want = math.Sin(2.0 * math.Pi * 100.0 * float64(i) / sr)
		assert.InDelta(t, want, g.Next(), 1e-3)
	}
}

func TestGenSweepLengthAndAmplitude(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var samples = GenSweep(220.0, 440.0, 0.5, DEFAULT_SAMPLE_RATE, sr)

	assert.Len(t, samples, DEFAULT_SAMPLE_RATE)

	// Peak amplitude respected throughout.
	for _, s := range samples {
		assert.LessOrEqual(t, math.Abs(s), 0.5+1e-9)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	var sr = DEFAULT_SAMPLE_RATE
	var path = filepath.Join(t.TempDir(), "tone.wav")

	var out = GenSine(440.0, 0.5, 4800, float64(sr))
	require.NoError(t, WriteWAV(path, out, sr))

	var in, gotRate, err = ReadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, sr, gotRate)
	require.Len(t, in, len(out))

	// 16 bit quantization error only.
	for i := range out {
		assert.InDelta(t, out[i], in[i], 1.0/16384.0)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFX this is plain text, not a wave file header at all"), 0o644))

	var _, _, err = ReadWAV(path)
	assert.Error(t, err)

	_, _, err = ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestGenNoiseIsReproducible(t *testing.T) {
	var a = GenNoise(0.3, 1000, 42)
	var b = GenNoise(0.3, 1000, 42)
	assert.Equal(t, a, b)

	var c = GenNoise(0.3, 1000, 43)
	assert.NotEqual(t, a, c)
}

func TestAnalyzeBufferOnGeneratedTone(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var detector = newTestDetector(80.0, 1000.0)

	var result = AnalyzeBuffer(detector, GenSine(440.0, 0.5, 2*DEFAULT_SAMPLE_RATE, sr), nil)

	assert.Greater(t, result.readings, 0)
	assert.Greater(t, result.voiced, 0)
	assert.InDelta(t, 440.0, result.mean_freq, 3.0)
	assert.GreaterOrEqual(t, result.min_freq, 430.0)
	assert.LessOrEqual(t, result.max_freq, 450.0)
}
