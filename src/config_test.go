package warbler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	var dir = t.TempDir()
	var cwd, _ = os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd) //nolint:errcheck

	var config, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigReadsFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "warbler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lowest_freq: 60
highest_freq: 500
hysteresis_db: -80
overlap: 4
bias: 0.3
`), 0o644))

	var config, err = LoadConfig(path)
	require.NoError(t, err)

	assert.InDelta(t, 60.0, config.LowestFreq, 1e-12)
	assert.InDelta(t, 500.0, config.HighestFreq, 1e-12)
	assert.InDelta(t, -80.0, config.HysteresisDB, 1e-12)
	assert.Equal(t, 4, config.Overlap)
	assert.InDelta(t, 0.3, config.Bias, 1e-12)

	// Unset keys keep their defaults.
	assert.InDelta(t, DEFMINRMS, config.MinRMS, 1e-12)
}

func TestLoadConfigMissingNamedFileIsAnError(t *testing.T) {
	var _, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigSanitizeClampsSilently(t *testing.T) {
	var config = Config{
		SampleRate:           -1,
		LowestFreq:           -5,
		HighestFreq:          10, // inverted range
		Overlap:              3,  // not a power of two
		Bias:                 7.0,
		MinRMS:               -2.0,
		BufSize:              1000, // not a power of two
		FidelityThreshold:    2.0,
		PeriodicityThreshold: -1.0,
	}
	config.sanitize()

	assert.InDelta(t, float64(DEFAULT_SAMPLE_RATE), config.SampleRate, 1e-12)
	assert.Greater(t, config.HighestFreq, config.LowestFreq)
	assert.Equal(t, DEFOVERLAP, config.Overlap)
	assert.InDelta(t, 1.0, config.Bias, 1e-12)
	assert.Zero(t, config.MinRMS)
	assert.Equal(t, 1024, config.BufSize)
	assert.InDelta(t, 1.0, config.FidelityThreshold, 1e-12)
	assert.Zero(t, config.PeriodicityThreshold)
}

func TestConfigNewDetectorWorks(t *testing.T) {
	var sr = float64(DEFAULT_SAMPLE_RATE)
	var config = DefaultConfig()
	config.Overlap = 2
	config.HysteresisDB = -100.0

	var d = config.NewDetector()
	for _, s := range GenSine(330.0, 0.5, 8192, sr) {
		d.Tick(s)
	}

	assert.InDelta(t, 330.0, d.GetFrequency(), 2.0)
}
