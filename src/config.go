package warbler

/*------------------------------------------------------------------
 *
 * Purpose:	Detector tuning configuration.
 *
 *		All knobs a caller can reasonably want to turn, in one
 *		YAML-loadable struct.  Out-of-range values are clamped
 *		or defaulted silently - a bad config can degrade the
 *		tracking but never produces a runtime error.
 *
 *----------------------------------------------------------------*/

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SampleRate float64 `yaml:"sample_rate"`

	LowestFreq  float64 `yaml:"lowest_freq"`
	HighestFreq float64 `yaml:"highest_freq"`

	/* ZCC hysteresis in dB, e.g. -120. */
	HysteresisDB float64 `yaml:"hysteresis_db"`

	/* SNAC. */
	Overlap int     `yaml:"overlap"`
	Bias    float64 `yaml:"bias"`
	MinRMS  float64 `yaml:"min_rms"`
	BufSize int     `yaml:"buf_size"`

	/* Fusion thresholds. */
	FidelityThreshold    float64 `yaml:"fidelity_threshold"`
	PeriodicityThreshold float64 `yaml:"periodicity_threshold"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:           DEFAULT_SAMPLE_RATE,
		LowestFreq:           80.0,
		HighestFreq:          1000.0,
		HysteresisDB:         -120.0,
		Overlap:              DEFOVERLAP,
		Bias:                 DEFBIAS,
		MinRMS:               DEFMINRMS,
		BufSize:              1024,
		FidelityThreshold:    0.98,
		PeriodicityThreshold: 0.98,
	}
}

// Conventional search locations, nearest first.
var config_search_locations = []string{
	"warbler.yaml",
	".warbler.yaml",
}

/*------------------------------------------------------------------
 *
 * Name:	LoadConfig
 *
 * Purpose:	Read a tuning file, if one can be found.
 *
 * Inputs:	path	- Explicit file, or "" to try the conventional
 *			  locations (working directory, then home).
 *
 * Returns:	The defaults overlaid with whatever the file set.  A
 *		missing file with path == "" is not an error; a named
 *		file that can't be read is.
 *
 *----------------------------------------------------------------*/

func LoadConfig(path string) (Config, error) {
	var config = DefaultConfig()

	if path == "" {
		for _, loc := range config_search_locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
		if path == "" {
			if home, err := os.UserHomeDir(); err == nil {
				var loc = filepath.Join(home, ".warbler.yaml")
				if _, err := os.Stat(loc); err == nil {
					path = loc
				}
			}
		}
		if path == "" {
			return config, nil
		}
	}

	var raw, err = os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, err
	}

	config.sanitize()
	return config, nil
}

// Bad configuration is clamped or defaulted, never reported.
func (c *Config) sanitize() {
	if c.SampleRate <= 0 {
		c.SampleRate = DEFAULT_SAMPLE_RATE
	}
	if c.LowestFreq <= 0 {
		c.LowestFreq = 80.0
	}
	if c.HighestFreq <= c.LowestFreq {
		c.HighestFreq = c.LowestFreq * 8
	}
	if c.Overlap != 1 && c.Overlap != 2 && c.Overlap != 4 && c.Overlap != 8 {
		c.Overlap = DEFOVERLAP
	}
	c.Bias = clipf(0.0, c.Bias, 1.0)
	c.MinRMS = clipf(0.0, c.MinRMS, 1.0)
	if c.BufSize < 2 {
		c.BufSize = 1024
	}
	c.BufSize = next_power_of_2(c.BufSize)
	c.FidelityThreshold = clipf(0.0, c.FidelityThreshold, 1.0)
	c.PeriodicityThreshold = clipf(0.0, c.PeriodicityThreshold, 1.0)
}

// NewDetector builds a fully configured dual detector.
func (c *Config) NewDetector() *DualPitchDetector {
	var cc = *c
	cc.sanitize()

	var d = NewDualPitchDetector(cc.LowestFreq, cc.HighestFreq, cc.BufSize, cc.SampleRate)
	d.SetHysteresis(cc.HysteresisDB)
	d.SetFidelityThreshold(cc.FidelityThreshold)
	d.SetPeriodicityThreshold(cc.PeriodicityThreshold)

	var snac = d.PeriodDetection().snac
	snac.SetOverlap(cc.Overlap)
	snac.SetBias(cc.Bias)
	snac.SetMinRMS(cc.MinRMS)

	return d
}
