package warbler

/* Test fixture for the pitch detectors */

/*-------------------------------------------------------------------
 *
 * Purpose:     Analyze an audio file instead of the audio device.
 *
 *		This can be used to test the detectors under
 *		controlled and reproducible conditions: generate a
 *		known signal with gentones, or rip a recording of a
 *		known performance, and check what the tracker makes
 *		of it.
 *
 *		Takes .wav (16 bit PCM) or .mp3.  Stereo is mixed
 *		down to mono before analysis.
 *
 *--------------------------------------------------------------------*/

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"
	"github.com/spf13/pflag"
)

/*------------------------------------------------------------------
 *
 * Name:	ReadMP3
 *
 * Purpose:	Decode a whole MP3 file to mono float64 samples.
 *
 * Returns:	Samples, the decoder's sample rate, and the raw
 *		stereo PCM (for optional playback).
 *
 *----------------------------------------------------------------*/

func ReadMP3(path string) ([]float64, int, []byte, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, 0, nil, err
	}
	defer f.Close()

	var d, decErr = mp3.NewDecoder(f)
	if decErr != nil {
		return nil, 0, nil, fmt.Errorf("%s: %w", path, decErr)
	}

	var pcm, readErr = io.ReadAll(d)
	if readErr != nil {
		return nil, 0, nil, fmt.Errorf("%s: %w", path, readErr)
	}

	// The decoder always produces 16 bit stereo.
	var frames = len(pcm) / 4
	var samples = make([]float64, frames)
	for i := 0; i < frames; i++ {
		var l = int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8)
		var r = int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8)
		samples[i] = (float64(l) + float64(r)) / 2.0 / 32768.0
	}

	return samples, d.SampleRate(), pcm, nil
}

type file_analysis struct {
	readings  int
	voiced    int
	min_freq  float64
	max_freq  float64
	mean_freq float64
}

/*------------------------------------------------------------------
 *
 * Name:	AnalyzeBuffer
 *
 * Purpose:	Run the dual detector over a buffer and collect the
 *		readings.
 *
 * Inputs:	onReading - Optional; called on every completed
 *			    analysis window.
 *
 *----------------------------------------------------------------*/

func AnalyzeBuffer(detector *DualPitchDetector, samples []float64, onReading func(frame int, info PitchInfo)) file_analysis {
	var result file_analysis

	for n, s := range samples {
		if !detector.Tick(s) {
			continue
		}

		var info = detector.Current()
		result.readings++
		if onReading != nil {
			onReading(n, info)
		}

		if info.Frequency > 0.0 {
			result.voiced++
			if result.min_freq == 0.0 || info.Frequency < result.min_freq {
				result.min_freq = info.Frequency
			}
			if info.Frequency > result.max_freq {
				result.max_freq = info.Frequency
			}
			// Incremental mean over voiced readings.
			result.mean_freq += (info.Frequency - result.mean_freq) / float64(result.voiced)
		}
	}

	return result
}

/*------------------------------------------------------------------
 *
 * Name:	PtestMain
 *
 * Purpose:	Main program for offline file analysis.
 *
 *----------------------------------------------------------------*/

func PtestMain() {
	var configFile = pflag.StringP("config", "c", "", "Tuning file (warbler.yaml).")
	var lowest = pflag.Float64P("lowest", "l", 0, "Lowest trackable frequency in Hz.")
	var highest = pflag.Float64P("highest", "H", 0, "Highest trackable frequency in Hz.")
	var play = pflag.BoolP("play", "p", false, "Play the file while analyzing (mp3 only).")
	var quiet = pflag.BoolP("quiet", "q", false, "Only print the summary.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Offline pitch analysis of an audio file.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] FILE.wav|FILE.mp3\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if len(pflag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "Exactly one input file required.\n")
		pflag.Usage()
		os.Exit(1)
	}
	var path = pflag.Arg(0)

	var samples []float64
	var sampleRate int
	var pcm []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		samples, sampleRate, pcm, err = ReadMP3(path)
	case ".wav":
		samples, sampleRate, err = ReadWAV(path)
	default:
		fmt.Fprintf(os.Stderr, "Unrecognized file type %s.\n", path)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Could not read input", "file", path, "err", err)
	}

	var config, configErr = LoadConfig(*configFile)
	if configErr != nil {
		log.Fatal("Could not load config", "file", *configFile, "err", configErr)
	}
	config.SampleRate = float64(sampleRate)
	if *lowest > 0 {
		config.LowestFreq = *lowest
	}
	if *highest > 0 {
		config.HighestFreq = *highest
	}

	var detector = config.NewDetector()

	var player oto.Player
	if *play {
		if pcm == nil {
			log.Warn("Playback is only supported for mp3 input")
		} else {
			var ctx, ready, ctxErr = oto.NewContext(sampleRate, 2, 2)
			if ctxErr != nil {
				log.Fatal("Could not open audio output", "err", ctxErr)
			}
			<-ready
			player = ctx.NewPlayer(bytes.NewReader(pcm))
			player.Play()
		}
	}

	var onReading func(frame int, info PitchInfo)
	if !*quiet {
		onReading = func(frame int, info PitchInfo) {
			if info.Frequency > 0.0 {
				fmt.Printf("%10.4fs  %8.2f Hz  periodicity %.3f\n",
					float64(frame)/float64(sampleRate), info.Frequency, info.Periodicity)
			}
		}
	}

	var result = AnalyzeBuffer(detector, samples, onReading)

	fmt.Printf("\n")
	fmt.Printf("%d samples, %d analysis windows, %d voiced.\n", len(samples), result.readings, result.voiced)
	if result.voiced > 0 {
		fmt.Printf("Frequency range %.2f .. %.2f Hz, mean %.2f Hz.\n",
			result.min_freq, result.max_freq, result.mean_freq)
	}

	if player != nil {
		for player.IsPlaying() {
			time.Sleep(100 * time.Millisecond)
		}
		player.Close()
	}
}
