package warbler

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to the audio device commonly called a
 *		"sound card" for historical reasons.
 *
 *		Capture goes through PortAudio's default input
 *		device.  Samples are pulled in small blocks and fed to
 *		the dual detector one at a time; the detector itself
 *		never knows where the samples came from.
 *
 *----------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"
)

/* Capture block size.  Small enough for a responsive display,
 * large enough to keep the callback overhead negligible. */
const AUDIO_BLOCK_SIZE = 256

/*------------------------------------------------------------------
 *
 * Name:	ListenAndTrack
 *
 * Purpose:	Open the default input device and run the detector
 *		until stop is closed or an error occurs.
 *
 * Inputs:	detector - Configured dual detector.  Its sample rate
 *			   must match the requested capture rate.
 *
 *		onReading - Called after every completed analysis
 *			    window with the running sample index and
 *			    the current fused estimate.
 *
 *----------------------------------------------------------------*/

func ListenAndTrack(detector *DualPitchDetector, sampleRate float64, stop <-chan struct{}, onReading func(frame int, info PitchInfo)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("could not initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	var in = make([]float32, AUDIO_BLOCK_SIZE)
	var stream, err = portaudio.OpenDefaultStream(1, 0, sampleRate, len(in), in)
	if err != nil {
		return fmt.Errorf("could not open default input: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("could not start input stream: %w", err)
	}
	defer stream.Stop()

	var frame = 0
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflows happen when the process is briefly
			// starved; skip the block and carry on.
			if err == portaudio.InputOverflowed {
				continue
			}
			return fmt.Errorf("input stream read: %w", err)
		}

		for _, s := range in {
			frame++
			if detector.Tick(float64(s)) && onReading != nil {
				onReading(frame, detector.Current())
			}
		}
	}
}

/*------------------------------------------------------------------
 *
 * Name:	TrackerMain
 *
 * Purpose:	Main program for the live pitch tracker.
 *
 *----------------------------------------------------------------*/

func TrackerMain() {
	var configFile = pflag.StringP("config", "c", "", "Tuning file (warbler.yaml).")
	var lowest = pflag.Float64P("lowest", "l", 0, "Lowest trackable frequency in Hz.")
	var highest = pflag.Float64P("highest", "H", 0, "Highest trackable frequency in Hz.")
	var hysteresis = pflag.Float64P("hysteresis", "y", 0, "Zero crossing hysteresis in dB (negative).")
	var sampleRate = pflag.IntP("sample-rate", "r", 0, "Capture sample rate.")
	var traceFile = pflag.StringP("trace-file", "T", "", "Append readings to this CSV file.")
	var traceDir = pflag.StringP("trace-dir", "t", "", "Write daily CSV trace files in this directory.")
	var verbose = pflag.BoolP("verbose", "v", false, "Log every reading, not just note changes.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Live microphone pitch tracker.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Listens on the default input device and reports the\n")
		fmt.Fprintf(os.Stderr, "detected fundamental frequency as it changes.\n")
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	var config, configErr = LoadConfig(*configFile)
	if configErr != nil {
		log.Fatal("Could not load config", "file", *configFile, "err", configErr)
	}

	// Command line overrides.
	if *lowest > 0 {
		config.LowestFreq = *lowest
	}
	if *highest > 0 {
		config.HighestFreq = *highest
	}
	if *hysteresis < 0 {
		config.HysteresisDB = *hysteresis
	}
	if *sampleRate > 0 {
		config.SampleRate = float64(*sampleRate)
	}

	var detector = config.NewDetector()

	var trace *PitchTrace
	switch {
	case *traceFile != "" && *traceDir != "":
		log.Fatal("Use --trace-file or --trace-dir but not both")
	case *traceFile != "":
		trace = NewPitchTrace(false, *traceFile)
	case *traceDir != "":
		trace = NewPitchTrace(true, *traceDir)
	}
	if trace != nil {
		defer trace.Close()
	}

	var stop = make(chan struct{})
	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		close(stop)
	}()

	log.Info("Listening",
		"sample_rate", config.SampleRate,
		"lowest", config.LowestFreq,
		"highest", config.HighestFreq)

	var lastReported = 0.0
	var err = ListenAndTrack(detector, config.SampleRate, stop, func(frame int, info PitchInfo) {
		if trace != nil {
			var f1 = 0.0
			if p := detector.PeriodDetection().GetPeriod(); p > 0 {
				f1 = config.SampleRate / p
			}
			if err := trace.Write(frame, info, f1, detector.PitchDetector().GetFrequency()); err != nil {
				log.Error("Trace write failed", "err", err)
			}
		}

		if info.Frequency == 0.0 {
			return
		}

		log.Debug("Reading", "frame", frame, "freq", info.Frequency, "periodicity", info.Periodicity)

		// Only announce moves of more than a quarter semitone.
		var moved = lastReported == 0.0 ||
			info.Frequency > lastReported*1.015625 ||
			info.Frequency < lastReported*0.984375
		if moved {
			log.Info("Pitch", "freq", fmt.Sprintf("%.2f", info.Frequency), "periodicity", fmt.Sprintf("%.3f", info.Periodicity))
			lastReported = info.Frequency
		}
	})
	if err != nil {
		log.Fatal("Capture failed", "err", err)
	}
}
