package warbler

/*------------------------------------------------------------------
 *
 * Purpose:     Generate test signals, optionally writing them to a
 *		.WAV sound file.
 *
 *		Sine, square, swept sine, a fundamental-plus-harmonic
 *		mix, and Gaussian noise.  These are what the detector
 *		tests and the gentones command feed the analysis with:
 *		controlled, reproducible inputs.
 *
 *		Tones come from a table-lookup oscillator driven by a
 *		32 bit phase accumulator, so the frequency is exact
 *		even when it doesn't divide the sample rate.
 *
 *----------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/spf13/pflag"
)

const SINE_TABLE_SIZE = 1024

const TICKS_PER_CYCLE = 256.0 * 256.0 * 256.0 * 256.0

type ToneGenerator struct {
	sampleRate float64
	phase      uint32
	ticks      uint32 // phase change per sample
	table      [SINE_TABLE_SIZE]float64
}

func NewToneGenerator(freq float64, sampleRate float64) *ToneGenerator {
	var g = new(ToneGenerator)

	g.sampleRate = sampleRate
	for i := range g.table {
		g.table[i] = math.Sin(2.0 * math.Pi * float64(i) / SINE_TABLE_SIZE)
	}
	g.SetFrequency(freq)

	return g
}

func (g *ToneGenerator) SetFrequency(freq float64) {
	g.ticks = uint32(freq * TICKS_PER_CYCLE / g.sampleRate)
}

// Next returns the next sine sample in -1..1, interpolated between
// table entries.
func (g *ToneGenerator) Next() float64 {
	var pos = float64(g.phase) * SINE_TABLE_SIZE / TICKS_PER_CYCLE
	var i = int(pos)
	var frac = pos - float64(i)

	var a = g.table[i&(SINE_TABLE_SIZE-1)]
	var b = g.table[(i+1)&(SINE_TABLE_SIZE-1)]

	g.phase += g.ticks

	return a + (b-a)*frac
}

// NextSquare returns the sign of the same oscillator: a square wave
// at the same frequency and phase.
func (g *ToneGenerator) NextSquare() float64 {
	var s = g.Next()
	if s >= 0 {
		return 1.0
	}
	return -1.0
}

/*
 * Whole-buffer helpers used by the tests and gentones.
 */

func GenSine(freq float64, amplitude float64, n int, sampleRate float64) []float64 {
	var g = NewToneGenerator(freq, sampleRate)
	var out = make([]float64, n)
	for i := range out {
		out[i] = amplitude * g.Next()
	}
	return out
}

func GenSquare(freq float64, amplitude float64, n int, sampleRate float64) []float64 {
	var g = NewToneGenerator(freq, sampleRate)
	var out = make([]float64, n)
	for i := range out {
		out[i] = amplitude * g.NextSquare()
	}
	return out
}

// GenMix generates a fundamental plus its second harmonic at the
// given relative level.
func GenMix(freq float64, amplitude float64, harmonicLevel float64, n int, sampleRate float64) []float64 {
	var g1 = NewToneGenerator(freq, sampleRate)
	var g2 = NewToneGenerator(freq*2.0, sampleRate)
	var out = make([]float64, n)
	for i := range out {
		out[i] = amplitude * (g1.Next() + harmonicLevel*g2.Next())
	}
	return out
}

// GenSweep ramps linearly from freq1 to freq2 over the whole buffer.
// The oscillator is re-tuned every sample, so the sweep is smooth.
func GenSweep(freq1 float64, freq2 float64, amplitude float64, n int, sampleRate float64) []float64 {
	var g = NewToneGenerator(freq1, sampleRate)
	var out = make([]float64, n)
	for i := range out {
		g.SetFrequency(freq1 + (freq2-freq1)*float64(i)/float64(n))
		out[i] = amplitude * g.Next()
	}
	return out
}

func GenNoise(amplitude float64, n int, seed int64) []float64 {
	var rng = rand.New(rand.NewSource(seed))
	var out = make([]float64, n)
	for i := range out {
		out[i] = amplitude * rng.NormFloat64()
	}
	return out
}

/*------------------------------------------------------------------
 *
 * Purpose:	Minimal 16 bit PCM .WAV writing and reading.
 *
 *		Just enough for the tools to exchange test signals;
 *		no compressed formats, no extensible headers.
 *		Multi-channel files are mixed down to mono on read.
 *
 *----------------------------------------------------------------*/

type wav_header struct {
	Riff          [4]byte
	FileSize      uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func WriteWAV(path string, samples []float64, sampleRate int) error {
	var f, err = os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var h = wav_header{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      uint32(36 + len(samples)*2),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1, /* PCM */
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(samples) * 2),
	}

	if err := binary.Write(f, binary.LittleEndian, &h); err != nil {
		return err
	}

	var pcm = make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(clipf(-1.0, s, 1.0) * 32767.0)
	}

	return binary.Write(f, binary.LittleEndian, pcm)
}

func ReadWAV(path string) ([]float64, int, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var h wav_header
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		return nil, 0, err
	}

	if string(h.Riff[:]) != "RIFF" || string(h.Wave[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("%s: not a WAV file", path)
	}
	if h.AudioFormat != 1 || h.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("%s: only 16 bit PCM is supported", path)
	}

	var raw, readErr = io.ReadAll(f)
	if readErr != nil {
		return nil, 0, readErr
	}

	var channels = int(h.NumChannels)
	if channels < 1 {
		return nil, 0, fmt.Errorf("%s: bad channel count", path)
	}
	var frames = len(raw) / 2 / channels
	var samples = make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum = 0.0
		for ch := 0; ch < channels; ch++ {
			var off = (i*channels + ch) * 2
			var v = int16(uint16(raw[off]) | uint16(raw[off+1])<<8)
			sum += float64(v) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}

	return samples, int(h.SampleRate), nil
}

/*------------------------------------------------------------------
 *
 * Name:	GenTonesMain
 *
 * Purpose:	Command line tool to write test signals as .WAV files
 *		for exercising the detectors.
 *
 *----------------------------------------------------------------*/

func GenTonesMain() {
	var shape = pflag.StringP("shape", "s", "sine", "Signal shape: sine, square, mix, sweep, noise.")
	var freq = pflag.Float64P("frequency", "f", 440.0, "Tone frequency in Hz.")
	var freq2 = pflag.Float64P("frequency2", "F", 880.0, "End frequency for sweep.")
	var amplitude = pflag.Float64P("amplitude", "a", 0.5, "Peak amplitude, 0..1.")
	var seconds = pflag.Float64P("seconds", "n", 1.0, "Duration in seconds.")
	var sampleRate = pflag.IntP("sample-rate", "r", DEFAULT_SAMPLE_RATE, "Sample rate.")
	var outputFile = pflag.StringP("output-file", "o", "", "Send output to .wav file.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate test signals as .WAV files.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  gentones -s sine -f 440 -o a440.wav\n")
		fmt.Fprintf(os.Stderr, "          gentones -s sweep -f 220 -F 440 -o ramp.wav\n")
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *outputFile == "" {
		fmt.Fprintf(os.Stderr, "An output file is required (-o).\n")
		os.Exit(1)
	}

	var n = int(*seconds * float64(*sampleRate))
	var sr = float64(*sampleRate)

	var samples []float64
	switch *shape {
	case "sine":
		samples = GenSine(*freq, *amplitude, n, sr)
	case "square":
		samples = GenSquare(*freq, *amplitude, n, sr)
	case "mix":
		samples = GenMix(*freq, *amplitude, 0.5, n, sr)
	case "sweep":
		samples = GenSweep(*freq, *freq2, *amplitude, n, sr)
	case "noise":
		samples = GenNoise(*amplitude, n, 1)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shape %s.\n", *shape)
		os.Exit(1)
	}

	if err := WriteWAV(*outputFile, samples, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Could not write %s: %s\n", *outputFile, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d samples to %s.\n", n, *outputFile)
}
