// internal/dsp/osc.go
// Package dsp implements the sample-domain building blocks of the tone
// engine: a band-limited-enough oscillator and a linear gain envelope.
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("frequency must be positive and less than Nyquist frequency")
	// ErrInvalidWaveform indicates the waveform name is not supported
	ErrInvalidWaveform = errors.New("waveform must be one of sine, square, triangle")
)

// Waveform selects the oscillator shape.
type Waveform string

const (
	// WaveSine is a pure sine tone, the usual CW sidetone.
	WaveSine Waveform = "sine"
	// WaveSquare is a hard square wave.
	WaveSquare Waveform = "square"
	// WaveTriangle is a softer triangle wave.
	WaveTriangle Waveform = "triangle"
)

// Valid reports whether the waveform name is supported.
func (w Waveform) Valid() bool {
	switch w {
	case WaveSine, WaveSquare, WaveTriangle:
		return true
	}
	return false
}

// OscConfig holds configuration for an oscillator.
type OscConfig struct {
	// Frequency is the tone frequency in Hz (from config: tone_frequency)
	Frequency float64
	// SampleRate is the audio sample rate in Hz (from config: sample_rate)
	SampleRate float64
	// Waveform is the oscillator shape (from config: waveform)
	Waveform Waveform
}

// Osc generates one tone at a fixed frequency. Each voice of the mixer
// owns its own oscillator; phase starts at zero so a tone always begins
// at a zero crossing.
type Osc struct {
	config   OscConfig
	phase    float64 // current phase in [0, 1)
	phaseInc float64 // pre-computed: frequency / sampleRate
}

// NewOsc creates an oscillator with the given configuration.
func NewOsc(cfg OscConfig) (*Osc, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Frequency <= 0 || cfg.Frequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}
	if !cfg.Waveform.Valid() {
		return nil, ErrInvalidWaveform
	}

	return &Osc{
		config:   cfg,
		phaseInc: cfg.Frequency / cfg.SampleRate,
	}, nil
}

// Next returns the next sample in [-1, 1] and advances the phase.
func (o *Osc) Next() float32 {
	var v float64
	switch o.config.Waveform {
	case WaveSquare:
		if o.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case WaveTriangle:
		// Rises 0→1 over the first half period, falls 1→-1... folded so
		// the output spans [-1, 1] with zero crossings at phase 0 and 0.5.
		v = 4*math.Abs(o.phase-0.5) - 1
	default:
		v = math.Sin(2 * math.Pi * o.phase)
	}

	o.phase += o.phaseInc
	if o.phase >= 1 {
		o.phase -= 1
	}
	return float32(v)
}

// Config returns the oscillator configuration (for testing and inspection)
func (o *Osc) Config() OscConfig {
	return o.config
}
