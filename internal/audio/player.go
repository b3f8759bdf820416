// internal/audio/player.go
// Package audio implements tone playback: a malgo output device driving a
// sample-accurate voice mixer, and the scheduler that plays token streams
// and keying feedback through it.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/mkbrennan/ditdah/internal/dsp"
)

var (
	ErrNotInitialized = errors.New("audio playback not initialized")
	ErrAlreadyRunning = errors.New("audio playback already running")
	ErrNotRunning     = errors.New("audio playback not running")
)

// maxVoices bounds the number of concurrently tracked tones. Requests past
// the cap return an inert handle instead of growing without limit.
const maxVoices = 64

// Config holds audio playback configuration
type Config struct {
	DeviceIndex int          // -1 for default device
	SampleRate  uint32       // e.g., 48000
	BufferSize  uint32       // frames per callback
	Waveform    dsp.Waveform // oscillator shape for all tones
	RampMs      int          // envelope attack/release ramp in milliseconds
	Volume      float64      // master full-scale gain, 0.0-1.0
}

// DefaultConfig returns sensible defaults for sidetone playback
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		BufferSize:  512,
		Waveform:    dsp.WaveSine,
		RampMs:      5,
		Volume:      0.8,
	}
}

// Tone is a cancellable handle to a scheduled tone. The zero value is an
// inert handle whose methods are no-ops.
type Tone struct {
	p  *Player
	id uint64
}

// Cancel stops the tone early. A tone that has started ramps down from its
// current gain; one that has not started yet is dropped silently.
func (t *Tone) Cancel() {
	if t.p != nil {
		t.p.cancelVoice(t.id)
	}
}

// Active reports whether the player still tracks this tone.
func (t *Tone) Active() bool {
	if t.p == nil {
		return false
	}
	return t.p.voiceActive(t.id)
}

// voice is one scheduled tone on the frame clock. It becomes audible at
// startFrame, begins its release ramp at releaseFrame, and is pruned once
// the envelope has decayed.
type voice struct {
	id           uint64
	osc          *dsp.Osc
	env          *dsp.Envelope
	startFrame   int64
	releaseFrame int64
	onDone       func()
}

// Player renders scheduled tones into an audio output device. All mixing
// happens on the device frame clock, so start and stop positions are
// sample-accurate regardless of when the scheduling call ran.
type Player struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	// disabled is set when the backend failed to initialize; every
	// subsequent tone request returns an inert handle.
	disabled bool
	mu       sync.Mutex

	frame  int64 // frames rendered so far
	voices []*voice
	nextID uint64

	masterGain   float64
	masterTarget float64
	masterStep   float64

	scratch []float32
}

// New creates a new playback instance. Zero-valued config fields are
// filled from DefaultConfig.
func New(cfg Config) *Player {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Waveform == "" {
		cfg.Waveform = def.Waveform
	}
	if cfg.RampMs <= 0 {
		cfg.RampMs = def.RampMs
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = def.Volume
	}
	return &Player{
		config:       cfg,
		masterGain:   1,
		masterTarget: 1,
	}
}

// Init initializes the audio backend
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	p.ctx = ctx
	return nil
}

// Disable marks the backend unusable. Tone requests become no-ops; the
// rest of the engine keeps running silently.
func (p *Player) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = true
}

// Disabled reports whether playback has been disabled.
func (p *Player) Disabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabled
}

// Start begins audio playback
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	if p.ctx == nil {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	p.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         p.config.SampleRate,
		PeriodSizeInFrames: p.config.BufferSize,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: 1,
		},
	}

	if p.config.DeviceIndex >= 0 {
		devices, err := p.listDevices()
		if err != nil {
			return err
		}
		if p.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				p.config.DeviceIndex, len(devices))
		}
		deviceConfig.Playback.DeviceID = devices[p.config.DeviceIndex].ID.Pointer()
	}

	onSendFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		if len(outputSamples) == 0 {
			return
		}
		p.mu.Lock()
		if cap(p.scratch) < int(frameCount) {
			p.scratch = make([]float32, frameCount)
		}
		buf := p.scratch[:frameCount]
		p.mu.Unlock()

		p.Render(buf)
		float32ToBytes(buf, outputSamples)
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.running = true
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = p.Stop()
	}()

	return nil
}

// Stop stops audio playback
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}

	if p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}

	p.running = false
	return nil
}

// Close releases all audio resources
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running && p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
		p.running = false
	}

	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		p.ctx.Free()
		p.ctx = nil
	}

	p.voices = nil
	return nil
}

// IsRunning returns true if playback is active
func (p *Player) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Player) listDevices() ([]malgo.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := p.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// ScheduleTone queues a tone to start delay from the current frame cursor
// and sound for duration. onDone (may be nil) runs once the tone has fully
// decayed, including after an early Cancel. Requests on a disabled player,
// with an invalid frequency, or past the voice cap return an inert handle.
func (p *Player) ScheduleTone(delay, duration time.Duration, freq float64, onDone func()) *Tone {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disabled || duration <= 0 || len(p.voices) >= maxVoices {
		return &Tone{}
	}

	osc, err := dsp.NewOsc(dsp.OscConfig{
		Frequency:  freq,
		SampleRate: float64(p.config.SampleRate),
		Waveform:   p.config.Waveform,
	})
	if err != nil {
		return &Tone{}
	}

	rampFrames := p.frames(time.Duration(p.config.RampMs) * time.Millisecond)
	durFrames := p.frames(duration)
	if durFrames < 2*rampFrames {
		rampFrames = durFrames / 2
	}
	env, err := dsp.NewEnvelope(int(rampFrames), int(rampFrames))
	if err != nil {
		return &Tone{}
	}

	p.nextID++
	start := p.frame + p.frames(delay)
	p.voices = append(p.voices, &voice{
		id:           p.nextID,
		osc:          osc,
		env:          env,
		startFrame:   start,
		releaseFrame: start + durFrames - rampFrames,
		onDone:       onDone,
	})
	return &Tone{p: p, id: p.nextID}
}

// SetMuted ramps the master gain to 0 or 1 over the configured ramp time,
// never snapping, so toggling sound mid-tone stays click-free.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if muted {
		p.masterTarget = 0
	} else {
		p.masterTarget = 1
	}
	ramp := p.frames(time.Duration(p.config.RampMs) * time.Millisecond)
	if ramp <= 0 {
		p.masterGain = p.masterTarget
		p.masterStep = 0
		return
	}
	p.masterStep = 1 / float64(ramp)
}

// Render mixes all live voices into out, one frame per element, advancing
// the frame clock. The device data callback drives it in normal operation;
// it is also the seam the playback tests render through.
func (p *Player) Render(out []float32) {
	p.mu.Lock()

	var finished []func()
	for i := range out {
		var mix float64
		for _, v := range p.voices {
			if p.frame < v.startFrame || v.env.Done() {
				continue
			}
			if p.frame >= v.releaseFrame {
				v.env.Release()
			}
			mix += float64(v.osc.Next()) * v.env.Next()
		}

		if p.masterGain < p.masterTarget {
			p.masterGain = math.Min(p.masterGain+p.masterStep, p.masterTarget)
		} else if p.masterGain > p.masterTarget {
			p.masterGain = math.Max(p.masterGain-p.masterStep, p.masterTarget)
		}

		s := mix * p.masterGain * p.config.Volume
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = float32(s)
		p.frame++
	}

	keep := p.voices[:0]
	for _, v := range p.voices {
		if v.env.Done() {
			if v.onDone != nil {
				finished = append(finished, v.onDone)
			}
			continue
		}
		keep = append(keep, v)
	}
	p.voices = keep
	p.mu.Unlock()

	// Completion callbacks run outside the lock; they may schedule again.
	for _, f := range finished {
		f()
	}
}

// VoiceCount returns the number of tracked voices (for testing).
func (p *Player) VoiceCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

func (p *Player) cancelVoice(id uint64) {
	p.mu.Lock()
	var done func()
	for i, v := range p.voices {
		if v.id != id {
			continue
		}
		if p.frame < v.startFrame {
			// Never sounded; drop outright.
			done = v.onDone
			p.voices = append(p.voices[:i], p.voices[i+1:]...)
		} else {
			v.env.Release()
			v.releaseFrame = p.frame
		}
		break
	}
	p.mu.Unlock()
	if done != nil {
		done()
	}
}

func (p *Player) voiceActive(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.voices {
		if v.id == id {
			return true
		}
	}
	return false
}

// frames converts a duration to a frame count at the configured rate.
func (p *Player) frames(d time.Duration) int64 {
	return int64(float64(p.config.SampleRate) * d.Seconds())
}

// float32ToBytes writes samples into a little-endian float32 byte buffer
func float32ToBytes(samples []float32, data []byte) {
	for i, s := range samples {
		if i*4+3 >= len(data) {
			return
		}
		bits := math.Float32bits(s)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
}
