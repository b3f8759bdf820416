package audio

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mkbrennan/ditdah/internal/dsp"
)

// testPlayer returns a player that is rendered directly, without a device.
func testPlayer() *Player {
	return New(Config{
		SampleRate: 48000,
		Waveform:   dsp.WaveSine,
		RampMs:     5,
		Volume:     0.8,
	})
}

// render pulls d worth of audio from the player and returns the samples.
func render(p *Player, d time.Duration) []float32 {
	buf := make([]float32, p.frames(d))
	p.Render(buf)
	return buf
}

func maxAbs(samples []float32) float64 {
	var m float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > m {
			m = a
		}
	}
	return m
}

func TestNew_FillsDefaults(t *testing.T) {
	p := New(Config{})
	def := DefaultConfig()
	if p.config.SampleRate != def.SampleRate {
		t.Errorf("SampleRate = %d, want %d", p.config.SampleRate, def.SampleRate)
	}
	if p.config.Waveform != def.Waveform {
		t.Errorf("Waveform = %q, want %q", p.config.Waveform, def.Waveform)
	}
	if p.config.RampMs != def.RampMs {
		t.Errorf("RampMs = %d, want %d", p.config.RampMs, def.RampMs)
	}
	if p.config.Volume != def.Volume {
		t.Errorf("Volume = %v, want %v", p.config.Volume, def.Volume)
	}
}

func TestPlayer_ToneLifecycle(t *testing.T) {
	p := testPlayer()
	done := 0
	tone := p.ScheduleTone(0, 20*time.Millisecond, 600, func() { done++ })

	if !tone.Active() {
		t.Fatal("tone not tracked after scheduling")
	}
	samples := render(p, 30*time.Millisecond)

	// The envelope starts from silence.
	if math.Abs(float64(samples[0])) > 1e-6 {
		t.Errorf("first sample = %v, want 0", samples[0])
	}
	// Full gain is volume-scaled oscillator output.
	if peak := maxAbs(samples); math.Abs(peak-0.8) > 0.1 {
		t.Errorf("peak amplitude = %v, want ~0.8", peak)
	}
	// Past the tone's end everything is silent again.
	tail := samples[p.frames(25*time.Millisecond):]
	if maxAbs(tail) > 1e-6 {
		t.Errorf("tail not silent, peak %v", maxAbs(tail))
	}
	if p.VoiceCount() != 0 {
		t.Errorf("VoiceCount = %d after tone finished, want 0", p.VoiceCount())
	}
	if done != 1 {
		t.Errorf("onDone ran %d times, want 1", done)
	}
}

func TestPlayer_DelayedStart(t *testing.T) {
	p := testPlayer()
	p.ScheduleTone(10*time.Millisecond, 20*time.Millisecond, 600, nil)

	head := render(p, 10*time.Millisecond)
	if maxAbs(head) > 1e-6 {
		t.Errorf("sound before the scheduled start, peak %v", maxAbs(head))
	}
	body := render(p, 20*time.Millisecond)
	if maxAbs(body) < 0.5 {
		t.Errorf("no sound after the scheduled start, peak %v", maxAbs(body))
	}
}

func TestPlayer_CancelRampsFromCurrentGain(t *testing.T) {
	p := testPlayer()
	tone := p.ScheduleTone(0, 500*time.Millisecond, 600, nil)

	render(p, 20*time.Millisecond) // well into sustain
	tone.Cancel()

	// The release ramp (5ms) must decay smoothly; sample-to-sample steps
	// stay small, and after the ramp the output is silent.
	ramp := render(p, 5*time.Millisecond)
	for i := 1; i < len(ramp); i++ {
		if math.Abs(float64(ramp[i]-ramp[i-1])) > 0.1 {
			t.Fatalf("click during cancel ramp at sample %d: %v -> %v", i, ramp[i-1], ramp[i])
		}
	}
	tail := render(p, 5*time.Millisecond)
	if maxAbs(tail) > 1e-6 {
		t.Errorf("output not silent after cancel ramp, peak %v", maxAbs(tail))
	}
	if p.VoiceCount() != 0 {
		t.Errorf("VoiceCount = %d after cancel, want 0", p.VoiceCount())
	}
}

func TestPlayer_CancelBeforeStartDropsSilently(t *testing.T) {
	p := testPlayer()
	done := 0
	tone := p.ScheduleTone(time.Second, 100*time.Millisecond, 600, func() { done++ })
	tone.Cancel()

	if p.VoiceCount() != 0 {
		t.Errorf("VoiceCount = %d, want 0", p.VoiceCount())
	}
	if done != 1 {
		t.Errorf("onDone ran %d times, want 1", done)
	}
	if maxAbs(render(p, 20*time.Millisecond)) > 1e-6 {
		t.Error("cancelled-before-start tone still sounded")
	}
}

func TestPlayer_DisabledReturnsInertHandle(t *testing.T) {
	p := testPlayer()
	p.Disable()

	tone := p.ScheduleTone(0, 100*time.Millisecond, 600, nil)
	if tone.Active() {
		t.Error("tone active on a disabled player")
	}
	tone.Cancel() // must not panic
	if p.VoiceCount() != 0 {
		t.Errorf("VoiceCount = %d, want 0", p.VoiceCount())
	}
}

func TestPlayer_InvalidFrequencyIsNoOp(t *testing.T) {
	p := testPlayer()
	if tone := p.ScheduleTone(0, 100*time.Millisecond, -5, nil); tone.Active() {
		t.Error("tone active for invalid frequency")
	}
	if tone := p.ScheduleTone(0, 0, 600, nil); tone.Active() {
		t.Error("tone active for zero duration")
	}
}

func TestPlayer_VoiceCap(t *testing.T) {
	p := testPlayer()
	for i := 0; i < maxVoices; i++ {
		p.ScheduleTone(time.Second, 10*time.Millisecond, 600, nil)
	}
	if tone := p.ScheduleTone(time.Second, 10*time.Millisecond, 600, nil); tone.Active() {
		t.Error("tone tracked past the voice cap")
	}
	if p.VoiceCount() != maxVoices {
		t.Errorf("VoiceCount = %d, want %d", p.VoiceCount(), maxVoices)
	}
}

func TestPlayer_MuteRampsToSilence(t *testing.T) {
	p := testPlayer()
	p.ScheduleTone(0, time.Second, 600, nil)
	render(p, 20*time.Millisecond)

	p.SetMuted(true)
	ramp := render(p, 5*time.Millisecond)
	for i := 1; i < len(ramp); i++ {
		if math.Abs(float64(ramp[i]-ramp[i-1])) > 0.1 {
			t.Fatalf("click during mute ramp at sample %d", i)
		}
	}
	if tail := render(p, 5*time.Millisecond); maxAbs(tail) > 1e-6 {
		t.Errorf("output not silent while muted, peak %v", maxAbs(tail))
	}

	p.SetMuted(false)
	render(p, 5*time.Millisecond) // gain ramp back up
	if body := render(p, 10*time.Millisecond); maxAbs(body) < 0.5 {
		t.Errorf("no sound after unmute, peak %v", maxAbs(body))
	}
}

func TestPlayer_StartWithoutInit(t *testing.T) {
	p := testPlayer()
	if err := p.Start(context.Background()); err != ErrNotInitialized {
		t.Errorf("Start() error = %v, want %v", err, ErrNotInitialized)
	}
}

func TestPlayer_StopWithoutStart(t *testing.T) {
	p := testPlayer()
	if err := p.Stop(); err != ErrNotRunning {
		t.Errorf("Stop() error = %v, want %v", err, ErrNotRunning)
	}
}

func TestFloat32ToBytes(t *testing.T) {
	samples := []float32{0, 0.5, -1, 0.25}
	data := make([]byte, len(samples)*4)
	float32ToBytes(samples, data)

	for i, want := range samples {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		if got := math.Float32frombits(bits); got != want {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
}
