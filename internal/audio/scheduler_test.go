package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkbrennan/ditdah/internal/morse"
)

func testScheduler(wpm int) (*Scheduler, *Player) {
	p := testPlayer()
	return NewScheduler(p, morse.NewProfile(wpm)), p
}

func TestScheduler_SetFrequencyClamps(t *testing.T) {
	s, _ := testScheduler(20)

	cases := []struct {
		in   float64
		want float64
	}{
		{50, MinFrequency},
		{5000, MaxFrequency},
		{700, 700},
	}
	for _, tc := range cases {
		s.SetFrequency(tc.in)
		if got := s.Frequency(); got != tc.want {
			t.Errorf("SetFrequency(%v): Frequency() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestScheduler_KeyToneSelfCleans(t *testing.T) {
	s, p := testScheduler(20)

	s.KeyTone(morse.Dit)
	if got := s.PendingTones(); got != 1 {
		t.Fatalf("PendingTones = %d after KeyTone, want 1", got)
	}
	// A dit at 20 WPM is 60ms; render past it so the voice decays.
	render(p, 80*time.Millisecond)
	if got := s.PendingTones(); got != 0 {
		t.Errorf("PendingTones = %d after tone finished, want 0", got)
	}
}

func TestScheduler_FeedbackDoesNotDisturbPlayback(t *testing.T) {
	s, p := testScheduler(20)

	s.PlayStream("-", nil)  // 180ms dah
	s.KeyTone(morse.Dit)    // 60ms feedback tone
	render(p, 100*time.Millisecond)

	// The feedback tone has finished and pruned itself; the playback tone
	// is still live in its own collection.
	if got := s.PendingTones(); got != 1 {
		t.Errorf("PendingTones = %d, want 1 (playback tone only)", got)
	}
}

func TestScheduler_PlayStreamCompletion(t *testing.T) {
	s, _ := testScheduler(60) // dit = 20ms

	var completed atomic.Int32
	start := time.Now()
	s.PlayStream(". .", func() { completed.Add(1) })

	// Total: 20ms dit + 20ms gap + 20ms dit + completion buffer.
	total := 60*time.Millisecond + completionBuffer
	time.Sleep(total + 100*time.Millisecond)

	if got := completed.Load(); got != 1 {
		t.Fatalf("onComplete ran %d times, want 1", got)
	}
	if elapsed := time.Since(start); elapsed < total {
		t.Errorf("onComplete fired after %v, before the stream could finish (%v)", elapsed, total)
	}
}

func TestScheduler_StopAllSuppressesCompletion(t *testing.T) {
	s, _ := testScheduler(60)

	var completed atomic.Int32
	s.PlayStream(morse.EncodeSentence("SOS"), func() { completed.Add(1) })
	if s.PendingTones() == 0 {
		t.Fatal("no tones tracked after PlayStream")
	}

	s.StopAll()
	if got := s.PendingTones(); got != 0 {
		t.Errorf("PendingTones = %d after StopAll, want 0", got)
	}

	// Wait well past the stream's natural end; the callback must stay dead.
	time.Sleep(700 * time.Millisecond)
	if got := completed.Load(); got != 0 {
		t.Errorf("onComplete ran %d times after StopAll, want 0", got)
	}
}

func TestScheduler_MuteStopsEverything(t *testing.T) {
	s, p := testScheduler(20)

	s.PlayStream(". . .", nil)
	s.SetMuted(true)

	if !s.Muted() {
		t.Error("Muted() = false after SetMuted(true)")
	}
	if got := s.PendingTones(); got != 0 {
		t.Errorf("PendingTones = %d after mute, want 0", got)
	}

	// While muted, new tone requests are dropped.
	s.KeyTone(morse.Dah)
	if got := s.PendingTones(); got != 0 {
		t.Errorf("PendingTones = %d for KeyTone while muted, want 0", got)
	}

	s.SetMuted(false)
	s.KeyTone(morse.Dah)
	if got := s.PendingTones(); got != 1 {
		t.Errorf("PendingTones = %d after unmute, want 1", got)
	}
	render(p, 300*time.Millisecond)
}

func TestScheduler_PlayStreamOnDisabledPlayerStillCompletes(t *testing.T) {
	s, p := testScheduler(60)
	p.Disable()

	var completed atomic.Int32
	s.PlayStream(".", func() { completed.Add(1) })

	time.Sleep(20*time.Millisecond + completionBuffer + 100*time.Millisecond)
	if got := completed.Load(); got != 1 {
		t.Errorf("onComplete ran %d times on a disabled player, want 1", got)
	}
}
