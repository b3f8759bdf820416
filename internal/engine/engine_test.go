package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/mkbrennan/ditdah/internal/audio"
	"github.com/mkbrennan/ditdah/internal/keyer"
	"github.com/mkbrennan/ditdah/internal/morse"
	"github.com/mkbrennan/ditdah/internal/session"
)

// eventLog collects engine events for assertions.
type eventLog struct {
	mu       sync.Mutex
	symbols  []SymbolEvent
	chars    []CharacterEvent
	finished int
}

func (l *eventLog) callbacks() Callbacks {
	return Callbacks{
		SymbolEmitted: func(ev SymbolEvent) {
			l.mu.Lock()
			l.symbols = append(l.symbols, ev)
			l.mu.Unlock()
		},
		CharacterResolved: func(ev CharacterEvent) {
			l.mu.Lock()
			l.chars = append(l.chars, ev)
			l.mu.Unlock()
		},
		SentenceFinished: func() {
			l.mu.Lock()
			l.finished++
			l.mu.Unlock()
		},
	}
}

func (l *eventLog) characterEvents() []CharacterEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CharacterEvent(nil), l.chars...)
}

func (l *eventLog) symbolEvents() []SymbolEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SymbolEvent(nil), l.symbols...)
}

func (l *eventLog) finishedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finished
}

// testEngine runs at 60 WPM (dit 20ms, interGap 60ms) over a disabled
// audio backend so no device is needed.
func testEngine(t *testing.T) (*Engine, *eventLog) {
	t.Helper()
	player := audio.New(audio.DefaultConfig())
	player.Disable()
	profile := morse.NewProfile(60)
	e, err := New(profile, audio.NewScheduler(player, profile), 1.0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log := &eventLog{}
	e.SetCallbacks(log.callbacks())
	return e, log
}

// settle waits comfortably past the decode timeout at 60 WPM.
const settle = 250 * time.Millisecond

// tap keys one symbol through a full press/release.
func tap(e *Engine, p keyer.Paddle) {
	e.Press(p, "test")
	e.Release(p, "test")
}

func TestEngine_InvalidMultiplier(t *testing.T) {
	profile := morse.NewProfile(20)
	player := audio.New(audio.DefaultConfig())
	player.Disable()
	if _, err := New(profile, audio.NewScheduler(player, profile), 0); err == nil {
		t.Error("New() with zero multiplier did not fail")
	}
}

func TestEngine_BeginSessionEmptySentence(t *testing.T) {
	e, _ := testEngine(t)
	if err := e.BeginSession("   "); err != session.ErrEmptySentence {
		t.Errorf("BeginSession error = %v, want %v", err, session.ErrEmptySentence)
	}
}

func TestEngine_SessionBeforeBegin(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Session(); err != ErrNoSession {
		t.Errorf("Session() error = %v, want %v", err, ErrNoSession)
	}
}

func TestEngine_CorrectCharacterAdvances(t *testing.T) {
	e, log := testEngine(t)
	if err := e.BeginSession("ET"); err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}

	// E is a single dit.
	tap(e, keyer.PaddleDit)
	time.Sleep(settle)

	chars := log.characterEvents()
	if len(chars) != 1 {
		t.Fatalf("got %d character events, want 1", len(chars))
	}
	if !chars[0].Correct || chars[0].Decoded != 'E' || chars[0].Target != 'E' {
		t.Errorf("event = %+v, want correct E", chars[0])
	}

	clock, err := e.Session()
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got := clock.CurrentChar(); got != 'T' {
		t.Errorf("CurrentChar() = %q after advance, want T", got)
	}
	if log.finishedCount() != 0 {
		t.Error("sentence reported finished mid-way")
	}
}

func TestEngine_IncorrectKeepsTarget(t *testing.T) {
	e, log := testEngine(t)
	e.BeginSession("T")

	// Keying a dit against target T misses.
	tap(e, keyer.PaddleDit)
	time.Sleep(settle)

	chars := log.characterEvents()
	if len(chars) != 1 {
		t.Fatalf("got %d character events, want 1", len(chars))
	}
	if chars[0].Correct || chars[0].Decoded != 'E' || chars[0].Target != 'T' {
		t.Errorf("event = %+v, want incorrect E against T", chars[0])
	}

	clock, _ := e.Session()
	if got := clock.CurrentChar(); got != 'T' {
		t.Errorf("CurrentChar() = %q after miss, want unchanged T", got)
	}
	if got := clock.IncorrectAttempts(); got != 1 {
		t.Errorf("IncorrectAttempts() = %d, want 1", got)
	}
}

func TestEngine_SentenceFinished(t *testing.T) {
	e, log := testEngine(t)
	e.BeginSession("E")

	tap(e, keyer.PaddleDit)
	time.Sleep(settle)

	if log.finishedCount() != 1 {
		t.Fatalf("finished events = %d, want 1", log.finishedCount())
	}
	clock, _ := e.Session()
	if !clock.Finished() {
		t.Error("session clock not finished")
	}
	if clock.Elapsed() <= 0 {
		t.Error("session elapsed time not recorded")
	}
}

func TestEngine_SymbolEventOrdering(t *testing.T) {
	e, log := testEngine(t)
	e.BeginSession("A")

	tap(e, keyer.PaddleDit)
	time.Sleep(5 * time.Millisecond)
	tap(e, keyer.PaddleDah)
	time.Sleep(settle)

	syms := log.symbolEvents()
	if len(syms) != 2 {
		t.Fatalf("got %d symbol events, want 2", len(syms))
	}
	if syms[0].Symbol != morse.Dit || syms[0].Paddle != keyer.PaddleDit {
		t.Errorf("first event = %+v, want dit", syms[0])
	}
	if syms[1].Symbol != morse.Dah || syms[1].Paddle != keyer.PaddleDah {
		t.Errorf("second event = %+v, want dah", syms[1])
	}

	chars := log.characterEvents()
	if len(chars) != 1 || !chars[0].Correct || chars[0].Decoded != 'A' {
		t.Errorf("character events = %+v, want one correct A", chars)
	}
}

func TestEngine_StopSuppressesPlaybackCompletion(t *testing.T) {
	e, _ := testEngine(t)

	var mu sync.Mutex
	completions := 0
	e.PlaySentence("PARIS", func() {
		mu.Lock()
		completions++
		mu.Unlock()
	})
	e.Stop()
	time.Sleep(settle)

	mu.Lock()
	defer mu.Unlock()
	if completions != 0 {
		t.Errorf("onComplete fired %d times after Stop, want 0", completions)
	}
}

func TestEngine_PlaySentenceCompletes(t *testing.T) {
	e, _ := testEngine(t)

	done := make(chan struct{})
	e.PlaySentence("E", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onComplete never fired")
	}
}

func TestEngine_StopClearsPendingSequence(t *testing.T) {
	e, log := testEngine(t)
	e.BeginSession("E")

	e.Press(keyer.PaddleDit, "test")
	e.Stop()
	e.Release(keyer.PaddleDit, "test")
	time.Sleep(settle)

	// The dit keyed before Stop must not resolve afterwards.
	if chars := log.characterEvents(); len(chars) != 0 {
		t.Errorf("character events = %+v after Stop, want none", chars)
	}
}

func TestEngine_ConfigureUpdatesProfileAndFrequency(t *testing.T) {
	e, _ := testEngine(t)

	e.Configure(20, 5000)
	if got := e.profile.Snapshot().WPM; got != 20 {
		t.Errorf("WPM = %v after Configure, want 20", got)
	}
	if got := e.scheduler.Frequency(); got != audio.MaxFrequency {
		t.Errorf("Frequency = %v, want clamped to %v", got, audio.MaxFrequency)
	}

	// Invalid wpm is a silent no-op.
	e.Configure(-5, 600)
	if got := e.profile.Snapshot().WPM; got != 20 {
		t.Errorf("WPM = %v after invalid Configure, want unchanged 20", got)
	}
}
