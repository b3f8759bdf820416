// internal/engine/engine.go
// Package engine wires the keyer, decoder, scheduler, and session clock
// into one training engine and surfaces their events to the caller.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/mkbrennan/ditdah/internal/audio"
	"github.com/mkbrennan/ditdah/internal/decode"
	"github.com/mkbrennan/ditdah/internal/keyer"
	"github.com/mkbrennan/ditdah/internal/morse"
	"github.com/mkbrennan/ditdah/internal/session"
)

var (
	// ErrNoSession indicates no practice session is active
	ErrNoSession = errors.New("no active session")
)

// Error-feedback buzz parameters.
const (
	errorToneFrequency = 220
	errorToneDuration  = 150 * time.Millisecond
)

// SymbolEvent reports one keyed element.
type SymbolEvent struct {
	Symbol morse.Symbol
	Paddle keyer.Paddle
}

// CharacterEvent reports one resolved character attempt.
type CharacterEvent struct {
	Correct bool
	Decoded rune
	Target  rune
}

// Callbacks receives engine events. Any field may be nil; all callbacks
// must be non-blocking and fast.
type Callbacks struct {
	SymbolEmitted     func(SymbolEvent)
	CharacterResolved func(CharacterEvent)
	SentenceFinished  func()
}

// Engine is the composition root. The session owner constructs it with
// its collaborators; there is no shared global instance.
type Engine struct {
	profile   *morse.Profile
	scheduler *audio.Scheduler
	keyer     *keyer.Keyer
	decoder   *decode.Decoder

	mu        sync.Mutex
	clock     *session.Clock
	callbacks Callbacks
}

// New wires an engine over the given profile and scheduler. multiplier
// scales the inter-character gap into the decode timeout.
func New(profile *morse.Profile, scheduler *audio.Scheduler, multiplier float64) (*Engine, error) {
	dec, err := decode.NewDecoder(profile, multiplier)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		profile:   profile,
		scheduler: scheduler,
		keyer:     keyer.NewKeyer(profile),
		decoder:   dec,
	}
	e.keyer.SetSymbolCallback(e.handleSymbol)
	e.keyer.SetIdleCallback(e.decoder.ArmTimeout)
	e.decoder.SetCallback(e.handleResult)
	return e, nil
}

// SetCallbacks registers the event sinks.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	e.callbacks = cb
	e.mu.Unlock()
}

// Configure applies wpm and sidetone frequency. Invalid wpm is a silent
// no-op; frequency is clamped to the valid range. Armed timers keep their
// original interval; the next cycle reads the new profile.
func (e *Engine) Configure(wpm int, frequency float64) {
	e.profile.SetWPM(wpm)
	e.scheduler.SetFrequency(frequency)
}

// BeginSession starts a practice session over the target sentence. Any
// in-flight keying or playback is stopped first.
func (e *Engine) BeginSession(sentence string) error {
	clock, err := session.NewClock(sentence)
	if err != nil {
		return err
	}
	e.Stop()

	e.mu.Lock()
	e.clock = clock
	e.mu.Unlock()
	e.decoder.SetTarget(clock.CurrentChar())
	return nil
}

// Session returns the active session clock, or ErrNoSession.
func (e *Engine) Session() (*session.Clock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clock == nil {
		return nil, ErrNoSession
	}
	return e.clock, nil
}

// Press forwards a paddle press from an input source.
func (e *Engine) Press(p keyer.Paddle, source string) {
	e.keyer.Press(p, source)
}

// Release forwards a paddle release from an input source.
func (e *Engine) Release(p keyer.Paddle, source string) {
	e.keyer.Release(p, source)
}

// PlaySentence encodes text and schedules it for playback, returning
// immediately. onComplete (may be nil) fires once on natural completion,
// never after Stop.
func (e *Engine) PlaySentence(text string, onComplete func()) {
	e.PlayStream(morse.EncodeSentence(text), onComplete)
}

// PlayStream schedules an already-encoded token stream for playback.
func (e *Engine) PlayStream(stream string, onComplete func()) {
	e.scheduler.PlayStream(stream, onComplete)
}

// Stop synchronously cancels all in-flight audio, pending completions,
// held paddles, and the accumulated sequence. The session clock, if any,
// keeps its counters but stops timing.
func (e *Engine) Stop() {
	e.keyer.Reset()
	e.decoder.Reset()
	e.scheduler.StopAll()

	e.mu.Lock()
	clock := e.clock
	e.mu.Unlock()
	if clock != nil {
		clock.Stop()
	}
}

// SetMuted toggles audio output.
func (e *Engine) SetMuted(muted bool) {
	e.scheduler.SetMuted(muted)
}

// handleSymbol runs on every keyer emission: the symbol joins the decode
// sequence before its sidetone is requested, so input is fully processed
// ahead of its audio side effects.
func (e *Engine) handleSymbol(sym morse.Symbol, p keyer.Paddle) {
	e.mu.Lock()
	clock := e.clock
	cb := e.callbacks.SymbolEmitted
	e.mu.Unlock()

	if clock != nil && !clock.Finished() {
		// First input starts the session timer; later calls are rejected
		// by the clock and that is fine.
		_ = clock.Start()
	}

	e.decoder.Append(sym)
	e.scheduler.KeyTone(sym)
	if cb != nil {
		cb(SymbolEvent{Symbol: sym, Paddle: p})
	}
}

// handleResult runs when the decoder resolves a sequence: it updates the
// session clock, supplies the next target, and surfaces the outcome.
func (e *Engine) handleResult(res decode.Result) {
	e.mu.Lock()
	clock := e.clock
	cbs := e.callbacks
	e.mu.Unlock()

	finished := false
	if clock != nil && !clock.Finished() {
		if res.Correct {
			finished = clock.AdvanceCharacter()
			e.decoder.SetTarget(clock.CurrentChar())
		} else {
			clock.RegisterIncorrectAttempt()
		}
	}
	if !res.Correct {
		e.scheduler.FeedbackTone(errorToneFrequency, errorToneDuration)
	}

	if cbs.CharacterResolved != nil {
		cbs.CharacterResolved(CharacterEvent{
			Correct: res.Correct,
			Decoded: res.Decoded,
			Target:  res.Target,
		})
	}
	if finished && cbs.SentenceFinished != nil {
		cbs.SentenceFinished()
	}
}
