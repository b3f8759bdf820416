// internal/session/clock.go
// Package session tracks the timing and character-advance bookkeeping for
// one practice sentence.
package session

import (
	"errors"
	"sync"
	"time"
	"unicode"
)

var (
	// ErrEmptySentence indicates the session has no target characters
	ErrEmptySentence = errors.New("sentence has no target characters")
	// ErrNotReady indicates Start was called outside the ready phase
	ErrNotReady = errors.New("session already started")
)

// session phases
const (
	phaseReady = iota
	phaseRunning
	phaseFinished
)

// Clock owns the mutable timing state of one session: start/stop times,
// correct and incorrect counters, and the current character index. It is
// created around a fixed target sentence and frozen once finished.
type Clock struct {
	mu        sync.Mutex
	sentence  []rune
	phase     int
	startTime time.Time
	endTime   time.Time
	index     int
	correct   int
	incorrect int
}

// NewClock creates a ready session over the target sentence. Sentences
// containing only separators are rejected.
func NewClock(sentence string) (*Clock, error) {
	runes := []rune(sentence)
	c := &Clock{sentence: runes}
	if c.skipSeparators(0) >= len(runes) {
		return nil, ErrEmptySentence
	}
	c.index = c.skipSeparators(0)
	return c, nil
}

// Start records the session start time. Valid only from the ready phase.
func (c *Clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseReady {
		return ErrNotReady
	}
	c.phase = phaseRunning
	c.startTime = time.Now()
	return nil
}

// Stop freezes the session timing. Idempotent: stopping an already
// stopped (or never started) session returns false.
func (c *Clock) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseRunning {
		return false
	}
	c.phase = phaseFinished
	c.endTime = time.Now()
	return true
}

// AdvanceCharacter records a correct character, moves the index past any
// separator characters, and reports whether the sentence is now complete.
// Completing the sentence stops the clock.
func (c *Clock) AdvanceCharacter() (done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseRunning {
		return c.phase == phaseFinished
	}
	c.correct++
	c.index = c.skipSeparators(c.index + 1)
	if c.index >= len(c.sentence) {
		c.phase = phaseFinished
		c.endTime = time.Now()
		return true
	}
	return false
}

// RegisterIncorrectAttempt increments the incorrect counter. The current
// character index is unaffected; the same target stays active.
func (c *Clock) RegisterIncorrectAttempt() {
	c.mu.Lock()
	if c.phase == phaseRunning {
		c.incorrect++
	}
	c.mu.Unlock()
}

// CurrentChar returns the character the operator should key next, or 0
// once the sentence is complete.
func (c *Clock) CurrentChar() rune {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index >= len(c.sentence) {
		return 0
	}
	return c.sentence[c.index]
}

// CurrentIndex returns the index of the active target character.
func (c *Clock) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Elapsed returns time since Start, frozen at the stop time once the
// session has finished. Zero before Start.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case phaseRunning:
		return time.Since(c.startTime)
	case phaseFinished:
		return c.endTime.Sub(c.startTime)
	}
	return 0
}

// CorrectChars returns the number of correctly keyed characters.
func (c *Clock) CorrectChars() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correct
}

// IncorrectAttempts returns the number of incorrect attempts.
func (c *Clock) IncorrectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incorrect
}

// Finished reports whether the session has stopped.
func (c *Clock) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseFinished
}

// Sentence returns the target sentence.
func (c *Clock) Sentence() string {
	return string(c.sentence)
}

// skipSeparators returns the first index at or after i holding a
// significant (non-space) character.
func (c *Clock) skipSeparators(i int) int {
	for i < len(c.sentence) && unicode.IsSpace(c.sentence[i]) {
		i++
	}
	return i
}
