// internal/decode/decoder.go
// Package decode accumulates keyed symbols and resolves them into a
// character once the operator pauses past the inter-character timeout.
package decode

import (
	"errors"
	"sync"
	"time"
	"unicode"

	"github.com/mkbrennan/ditdah/internal/morse"
)

var (
	// ErrInvalidMultiplier indicates the timeout multiplier must be positive
	ErrInvalidMultiplier = errors.New("timeout multiplier must be positive")
)

// DefaultMultiplier scales interGap into the decode timeout. Values below
// 1 resolve characters aggressively; above 1 they are more forgiving.
const DefaultMultiplier = 1.2

// Result describes one resolved character attempt.
type Result struct {
	// Correct is true when the sequence decoded to the target character.
	Correct bool
	// Decoded is the character the sequence mapped to (0 if unknown).
	Decoded rune
	// Target is the character the operator was asked to key.
	Target rune
	// Sequence is the raw dit/dah pattern that was resolved.
	Sequence string
}

// ResultCallback is called when an accumulated sequence resolves.
// Must be non-blocking and fast.
type ResultCallback func(Result)

// Decoder owns the in-progress symbol sequence and its single decode
// timer. Appending always cancels the pending timeout; at most one timer
// is ever live.
type Decoder struct {
	profile    *morse.Profile
	multiplier float64

	mu     sync.Mutex
	seq    []byte
	target rune
	timer  *time.Timer
	gen    uint64

	callback ResultCallback
}

// NewDecoder creates a decoder reading the timeout base from profile.
func NewDecoder(profile *morse.Profile, multiplier float64) (*Decoder, error) {
	if multiplier <= 0 {
		return nil, ErrInvalidMultiplier
	}
	return &Decoder{profile: profile, multiplier: multiplier}, nil
}

// SetCallback sets the callback for resolved characters.
func (d *Decoder) SetCallback(cb ResultCallback) {
	d.mu.Lock()
	d.callback = cb
	d.mu.Unlock()
}

// SetTarget sets the character the next resolution is compared against.
// Comparison is case-insensitive.
func (d *Decoder) SetTarget(r rune) {
	d.mu.Lock()
	d.target = r
	d.mu.Unlock()
}

// Target returns the current target character.
func (d *Decoder) Target() rune {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// Append adds one keyed symbol to the sequence. New input always resets
// the character-boundary clock, so any pending timeout is cancelled.
func (d *Decoder) Append(sym morse.Symbol) {
	d.mu.Lock()
	d.cancelLocked()
	d.seq = append(d.seq, sym.Mark())
	d.mu.Unlock()
}

// Sequence returns the pattern accumulated so far.
func (d *Decoder) Sequence() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.seq)
}

// ArmTimeout starts the decode timer if a sequence is pending. Called
// once neither paddle is held; arming cancels any prior timer first.
func (d *Decoder) ArmTimeout() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.seq) == 0 {
		return
	}
	d.cancelLocked()
	gen := d.gen
	delay := time.Duration(float64(d.profile.Snapshot().InterGap) * d.multiplier)
	d.timer = time.AfterFunc(delay, func() { d.onTimeout(gen) })
}

// Reset clears the sequence and cancels any pending timeout.
func (d *Decoder) Reset() {
	d.mu.Lock()
	d.seq = d.seq[:0]
	d.cancelLocked()
	d.mu.Unlock()
}

// cancelLocked invalidates the pending timer. Caller holds d.mu.
func (d *Decoder) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// onTimeout resolves the accumulated sequence. A stale timer (superseded
// by new input or a reset) drops silently; an empty sequence at fire time
// is a benign no-op.
func (d *Decoder) onTimeout(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if len(d.seq) == 0 {
		d.mu.Unlock()
		return
	}

	seq := string(d.seq)
	d.seq = d.seq[:0]
	target := d.target
	cb := d.callback
	d.mu.Unlock()

	decoded, ok := morse.DecodeSequence(seq)
	res := Result{
		Decoded:  decoded,
		Target:   target,
		Sequence: seq,
	}
	res.Correct = ok && target != 0 &&
		unicode.ToUpper(decoded) == unicode.ToUpper(target)

	if cb != nil {
		cb(res)
	}
}
