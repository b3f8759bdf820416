// internal/morse/timing.go
// Package morse holds the timing model and the fixed code table shared by
// the keyer, the sequence decoder, and the tone scheduler.
package morse

import (
	"sync"
	"time"
)

// Morse code timing ratios (ITU standard). Every duration in a profile is
// a fixed multiple of the dit.
const (
	// DahDitRatio is the ratio of dah duration to dit duration (ITU: 3:1)
	DahDitRatio = 3
	// IntraGapRatio is the gap between elements within a character (ITU: 1:1)
	IntraGapRatio = 1
	// InterGapRatio is the gap between characters (ITU: 3:1)
	InterGapRatio = 3
	// WordGapRatio is the gap between words (ITU: 7:1)
	WordGapRatio = 7

	// DitUnitMs derives the dit length from WPM: the standard word "PARIS"
	// is 50 dit units, so at W words per minute one dit is 1200/W ms.
	DitUnitMs = 1200.0

	// DefaultWPM is used when a profile is constructed without a usable speed.
	DefaultWPM = 20
)

// Symbol is a single Morse element.
type Symbol int

const (
	// Dit is the short element (one unit).
	Dit Symbol = iota
	// Dah is the long element (three units).
	Dah
)

// String returns the spoken name of the element.
func (s Symbol) String() string {
	if s == Dah {
		return "dah"
	}
	return "dit"
}

// Mark returns the token-stream character for the element.
func (s Symbol) Mark() byte {
	if s == Dah {
		return '-'
	}
	return '.'
}

// Opposite returns the other element, used by iambic alternation.
func (s Symbol) Opposite() Symbol {
	if s == Dah {
		return Dit
	}
	return Dah
}

// Timing is a complete set of element and gap durations derived from one
// WPM value. It is an immutable snapshot; profiles replace it wholesale.
type Timing struct {
	WPM      int
	Dit      time.Duration
	Dah      time.Duration
	IntraGap time.Duration
	InterGap time.Duration
	WordGap  time.Duration
}

// NewTiming derives all durations from wpm. Values of wpm <= 0 fall back
// to DefaultWPM.
func NewTiming(wpm int) Timing {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	dit := time.Duration(DitUnitMs/float64(wpm)*1e6) * time.Nanosecond
	return Timing{
		WPM:      wpm,
		Dit:      dit,
		Dah:      DahDitRatio * dit,
		IntraGap: IntraGapRatio * dit,
		InterGap: InterGapRatio * dit,
		WordGap:  WordGapRatio * dit,
	}
}

// Element returns the sound duration for a symbol.
func (t Timing) Element(s Symbol) time.Duration {
	if s == Dah {
		return t.Dah
	}
	return t.Dit
}

// Profile is a shared, atomically replaceable Timing. Readers always see a
// fully consistent set of durations, never a partial update.
type Profile struct {
	mu sync.RWMutex
	t  Timing
}

// NewProfile creates a profile at the given speed.
func NewProfile(wpm int) *Profile {
	return &Profile{t: NewTiming(wpm)}
}

// SetWPM recomputes every duration from wpm. A non-positive wpm is a
// silent no-op; the previous profile stays in effect.
func (p *Profile) SetWPM(wpm int) {
	if wpm <= 0 {
		return
	}
	t := NewTiming(wpm)
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}

// Snapshot returns the current timing set.
func (p *Profile) Snapshot() Timing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.t
}
