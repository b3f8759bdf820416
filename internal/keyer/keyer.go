// internal/keyer/keyer.go
// Package keyer converts raw paddle press/release events into a stream of
// discrete Morse symbol emissions, honoring auto-repeat and iambic keying.
package keyer

import (
	"sync"
	"time"

	"github.com/mkbrennan/ditdah/internal/morse"
)

// Paddle identifies one of the two paddle levers.
type Paddle int

const (
	// PaddleDit keys short elements.
	PaddleDit Paddle = iota
	// PaddleDah keys long elements.
	PaddleDah
)

// Valid reports whether the paddle identifier is usable.
func (p Paddle) Valid() bool {
	return p == PaddleDit || p == PaddleDah
}

// Symbol returns the element this paddle keys.
func (p Paddle) Symbol() morse.Symbol {
	if p == PaddleDah {
		return morse.Dah
	}
	return morse.Dit
}

// String returns the paddle name.
func (p Paddle) String() string {
	if p == PaddleDah {
		return "dah"
	}
	return "dit"
}

// SymbolCallback receives each emitted element. It runs after the keyer
// has fully updated its own state, so the input-then-audio ordering holds.
// Must be non-blocking and fast.
type SymbolCallback func(sym morse.Symbol, paddle Paddle)

// IdleCallback is invoked when both paddles have been released; the
// decoder uses it to arm its inter-character timeout.
type IdleCallback func()

// keyer modes. Single and iambic carry their variant data in the active
// paddle and next-element fields respectively.
const (
	modeIdle = iota
	modeSingle
	modeIambic
)

// paddleState tracks the input sources currently holding one paddle. The
// paddle is held iff the source set is non-empty, so a pointer press and a
// keyboard press can overlap without releasing each other.
type paddleState struct {
	sources   map[string]struct{}
	lastPress time.Time
	lastEmit  time.Time
}

// Keyer is the paddle state machine. All methods are safe for concurrent
// use; timer callbacks revalidate their arming generation before acting,
// so a stale auto-repeat or iambic tick is silently dropped.
type Keyer struct {
	profile *morse.Profile

	mu      sync.Mutex
	paddles [2]paddleState
	mode    int
	active  Paddle       // single mode: the held paddle
	next    morse.Symbol // iambic mode: element to emit on the next tick
	timer   *time.Timer
	gen     uint64

	onSymbol SymbolCallback
	onIdle   IdleCallback
}

// NewKeyer creates a keyer reading element durations from profile.
func NewKeyer(profile *morse.Profile) *Keyer {
	k := &Keyer{profile: profile}
	for i := range k.paddles {
		k.paddles[i].sources = make(map[string]struct{})
	}
	return k
}

// SetSymbolCallback registers the emission callback.
func (k *Keyer) SetSymbolCallback(cb SymbolCallback) {
	k.mu.Lock()
	k.onSymbol = cb
	k.mu.Unlock()
}

// SetIdleCallback registers the all-released callback.
func (k *Keyer) SetIdleCallback(cb IdleCallback) {
	k.mu.Lock()
	k.onIdle = cb
	k.mu.Unlock()
}

// Press records that source is holding paddle. Repeated presses from the
// same source while already active are ignored; invalid paddles are a
// silent no-op.
func (k *Keyer) Press(p Paddle, source string) {
	if !p.Valid() || source == "" {
		return
	}
	k.mu.Lock()
	ps := &k.paddles[p]
	if _, held := ps.sources[source]; held {
		k.mu.Unlock()
		return
	}
	ps.sources[source] = struct{}{}
	ps.lastPress = time.Now()
	emits, idle := k.evaluateLocked()
	k.fire(emits, idle)
}

// Release removes source from paddle's active-source set; the paddle is
// released only once no source holds it.
func (k *Keyer) Release(p Paddle, source string) {
	if !p.Valid() {
		return
	}
	k.mu.Lock()
	ps := &k.paddles[p]
	if _, held := ps.sources[source]; !held {
		k.mu.Unlock()
		return
	}
	delete(ps.sources, source)
	emits, idle := k.evaluateLocked()
	k.fire(emits, idle)
}

// Held reports whether any source is holding the paddle.
func (k *Keyer) Held(p Paddle) bool {
	if !p.Valid() {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.paddles[p].sources) > 0
}

// Reset releases everything and cancels any pending repeat cycle.
func (k *Keyer) Reset() {
	k.mu.Lock()
	for i := range k.paddles {
		k.paddles[i].sources = make(map[string]struct{})
	}
	k.mode = modeIdle
	k.cancelTimerLocked()
	k.mu.Unlock()
}

// evaluateLocked re-derives the mode from the current hold state and
// returns any resulting emissions. Caller holds k.mu.
func (k *Keyer) evaluateLocked() ([]emission, bool) {
	ditHeld := len(k.paddles[PaddleDit].sources) > 0
	dahHeld := len(k.paddles[PaddleDah].sources) > 0

	switch {
	case ditHeld && dahHeld:
		if k.mode == modeIambic {
			return nil, false
		}
		k.mode = modeIambic
		// The most recently pressed paddle keys the first element.
		first := PaddleDah
		if k.paddles[PaddleDah].lastPress.Before(k.paddles[PaddleDit].lastPress) {
			first = PaddleDit
		}
		k.next = first.Symbol().Opposite()
		return k.emitLocked(first), false

	case ditHeld || dahHeld:
		p := PaddleDit
		if dahHeld {
			p = PaddleDah
		}
		if k.mode == modeSingle && k.active == p {
			return nil, false
		}
		k.mode = modeSingle
		k.active = p
		return k.emitLocked(p), false

	default:
		if k.mode == modeIdle {
			return nil, false
		}
		k.mode = modeIdle
		k.cancelTimerLocked()
		return nil, true
	}
}

// emission is a symbol waiting to be delivered once the lock is dropped.
type emission struct {
	sym    morse.Symbol
	paddle Paddle
}

// emitLocked emits one element for paddle (subject to rate limiting) and
// arms the repeat timer for the cycle. Caller holds k.mu.
func (k *Keyer) emitLocked(p Paddle) []emission {
	t := k.profile.Snapshot()
	sym := p.Symbol()
	now := time.Now()

	var emits []emission
	ps := &k.paddles[p]
	// Guard against input jitter double-firing the same paddle.
	if ps.lastEmit.IsZero() || now.Sub(ps.lastEmit) >= t.Element(sym)/2 {
		ps.lastEmit = now
		emits = append(emits, emission{sym: sym, paddle: p})
	}

	k.armTimerLocked(t.Element(sym) + t.IntraGap)
	return emits
}

// armTimerLocked schedules the next repeat/alternation tick. Arming always
// supersedes the previous timer: the generation moves on and the old
// callback drops itself.
func (k *Keyer) armTimerLocked(delay time.Duration) {
	k.gen++
	gen := k.gen
	if k.timer != nil {
		k.timer.Stop()
	}
	k.timer = time.AfterFunc(delay, func() { k.onTick(gen) })
}

func (k *Keyer) cancelTimerLocked() {
	k.gen++
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// onTick is the repeat-cycle timer callback. It re-checks both the arming
// generation and the hold state, since either may have moved on while the
// timer was in flight.
func (k *Keyer) onTick(gen uint64) {
	k.mu.Lock()
	if gen != k.gen {
		k.mu.Unlock()
		return
	}

	ditHeld := len(k.paddles[PaddleDit].sources) > 0
	dahHeld := len(k.paddles[PaddleDah].sources) > 0

	var emits []emission
	switch k.mode {
	case modeSingle:
		if (k.active == PaddleDit && ditHeld && !dahHeld) ||
			(k.active == PaddleDah && dahHeld && !ditHeld) {
			emits = k.emitLocked(k.active)
		}
	case modeIambic:
		if ditHeld && dahHeld {
			sym := k.next
			k.next = sym.Opposite()
			p := PaddleDit
			if sym == morse.Dah {
				p = PaddleDah
			}
			emits = k.emitLocked(p)
		}
	}
	k.fire(emits, false)
}

// fire delivers pending emissions and the idle notification outside the
// lock, preserving state-before-side-effects ordering. Takes ownership of
// k.mu (locked) and releases it.
func (k *Keyer) fire(emits []emission, idle bool) {
	onSymbol := k.onSymbol
	onIdle := k.onIdle
	k.mu.Unlock()

	if onSymbol != nil {
		for _, e := range emits {
			onSymbol(e.sym, e.paddle)
		}
	}
	if idle && onIdle != nil {
		onIdle()
	}
}
