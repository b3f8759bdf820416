// internal/audio/scheduler.go
package audio

import (
	"sync"
	"time"

	"github.com/mkbrennan/ditdah/internal/morse"
)

const (
	// MinFrequency and MaxFrequency bound the sidetone pitch.
	MinFrequency = 100
	MaxFrequency = 3000
	// DefaultFrequency is the usual CW sidetone.
	DefaultFrequency = 600

	// completionBuffer pads the playback completion callback past the last
	// token so the final release ramp is always audible before it fires.
	completionBuffer = 50 * time.Millisecond
)

// Scheduler turns token streams and keying events into scheduled tones.
// Sequence-playback tones and immediate feedback tones are tracked in
// independent collections: stopping a replay must not clip a feedback tone
// and vice versa.
type Scheduler struct {
	player  *Player
	profile *morse.Profile

	mu        sync.Mutex
	frequency float64
	playback  map[uint64]*Tone
	feedback  map[uint64]*Tone
	nextKey   uint64
	muted     bool

	completion    *time.Timer
	completionGen uint64
}

// NewScheduler creates a scheduler over the given player and timing
// profile.
func NewScheduler(player *Player, profile *morse.Profile) *Scheduler {
	return &Scheduler{
		player:    player,
		profile:   profile,
		frequency: DefaultFrequency,
		playback:  make(map[uint64]*Tone),
		feedback:  make(map[uint64]*Tone),
	}
}

// SetFrequency sets the sidetone pitch, clamped to the valid range.
func (s *Scheduler) SetFrequency(hz float64) {
	if hz < MinFrequency {
		hz = MinFrequency
	} else if hz > MaxFrequency {
		hz = MaxFrequency
	}
	s.mu.Lock()
	s.frequency = hz
	s.mu.Unlock()
}

// Frequency returns the current sidetone pitch.
func (s *Scheduler) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

// KeyTone sounds the sidetone for one keyed element, starting now.
func (s *Scheduler) KeyTone(sym morse.Symbol) {
	t := s.profile.Snapshot()
	s.mu.Lock()
	freq := s.frequency
	s.mu.Unlock()
	s.schedule(collFeedback, 0, t.Element(sym), freq)
}

// FeedbackTone sounds an arbitrary immediate tone (e.g. an error buzz).
func (s *Scheduler) FeedbackTone(freq float64, duration time.Duration) {
	s.schedule(collFeedback, 0, duration, freq)
}

// PlayStream schedules an entire token stream for playback and returns
// immediately. onComplete (may be nil) fires exactly once, after the final
// token's duration plus a small buffer measured from scheduling start - it
// never fires after StopAll.
func (s *Scheduler) PlayStream(stream string, onComplete func()) {
	t := s.profile.Snapshot()
	items := morse.StreamItems(stream, t)

	s.mu.Lock()
	freq := s.frequency
	gen := s.completionGen
	s.mu.Unlock()

	var offset time.Duration
	for _, item := range items {
		if item.Sound {
			s.schedule(collPlayback, offset, item.Duration, freq)
		}
		offset += item.Duration
	}

	if onComplete == nil {
		return
	}
	timer := time.AfterFunc(offset+completionBuffer, func() {
		s.mu.Lock()
		stale := gen != s.completionGen
		if !stale {
			s.completion = nil
		}
		s.mu.Unlock()
		if !stale {
			onComplete()
		}
	})

	s.mu.Lock()
	if s.completion != nil {
		s.completion.Stop()
	}
	s.completion = timer
	s.mu.Unlock()
}

// StopAll cancels every tracked tone in both collections and any pending
// completion callback. Sounding tones ramp down from their current gain.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.completionGen++
	if s.completion != nil {
		s.completion.Stop()
		s.completion = nil
	}
	tones := make([]*Tone, 0, len(s.playback)+len(s.feedback))
	for _, t := range s.playback {
		tones = append(tones, t)
	}
	for _, t := range s.feedback {
		tones = append(tones, t)
	}
	s.playback = make(map[uint64]*Tone)
	s.feedback = make(map[uint64]*Tone)
	s.mu.Unlock()

	for _, t := range tones {
		t.Cancel()
	}
}

// SetMuted toggles the master gain ramp; muting also stops everything
// currently scheduled.
func (s *Scheduler) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.player.SetMuted(muted)
	if muted {
		s.StopAll()
	}
}

// Muted reports whether output is muted.
func (s *Scheduler) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// PendingTones returns the number of tracked tone handles across both
// collections (for testing).
func (s *Scheduler) PendingTones() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playback) + len(s.feedback)
}

// collection selectors
const (
	collPlayback = iota
	collFeedback
)

// coll returns the current map for a collection; caller holds s.mu.
func (s *Scheduler) coll(kind int) map[uint64]*Tone {
	if kind == collFeedback {
		return s.feedback
	}
	return s.playback
}

// schedule creates one tone and tracks it in the given collection until it
// finishes or is cancelled.
func (s *Scheduler) schedule(kind int, delay, duration time.Duration, freq float64) {
	s.mu.Lock()
	if s.muted {
		s.mu.Unlock()
		return
	}
	s.nextKey++
	key := s.nextKey
	s.mu.Unlock()

	tone := s.player.ScheduleTone(delay, duration, freq, func() {
		// Looks up the collection again at completion time; if StopAll
		// swapped the maps meanwhile the delete is a harmless no-op.
		s.mu.Lock()
		delete(s.coll(kind), key)
		s.mu.Unlock()
	})
	if tone.p == nil {
		// Inert handle (disabled backend or rejected request); its onDone
		// will never run, so it must not be tracked.
		return
	}

	s.mu.Lock()
	s.coll(kind)[key] = tone
	s.mu.Unlock()
}
