// internal/dsp/envelope.go
package dsp

import "errors"

var (
	// ErrInvalidRamp indicates ramp length must be non-negative
	ErrInvalidRamp = errors.New("ramp length must be non-negative")
)

// envelope states
const (
	envAttack = iota
	envSustain
	envRelease
	envDone
)

// Envelope shapes a tone's gain: linear attack ramp to full gain, hold,
// then a linear release ramp to silence. Release always starts from the
// *current* gain, so cutting a tone short never produces a click.
type Envelope struct {
	state       int
	gain        float64
	attackStep  float64
	releaseStep float64
	releaseRamp int
}

// NewEnvelope creates an envelope with the given ramp lengths in samples.
// A zero attack starts at full gain; a zero release ends instantly.
func NewEnvelope(attackSamples, releaseSamples int) (*Envelope, error) {
	if attackSamples < 0 || releaseSamples < 0 {
		return nil, ErrInvalidRamp
	}

	e := &Envelope{releaseRamp: releaseSamples}
	if attackSamples == 0 {
		e.state = envSustain
		e.gain = 1
	} else {
		e.attackStep = 1 / float64(attackSamples)
	}
	return e, nil
}

// Next returns the current gain and advances one sample.
func (e *Envelope) Next() float64 {
	g := e.gain
	switch e.state {
	case envAttack:
		e.gain += e.attackStep
		if e.gain >= 1 {
			e.gain = 1
			e.state = envSustain
		}
	case envRelease:
		e.gain -= e.releaseStep
		if e.gain <= 0 {
			e.gain = 0
			e.state = envDone
		}
	}
	return g
}

// Release begins ramping down from the current gain. Calling it again
// while already releasing is a no-op.
func (e *Envelope) Release() {
	if e.state == envRelease || e.state == envDone {
		return
	}
	if e.releaseRamp == 0 || e.gain <= 0 {
		e.gain = 0
		e.state = envDone
		return
	}
	e.releaseStep = e.gain / float64(e.releaseRamp)
	e.state = envRelease
}

// Done reports whether the envelope has fully decayed.
func (e *Envelope) Done() bool {
	return e.state == envDone
}

// Gain returns the current gain without advancing (for testing).
func (e *Envelope) Gain() float64 {
	return e.gain
}
