// Package motion decides when the alert sound should be playing.
//
// The policy is a two-state machine (Idle, Alerting) driven once per frame
// by the detection flag and the frame's landmarks. Start and stop are edge
// triggered: a run of qualifying frames starts the alarm once and a single
// non-qualifying frame stops it once.
package motion

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-motioncam/pkg/landmark"
)

// State is the policy state.
type State int

const (
	Idle State = iota
	Alerting
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Alerting:
		return "alerting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Alarm is the side effect driven by the policy.
type Alarm interface {
	// Start begins looping the alert sound from its beginning.
	Start() error
	// Stop silences the alert sound.
	Stop() error
}

// Triggered reports whether a detection result qualifies as motion.
// Face or either hand counts; pose landmarks alone never do.
func Triggered(r landmark.Result) bool {
	return r.Face.Present() || r.LeftHand.Present() || r.RightHand.Present()
}

// Policy is safe for concurrent use: the stream loop calls Evaluate while
// control requests may call Disable.
type Policy struct {
	alarm  Alarm
	logger *slog.Logger

	// OnChange is called after every transition, outside the lock.
	OnChange func(State)

	mu    sync.Mutex
	state State
}

// NewPolicy creates an Idle policy driving alarm.
func NewPolicy(alarm Alarm, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		alarm:  alarm,
		logger: logger.With("component", "motion"),
	}
}

// State returns the current state.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Alerting reports whether the alert is active.
func (p *Policy) Alerting() bool {
	return p.State() == Alerting
}

// Evaluate applies one frame and returns whether the frame is Alerting.
func (p *Policy) Evaluate(detectionEnabled bool, r landmark.Result) bool {
	next := Idle
	if detectionEnabled && Triggered(r) {
		next = Alerting
	}
	p.transition(next)
	return next == Alerting
}

// Disable forces Idle. Used when detection is switched off mid-alert.
func (p *Policy) Disable() {
	p.transition(Idle)
}

func (p *Policy) transition(next State) {
	p.mu.Lock()
	if p.state == next {
		p.mu.Unlock()
		return
	}

	var err error
	switch next {
	case Alerting:
		err = p.alarm.Start()
	case Idle:
		err = p.alarm.Stop()
	}
	// State follows the decision even when the alarm call fails.
	p.state = next
	cb := p.OnChange
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("alarm transition failed", "to", next, "error", err)
	} else {
		p.logger.Info("motion state changed", "to", next)
	}
	if cb != nil {
		cb(next)
	}
}
