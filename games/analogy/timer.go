/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type TimerState string

const (
	StateReady        TimerState = "ready"
	StateAnnouncement TimerState = "announcement"
	StateCountdown    TimerState = "countdown"
	StateCompleted    TimerState = "completed"
	StateDiscussion   TimerState = "discussion"
)

const (
	announcementDelay = 2 * time.Second
	completionDelay   = 2 * time.Second
	tickInterval      = time.Second
	warningSeconds    = 3
)

// Every state may return to ready through Reset.
var timerTransitions = map[TimerState][]TimerState{
	StateReady:        {StateAnnouncement},
	StateAnnouncement: {StateCountdown, StateReady},
	StateCountdown:    {StateCompleted, StateReady},
	StateCompleted:    {StateDiscussion, StateReady},
	StateDiscussion:   {StateReady},
}

// CanTransitionTo reports whether the timer may move from s to target.
func (s TimerState) CanTransitionTo(target TimerState) bool {
	for _, next := range timerTransitions[s] {
		if next == target {
			return true
		}
	}

	return false
}

type CueKind string

const (
	CueTick     CueKind = "tick"
	CueComplete CueKind = "complete"
)

// Cue asks the audio collaborator to play a tone. Pitch is in Hz.
type Cue struct {
	Kind      CueKind `json:"kind"`
	Remaining int     `json:"remaining"`
	Pitch     int     `json:"pitch"`
}

type TimerSnapshot struct {
	State     TimerState `json:"state"`
	Remaining int        `json:"remaining"`
	Duration  int        `json:"duration"`
	Paused    bool       `json:"paused"`
	Completed bool       `json:"completed"`
}

type TimerOption func(*Timer)

// WithCueHandler registers the receiver of audio cue requests.
func WithCueHandler(f func(Cue)) TimerOption {
	return func(t *Timer) {
		t.onCue = f
	}
}

// WithChangeHandler registers a callback for state changes driven by the
// clock (announcement end, ticks, completion). Changes made by calling a
// Timer method are not reported; the caller already knows about them.
func WithChangeHandler(f func(TimerSnapshot)) TimerOption {
	return func(t *Timer) {
		t.onChange = f
	}
}

// Timer is the per-round countdown. At most one scheduled callback is live
// at any time; replacing or cancelling it bumps gen so a callback that was
// already firing becomes a no-op.
type Timer struct {
	mu sync.Mutex

	clock     clockwork.Clock
	duration  int
	remaining int
	state     TimerState
	paused    bool

	pending clockwork.Timer
	gen     uint64

	// tickDue is when the scheduled tick fires; tickLeft is what was left
	// of it when the countdown was paused.
	tickDue  time.Time
	tickLeft time.Duration

	onCue    func(Cue)
	onChange func(TimerSnapshot)
}

func NewTimer(clock clockwork.Clock, durationSeconds int, opts ...TimerOption) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	t := &Timer{
		clock:     clock,
		duration:  max(0, durationSeconds),
		remaining: max(0, durationSeconds),
		state:     StateReady,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins a round from ready, or resumes a paused countdown. It is a
// no-op otherwise. A resumed countdown finishes the second it was paused
// in before ticking again.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.state == StateReady:
		t.state = StateAnnouncement
		t.scheduleLocked(announcementDelay, t.beginCountdownLocked)
	case t.state == StateCountdown && t.paused:
		t.paused = false
		t.scheduleTickLocked(min(max(0, t.tickLeft), tickInterval))
	default:
		return false
	}

	return true
}

// Pause stops the countdown without touching remaining. Only legal while
// counting down.
func (t *Timer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateCountdown || t.paused {
		return false
	}

	t.paused = true
	t.tickLeft = t.tickDue.Sub(t.clock.Now())
	t.cancelLocked()

	return true
}

// Reset returns to ready with the full duration and drops any pending
// transition.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked()
}

// NextRound resets the timer when the round is in discussion and reports
// whether it did.
func (t *Timer) NextRound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateDiscussion {
		return false
	}

	t.resetLocked()

	return true
}

// SetDuration changes the configured length. A ready timer picks it up
// immediately; a running round keeps its current remaining time.
func (t *Timer) SetDuration(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.duration = max(0, seconds)
	if t.state == StateReady {
		t.remaining = t.duration
	}
}

// Stop cancels the pending callback without changing state.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
}

func (t *Timer) Snapshot() TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshotLocked()
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

// LoadState restores the numbers written into a saved session. Scheduled
// transitions do not survive a reload: an interrupted countdown comes back
// paused and a finished round comes back in discussion.
func (t *Timer) LoadState(remaining int, state TimerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.paused = false
	t.remaining = min(max(0, remaining), t.duration)

	switch state {
	case StateCompleted, StateDiscussion:
		t.state = StateDiscussion
		t.remaining = 0
	case StateCountdown:
		if t.remaining > 0 {
			t.state = StateCountdown
			t.paused = true
			t.tickLeft = tickInterval
		} else {
			t.state = StateDiscussion
		}
	default:
		t.state = StateReady
		t.remaining = t.duration
	}
}

func (t *Timer) snapshotLocked() TimerSnapshot {
	return TimerSnapshot{
		State:     t.state,
		Remaining: t.remaining,
		Duration:  t.duration,
		Paused:    t.paused,
		Completed: t.state == StateCompleted,
	}
}

func (t *Timer) resetLocked() {
	t.cancelLocked()
	t.state = StateReady
	t.paused = false
	t.remaining = t.duration
}

func (t *Timer) cancelLocked() {
	t.gen++

	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) scheduleLocked(d time.Duration, step func() []Cue) {
	t.cancelLocked()

	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() {
		t.fire(gen, step)
	})
}

func (t *Timer) scheduleTickLocked(d time.Duration) {
	t.tickDue = t.clock.Now().Add(d)
	t.scheduleLocked(d, t.tickLocked)
}

func (t *Timer) fire(gen uint64, step func() []Cue) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()

		return
	}

	t.pending = nil
	cues := step()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	for _, cue := range cues {
		if t.onCue != nil {
			t.onCue(cue)
		}
	}

	if t.onChange != nil {
		t.onChange(snap)
	}
}

func (t *Timer) beginCountdownLocked() []Cue {
	if !t.transitionLocked(StateCountdown) {
		return nil
	}

	if t.remaining <= 0 {
		return t.completeLocked()
	}

	t.scheduleTickLocked(tickInterval)

	return nil
}

func (t *Timer) tickLocked() []Cue {
	t.remaining = max(0, t.remaining-1)

	if t.remaining == 0 {
		return t.completeLocked()
	}

	t.scheduleTickLocked(tickInterval)

	if t.remaining > warningSeconds {
		return nil
	}

	pitch := 600
	if t.remaining == 1 {
		pitch = 1000
	}

	return []Cue{{Kind: CueTick, Remaining: t.remaining, Pitch: pitch}}
}

func (t *Timer) completeLocked() []Cue {
	if !t.transitionLocked(StateCompleted) {
		return nil
	}

	t.remaining = 0
	t.scheduleLocked(completionDelay, t.beginDiscussionLocked)

	return []Cue{{Kind: CueComplete, Pitch: 800}}
}

func (t *Timer) beginDiscussionLocked() []Cue {
	t.transitionLocked(StateDiscussion)

	return nil
}

func (t *Timer) transitionLocked(next TimerState) bool {
	if !t.state.CanTransitionTo(next) {
		return false
	}

	t.state = next

	return true
}
