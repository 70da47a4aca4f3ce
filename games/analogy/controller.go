/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/analogy/store"
)

const defaultPairCount = 5

// Config wires a Controller to its collaborators. Zero values fall back to
// defaults; TimerDuration and AutoSaveInterval only apply to sessions
// created by this controller, never to ones loaded from the store.
type Config struct {
	Store            store.Store
	Clock            clockwork.Clock
	Logger           zerolog.Logger
	Catalog          []CompanyPair
	PairCount        int
	TimerDuration    int
	AutoSaveInterval time.Duration
	Archive          bool
	Rand             *rand.Rand
}

// Controller composes the timer, ledger, cursor and aggregator around one
// session document. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	timer      *Timer
	ledger     *Ledger
	cursor     *Cursor
	aggregator *Aggregator

	session *Session
	status  SaveStatus
	saveErr string
	dirty   bool

	cfg   Config
	clock clockwork.Clock
	log   zerolog.Logger

	listenersMu sync.Mutex
	onChange    []func()
	onCue       []func(Cue)
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	if cfg.PairCount <= 0 {
		cfg.PairCount = defaultPairCount
	}

	c := &Controller{
		ledger: NewLedger(),
		status: StatusSaved,
		cfg:    cfg,
		clock:  cfg.Clock,
		log:    cfg.Logger,
	}

	c.aggregator = NewAggregator(cfg.Store,
		WithClock(cfg.Clock),
		WithLogger(cfg.Logger),
		WithArchive(cfg.Archive),
	)

	c.timer = NewTimer(cfg.Clock, defaultTimerDuration,
		WithCueHandler(c.emitCue),
		WithChangeHandler(c.onTimerChange),
	)

	c.cursor = NewCursor(0, c.onPairMove)
	c.session = c.newSession()

	return c
}

// OnChange registers f to run after every state change.
func (c *Controller) OnChange(f func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.onChange = append(c.onChange, f)
}

// OnCue registers f to receive audio cue requests from the timer.
func (c *Controller) OnCue(f func(Cue)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.onCue = append(c.onCue, f)
}

// Open loads the saved session, or starts and persists a new one. A store
// failure is logged and reported, but the controller stays usable with
// the in-memory session. When the saved session exists but cannot be read,
// the fresh session is not written over it until something changes.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()

	session, found, err := c.aggregator.Load(ctx)
	if !found {
		c.applyDefaults(session)
	}

	c.session = session

	if len(session.Phase1.Pairs) == 0 {
		session.Phase1.Pairs = c.selectPairs()
		if !errors.Is(err, ErrSessionUnreadable) {
			c.markDirtyLocked()
		}
	}

	c.hydrateLocked()

	switch {
	case errors.Is(err, ErrSessionUnreadable):
		c.status = StatusError
		c.saveErr = err.Error()
		c.log.Error().Err(err).Msg("failed to load saved session, starting fresh")
	case err != nil:
		c.status = StatusError
		c.saveErr = err.Error()
		c.log.Error().Err(err).Str("session_id", session.ID).Msg("failed to persist new session")
	}

	c.mu.Unlock()

	if !found && err == nil {
		if err := c.Save(ctx); err != nil {
			return err
		}
	}

	c.notify()

	return err
}

// Close cancels any pending timer callback.
func (c *Controller) Close() {
	c.timer.Stop()
}

func (c *Controller) newSession() *Session {
	s := c.aggregator.CreateDefault()
	c.applyDefaults(s)

	return s
}

// applyDefaults puts the configured timer and autosave settings on a
// session this controller created.
func (c *Controller) applyDefaults(s *Session) {
	if c.cfg.TimerDuration > 0 {
		s.Settings.TimerDuration = c.cfg.TimerDuration
		s.Phase1.TimerLeft = c.cfg.TimerDuration
	}
	if c.cfg.AutoSaveInterval > 0 {
		s.Settings.AutoSaveInterval = int(c.cfg.AutoSaveInterval / time.Millisecond)
	}
}

func (c *Controller) selectPairs() []CompanyPair {
	return SelectPairs(c.cfg.Catalog, c.cfg.PairCount, c.cfg.Rand)
}

// hydrateLocked rebuilds the live components from the session document.
func (c *Controller) hydrateLocked() {
	p1 := c.session.Phase1

	c.ledger.LoadState(p1.PairVotes)

	c.cursor = NewCursor(len(p1.Pairs), c.onPairMove)
	c.cursor.LoadState(p1.CurrentPairIndex)

	c.timer.SetDuration(c.session.Settings.TimerDuration)
	c.timer.LoadState(p1.TimerLeft, p1.TimerState)

	c.session.Phase1.Votes = c.ledger.Tally(c.cursor.Index())
}

// flattenLocked writes live component state back into the document.
func (c *Controller) flattenLocked() {
	p1 := &c.session.Phase1
	snap := c.timer.Snapshot()
	votes := c.ledger.Tally(c.cursor.Index())

	p1.PairVotes = c.ledger.GetState()
	p1.Votes = votes
	p1.CurrentPairIndex = c.cursor.Index()
	p1.TimerLeft = snap.Remaining
	p1.TimerState = snap.State
	p1.TotalVotes = votes.Total()
	p1.PercentageA, p1.PercentageB = votes.Percentages()

	c.session.Settings.TimerDuration = snap.Duration
}

func (c *Controller) markDirtyLocked() {
	c.dirty = true
	c.status = StatusPending
	c.saveErr = ""
}

func (c *Controller) update(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	if changed {
		c.markDirtyLocked()
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}

	return changed
}

func (c *Controller) notify() {
	c.listenersMu.Lock()
	listeners := slices.Clone(c.onChange)
	c.listenersMu.Unlock()

	for _, f := range listeners {
		f()
	}
}

func (c *Controller) emitCue(cue Cue) {
	c.listenersMu.Lock()
	listeners := slices.Clone(c.onCue)
	c.listenersMu.Unlock()

	for _, f := range listeners {
		f(cue)
	}
}

func (c *Controller) onTimerChange(TimerSnapshot) {
	c.update(func() bool { return true })
}

func (c *Controller) onPairMove(index int) {
	c.session.Phase1.Votes = c.ledger.Tally(index)
}

// Voting

func (c *Controller) Vote(side Side) bool {
	return c.update(func() bool {
		if c.cursor.Len() == 0 {
			return false
		}
		c.ledger.Vote(c.cursor.Index(), side)

		return true
	})
}

func (c *Controller) Unvote(side Side) bool {
	return c.update(func() bool {
		before := c.ledger.Tally(c.cursor.Index())
		c.ledger.Decrement(c.cursor.Index(), side)

		return c.ledger.Tally(c.cursor.Index()) != before
	})
}

// ResetVotes zeroes the current pair only.
func (c *Controller) ResetVotes() bool {
	return c.update(func() bool {
		if c.ledger.Tally(c.cursor.Index()).Total() == 0 {
			return false
		}
		c.ledger.Reset(c.cursor.Index())

		return true
	})
}

// Navigation

func (c *Controller) NextPair() bool {
	return c.update(func() bool { return c.cursor.Next() })
}

func (c *Controller) PreviousPair() bool {
	return c.update(func() bool { return c.cursor.Previous() })
}

func (c *Controller) GoToPair(index int) bool {
	return c.update(func() bool { return c.cursor.GoTo(index) })
}

// Timer

func (c *Controller) StartTimer() bool {
	return c.update(func() bool { return c.timer.Start() })
}

func (c *Controller) PauseTimer() bool {
	return c.update(func() bool { return c.timer.Pause() })
}

func (c *Controller) ResetTimer() {
	c.update(func() bool {
		c.timer.Reset()

		return true
	})
}

// NextRound ends the discussion, resets the timer and moves to the next
// pair when there is one. It does nothing outside discussion.
func (c *Controller) NextRound() bool {
	return c.update(func() bool {
		if !c.timer.NextRound() {
			return false
		}
		c.cursor.Next()

		return true
	})
}

func (c *Controller) SetTimerDuration(seconds int) bool {
	return c.update(func() bool {
		if seconds <= 0 {
			return false
		}
		c.timer.SetDuration(seconds)
		c.session.Settings.TimerDuration = seconds

		return true
	})
}

// Phases

// SetPhase moves the session to phase. Leaving the voting phase for the
// archetype phase hands the current winners over, replacing whatever an
// earlier transition left there.
func (c *Controller) SetPhase(phase int) bool {
	return c.update(func() bool {
		if phase < PhaseVoting || phase > PhaseTranslation {
			return false
		}

		if c.session.CurrentPhase == PhaseVoting && phase == PhaseArchetype {
			c.transferWinnersLocked()
		}

		changed := c.session.CurrentPhase != phase
		c.session.CurrentPhase = phase

		return changed
	})
}

func (c *Controller) transferWinnersLocked() {
	winners := make([]Winner, 0)
	for w := range c.ledger.Winners(c.session.Phase1.Pairs) {
		if w.wellFormed() {
			winners = append(winners, w)
		}
	}

	c.session.Phase2.WinnersFromPhase1 = winners

	c.log.Info().
		Str("session_id", c.session.ID).
		Int("winners", len(winners)).
		Msg("transferred winners to archetype phase")
}

// Details holds the free-text session header. Nil fields are left alone.
type Details struct {
	TeamName     *string `json:"teamName,omitempty"`
	Facilitator  *string `json:"facilitator,omitempty"`
	Participants *int    `json:"participants,omitempty"`
}

func (c *Controller) UpdateDetails(d Details) bool {
	return c.update(func() bool {
		if d.TeamName != nil {
			c.session.TeamName = *d.TeamName
		}
		if d.Facilitator != nil {
			c.session.Facilitator = *d.Facilitator
		}
		if d.Participants != nil {
			n := max(0, *d.Participants)
			c.session.Participants = &n
		}

		return d.TeamName != nil || d.Facilitator != nil || d.Participants != nil
	})
}

func (c *Controller) SetPatterns(patterns string) {
	c.update(func() bool {
		c.session.Phase2.Patterns = patterns

		return true
	})
}

func (c *Controller) SetArchetype(archetype string) {
	c.update(func() bool {
		c.session.Phase2.Archetype = archetype

		return true
	})
}

func (c *Controller) SetKeywords(keywords []string) {
	c.update(func() bool {
		c.session.Phase2.Keywords = append([]string{}, keywords...)

		return true
	})
}

func (c *Controller) SetForerunner(forerunner string) {
	c.update(func() bool {
		c.session.Phase3.Forerunner = forerunner

		return true
	})
}

func (c *Controller) ApplyArchetypeTemplate(name string) error {
	tpl, ok := ArchetypeTemplates[name]
	if !ok {
		return fmt.Errorf("%w: archetype %q", ErrUnknownTemplate, name)
	}

	c.update(func() bool {
		c.session.Phase2.Patterns = tpl.Patterns
		c.session.Phase2.Archetype = tpl.Archetype
		c.session.Phase2.TemplateUsed = name

		return true
	})

	return nil
}

// ApplyHypothesisTemplate fills the most recent hypothesis, adding one
// first when the list is empty.
func (c *Controller) ApplyHypothesisTemplate(name string) error {
	tpl, ok := HypothesisTemplates[name]
	if !ok {
		return fmt.Errorf("%w: hypothesis %q", ErrUnknownTemplate, name)
	}

	c.update(func() bool {
		p3 := &c.session.Phase3
		if len(p3.Hypotheses) == 0 {
			p3.Hypotheses = append(p3.Hypotheses, newHypothesis())
		}

		last := &p3.Hypotheses[len(p3.Hypotheses)-1]
		last.Premise = tpl.Premise
		last.Conclusion = tpl.Conclusion
		last.Statement = tpl.Statement()

		return true
	})

	return nil
}

// Persistence

// Save flattens the live components into the document and writes it.
// On failure the status flips to error and the in-memory session is kept
// as is for a retry.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	c.flattenLocked()
	err := c.aggregator.Save(ctx, c.session)
	if err != nil {
		c.status = StatusError
		c.saveErr = err.Error()
		c.log.Error().Err(err).Str("session_id", c.session.ID).Msg("failed to save session")
	} else {
		c.status = StatusSaved
		c.saveErr = ""
		c.dirty = false
	}
	c.mu.Unlock()

	c.notify()

	return err
}

// RunAutoSave saves on every interval tick when there are unsaved
// changes, until ctx is done.
func (c *Controller) RunAutoSave(ctx context.Context) {
	c.mu.Lock()
	enabled := c.session.Settings.AutoSave
	every := c.session.Settings.AutoSaveEvery()
	c.mu.Unlock()

	if !enabled {
		return
	}

	ticker := c.clock.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !c.Dirty() {
				continue
			}

			// Errors are already logged and reflected in the status.
			_ = c.Save(ctx)
		}
	}
}

// Reset supersedes the current session with a fresh one and persists it.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	previous := c.session.ID
	c.session = c.newSession()
	c.session.Phase1.Pairs = c.selectPairs()
	c.timer.Reset()
	c.hydrateLocked()
	c.markDirtyLocked()
	c.log.Info().Str("previous_id", previous).Str("session_id", c.session.ID).Msg("session reset")
	c.mu.Unlock()

	return c.Save(ctx)
}

// ClearStorage wipes the store and starts over.
func (c *Controller) ClearStorage(ctx context.Context) error {
	if err := c.aggregator.Clear(ctx); err != nil {
		c.mu.Lock()
		c.status = StatusError
		c.saveErr = err.Error()
		c.mu.Unlock()
		c.notify()

		return fmt.Errorf("clear storage: %w", err)
	}

	return c.Reset(ctx)
}

// Reads

func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dirty
}

func (c *Controller) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func (c *Controller) Winners() []Winner {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.winnersLocked()
}

func (c *Controller) winnersLocked() []Winner {
	winners := slices.Collect(c.ledger.Winners(c.session.Phase1.Pairs))
	if winners == nil {
		winners = []Winner{}
	}

	return winners
}

// Document returns a plain copy of the flattened session.
func (c *Controller) Document() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flattenLocked()

	return copySession(c.session)
}

// View is everything a screen needs to render the session.
type View struct {
	Session             *Session         `json:"session"`
	Phases              []Phase          `json:"phases"`
	CurrentPair         *CompanyPair     `json:"currentPair,omitempty"`
	Counter             string           `json:"counter"`
	CanNext             bool             `json:"canNext"`
	CanPrevious         bool             `json:"canPrevious"`
	Votes               PairVotes        `json:"votes"`
	PercentageA         int              `json:"percentageA"`
	PercentageB         int              `json:"percentageB"`
	Timer               TimerSnapshot    `json:"timer"`
	Completion          CompletionStatus `json:"completion"`
	Winners             []Winner         `json:"winners"`
	SaveStatus          SaveStatus       `json:"saveStatus"`
	SaveError           string           `json:"saveError,omitempty"`
	ArchetypeTemplates  []string         `json:"archetypeTemplates"`
	HypothesisTemplates []string         `json:"hypothesisTemplates"`
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flattenLocked()

	s := copySession(c.session)
	p1 := s.Phase1

	v := View{
		Session:             s,
		Phases:              Phases,
		Counter:             c.cursor.Counter(),
		CanNext:             c.cursor.CanNext(),
		CanPrevious:         c.cursor.CanPrevious(),
		Votes:               p1.Votes,
		PercentageA:         p1.PercentageA,
		PercentageB:         p1.PercentageB,
		Timer:               c.timer.Snapshot(),
		Completion:          c.ledger.CompletionStatus(len(p1.Pairs)),
		Winners:             c.winnersLocked(),
		SaveStatus:          c.status,
		SaveError:           c.saveErr,
		ArchetypeTemplates:  TemplateNames(ArchetypeTemplates),
		HypothesisTemplates: TemplateNames(HypothesisTemplates),
	}

	if idx := c.cursor.Index(); idx < len(p1.Pairs) {
		pair := p1.Pairs[idx]
		v.CurrentPair = &pair
	}

	return v
}

// copySession deep-copies through the JSON form, which is also exactly
// what gets persisted.
func copySession(s *Session) *Session {
	data, err := json.Marshal(s)
	if err != nil {
		panic("session is not serializable: " + err.Error())
	}

	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		panic("session does not round-trip: " + err.Error())
	}

	out.normalize()

	return &out
}
