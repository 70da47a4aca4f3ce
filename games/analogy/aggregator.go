/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/analogy/store"
)

// CurrentSessionKey holds the active session document.
const CurrentSessionKey = "current-session"

var (
	ErrSaveVerification  = errors.New("save verification failed")
	ErrSessionUnreadable = errors.New("saved session unreadable")
)

type SaveStatus string

const (
	StatusSaved   SaveStatus = "saved"
	StatusPending SaveStatus = "pending"
	StatusError   SaveStatus = "error"
)

// Aggregator is the merge/serialize boundary between a Session and the
// store.
type Aggregator struct {
	store   store.Store
	clock   clockwork.Clock
	log     zerolog.Logger
	archive bool
}

type AggregatorOption func(*Aggregator)

// WithArchive also writes every save under the session's own id, so a
// reset session is superseded rather than lost.
func WithArchive(enabled bool) AggregatorOption {
	return func(a *Aggregator) {
		a.archive = enabled
	}
}

func WithLogger(log zerolog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.log = log
	}
}

func WithClock(clock clockwork.Clock) AggregatorOption {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

func NewAggregator(st store.Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store: st,
		clock: clockwork.NewRealClock(),
		log:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// CreateDefault returns a fresh session stamped with the aggregator clock.
func (a *Aggregator) CreateDefault() *Session {
	return NewSession(a.clock.Now())
}

// Load returns the saved session merged onto the current defaults. When
// nothing is saved a fresh default is persisted and returned. When the
// saved document cannot be read or decoded, a fresh default is returned
// with an error wrapping ErrSessionUnreadable, and the stored document is
// left in place. The bool reports whether a saved session was found.
func (a *Aggregator) Load(ctx context.Context) (*Session, bool, error) {
	def := a.CreateDefault()

	raw, err := a.store.Get(ctx, CurrentSessionKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := a.Save(ctx, def); err != nil {
			return def, false, err
		}

		return def, false, nil
	case err != nil:
		return def, false, fmt.Errorf("%w: %w", ErrSessionUnreadable, err)
	}

	session, err := mergeSaved(def, raw)
	if err != nil {
		return def, false, fmt.Errorf("%w: %w", ErrSessionUnreadable, err)
	}

	a.log.Debug().
		Str("session_id", session.ID).
		Int("phase", session.CurrentPhase).
		Msg("loaded saved session")

	return session, true, nil
}

// Save stamps updatedAt, writes the session and reads it back. A read-back
// with a different id is reported as ErrSaveVerification even though the
// write itself succeeded. The session is never rolled back on failure.
func (a *Aggregator) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = a.clock.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := a.store.Set(ctx, CurrentSessionKey, data); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	if a.archive {
		if err := a.store.Set(ctx, session.ID, data); err != nil {
			return fmt.Errorf("write session archive: %w", err)
		}
	}

	raw, err := a.store.Get(ctx, CurrentSessionKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveVerification, err)
	}

	var check struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &check); err != nil || check.ID != session.ID {
		return ErrSaveVerification
	}

	return nil
}

// Clear wipes every document in the store.
func (a *Aggregator) Clear(ctx context.Context) error {
	return a.store.Clear(ctx)
}

func mergeSaved(def *Session, raw []byte) (*Session, error) {
	var saved map[string]any
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, err
	}

	base, err := toDocument(def)
	if err != nil {
		return nil, err
	}

	merged := DeepMerge(base, saved)
	dropMalformedWinners(merged)

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	session.normalize()

	return &session, nil
}

func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// dropMalformedWinners keeps only winner records shaped like
// {name: string, votes: number, strategicContrast: non-empty}.
func dropMalformedWinners(doc map[string]any) {
	phase2, ok := doc["phase2"].(map[string]any)
	if !ok {
		return
	}

	list, ok := phase2["winnersFromPhase1"].([]any)
	if !ok {
		phase2["winnersFromPhase1"] = []any{}

		return
	}

	kept := make([]any, 0, len(list))
	for _, item := range list {
		w, ok := item.(map[string]any)
		if !ok {
			continue
		}

		name, nameOK := w["name"].(string)
		votes, votesOK := w["votes"].(float64)
		contrast, _ := w["strategicContrast"].(string)
		if !nameOK || name == "" || !votesOK || votes != math.Trunc(votes) || contrast == "" {
			continue
		}

		if idx, ok := w["pairIndex"].(float64); !ok || idx != math.Trunc(idx) {
			delete(w, "pairIndex")
		}
		if _, ok := w["winType"].(string); !ok {
			delete(w, "winType")
		}

		kept = append(kept, w)
	}

	phase2["winnersFromPhase1"] = kept
}

// normalize replaces nil collections and out-of-range values that an older
// or hand-edited document may carry.
func (s *Session) normalize() {
	if s.CurrentPhase < PhaseVoting || s.CurrentPhase > PhaseTranslation {
		s.CurrentPhase = PhaseVoting
	}

	if s.Phase1.Pairs == nil {
		s.Phase1.Pairs = []CompanyPair{}
	}
	if s.Phase1.PairVotes == nil {
		s.Phase1.PairVotes = map[int]PairVotes{}
	}
	if s.Phase2.Keywords == nil {
		s.Phase2.Keywords = []string{}
	}
	if s.Phase2.WinnersFromPhase1 == nil {
		s.Phase2.WinnersFromPhase1 = []Winner{}
	}
	if s.Phase3.PositiveAnalogies == nil {
		s.Phase3.PositiveAnalogies = []Analogy{}
	}
	if s.Phase3.NegativeAnalogies == nil {
		s.Phase3.NegativeAnalogies = []Analogy{}
	}
	if s.Phase3.CausalRelations == nil {
		s.Phase3.CausalRelations = []CausalRelation{}
	}
	if s.Phase3.Hypotheses == nil {
		s.Phase3.Hypotheses = []Hypothesis{}
	}
	if s.Phase3.ActionItems == nil {
		s.Phase3.ActionItems = []ActionItem{}
	}

	if s.Settings.TimerDuration < 0 {
		s.Settings.TimerDuration = defaultTimerDuration
	}
	if s.Settings.AutoSaveInterval <= 0 {
		s.Settings.AutoSaveInterval = defaultAutoSaveInterval
	}
}
