/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/analogy/store"
)

// staleStore acknowledges writes but always reads back the same document.
type staleStore struct {
	doc []byte
}

func (s *staleStore) Get(context.Context, string) ([]byte, error) { return s.doc, nil }
func (s *staleStore) Set(context.Context, string, []byte) error   { return nil }
func (s *staleStore) Clear(context.Context) error                 { return nil }
func (s *staleStore) Close() error                                { return nil }

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("broken")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Set(context.Context, string, []byte) error   { return errBroken }
func (brokenStore) Clear(context.Context) error                 { return errBroken }
func (brokenStore) Close() error                                { return nil }

func newTestAggregator(st store.Store) (*Aggregator, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	return NewAggregator(st, WithClock(fc)), fc
}

// flakyStore fails the first n reads, then behaves like the wrapped store.
type flakyStore struct {
	store.Store
	failures int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failures > 0 {
		f.failures--

		return nil, errBroken
	}

	return f.Store.Get(ctx, key)
}

func TestAggregatorLoadPersistsDefault(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg, _ := newTestAggregator(st)

	session, found, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, PhaseVoting, session.CurrentPhase)

	raw, err := st.Get(ctx, CurrentSessionKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), session.ID)
}

func TestAggregatorRoundTrip(t *testing.T) {
	ctx := context.Background()
	agg, fc := newTestAggregator(store.NewMemory())

	session := agg.CreateDefault()
	session.TeamName = "Strategy"
	session.CurrentPhase = PhaseArchetype
	session.Phase1.Pairs = testPairs()
	session.Phase1.PairVotes = map[int]PairVotes{0: {CompanyA: 3}, 2: {CompanyB: 1}}
	session.Phase2.Keywords = []string{"scale"}
	session.Phase3.Hypotheses = []Hypothesis{{Premise: "p", Conclusion: "c"}}

	fc.Advance(time.Minute)
	require.NoError(t, agg.Save(ctx, session))
	assert.Equal(t, fc.Now().UTC(), session.UpdatedAt)

	loaded, found, err := agg.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, "Strategy", loaded.TeamName)
	assert.Equal(t, PhaseArchetype, loaded.CurrentPhase)
	assert.Equal(t, session.Phase1.PairVotes, loaded.Phase1.PairVotes)
	assert.Equal(t, session.Phase1.Pairs, loaded.Phase1.Pairs)
	assert.Equal(t, []string{"scale"}, loaded.Phase2.Keywords)
	assert.Equal(t, session.Phase3.Hypotheses, loaded.Phase3.Hypotheses)
}

func TestAggregatorKeepsNewDefaultFields(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg, _ := newTestAggregator(st)

	// An older document without settings or phase3.
	old := `{"id":"session_1_abc","currentPhase":2,"teamName":"Old","phase1":{"pairs":[]}}`
	require.NoError(t, st.Set(ctx, CurrentSessionKey, []byte(old)))

	loaded, found, err := agg.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "session_1_abc", loaded.ID)
	assert.Equal(t, "Old", loaded.TeamName)
	assert.Equal(t, defaultTimerDuration, loaded.Settings.TimerDuration)
	assert.True(t, loaded.Settings.AutoSave)
	assert.NotNil(t, loaded.Phase3.ActionItems)
	assert.NotNil(t, loaded.Phase1.PairVotes)
}

func TestAggregatorArraysAreReplaced(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg, _ := newTestAggregator(st)

	doc := `{"id":"s","phase2":{"keywords":["one"]}}`
	require.NoError(t, st.Set(ctx, CurrentSessionKey, []byte(doc)))

	loaded, _, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, loaded.Phase2.Keywords)
}

func TestAggregatorDropsMalformedWinners(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg, _ := newTestAggregator(st)

	doc := `{"id":"s","phase2":{"winnersFromPhase1":[
		{"name":"Tesla","votes":3,"strategicContrast":"c","pairIndex":0,"winType":"clear"},
		{"name":"NoContrast","votes":2},
		{"name":"","votes":1,"strategicContrast":"c"},
		{"name":"Fraction","votes":1.5,"strategicContrast":"c"},
		{"name":"StringVotes","votes":"4","strategicContrast":"c"},
		"garbage"
	]}}`
	require.NoError(t, st.Set(ctx, CurrentSessionKey, []byte(doc)))

	loaded, found, err := agg.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, loaded.Phase2.WinnersFromPhase1, 1)
	assert.Equal(t, "Tesla", loaded.Phase2.WinnersFromPhase1[0].Name)
	assert.Equal(t, 3, loaded.Phase2.WinnersFromPhase1[0].Votes)
}

func TestAggregatorCorruptDocumentFallsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg, _ := newTestAggregator(st)

	require.NoError(t, st.Set(ctx, CurrentSessionKey, []byte(`{not json`)))

	loaded, found, err := agg.Load(ctx)
	require.ErrorIs(t, err, ErrSessionUnreadable)
	assert.False(t, found)
	assert.NotEmpty(t, loaded.ID)

	raw, err := st.Get(ctx, CurrentSessionKey)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(raw))
}

func TestAggregatorSaveVerification(t *testing.T) {
	ctx := context.Background()
	agg, _ := newTestAggregator(&staleStore{doc: []byte(`{"id":"someone-else"}`)})

	session := agg.CreateDefault()
	session.TeamName = "kept"

	err := agg.Save(ctx, session)
	require.ErrorIs(t, err, ErrSaveVerification)
	assert.Equal(t, "kept", session.TeamName)
}

func TestAggregatorStoreFailure(t *testing.T) {
	ctx := context.Background()
	agg, _ := newTestAggregator(brokenStore{})

	require.ErrorIs(t, agg.Save(ctx, agg.CreateDefault()), errBroken)

	session, found, err := agg.Load(ctx)
	require.ErrorIs(t, err, ErrSessionUnreadable)
	require.ErrorIs(t, err, errBroken)
	assert.False(t, found)
	assert.NotNil(t, session)
}

func TestAggregatorArchive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	agg := NewAggregator(st, WithArchive(true))

	session := agg.CreateDefault()
	require.NoError(t, agg.Save(ctx, session))

	raw, err := st.Get(ctx, session.ID)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, session.ID, doc["id"])

	require.NoError(t, agg.Clear(ctx))
	_, err = st.Get(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionIDFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := newSessionID(now)

	assert.Regexp(t, `^session_1700000000123_[0-9a-z]{9}$`, id)
	assert.NotEqual(t, id, newSessionID(now))
}
