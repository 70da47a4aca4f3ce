/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPairs() []CompanyPair {
	return []CompanyPair{
		{CompanyA: "Tesla", CompanyB: "Toyota", StrategicContrast: "Disruption vs. refinement", Level: 1},
		{CompanyA: "Apple", CompanyB: "Samsung", StrategicContrast: "Closed vs. open ecosystem", Level: 2},
		{CompanyA: "IKEA", CompanyB: "Hermès", StrategicContrast: "Volume vs. exclusivity", Level: 3},
		{CompanyA: "Netflix", CompanyB: "Disney", StrategicContrast: "Platform vs. franchise", Level: 4},
	}
}

func TestLedgerVoteAndTally(t *testing.T) {
	l := NewLedger()

	l.Vote(0, SideA)
	l.Vote(0, SideA)
	l.Vote(0, SideB)
	l.Vote(0, Side("C"))

	v := l.Tally(0)
	assert.Equal(t, PairVotes{CompanyA: 2, CompanyB: 1}, v)
	assert.Equal(t, 3, v.Total())

	a, b := v.Percentages()
	assert.Equal(t, 67, a)
	assert.Equal(t, 33, b)

	assert.Equal(t, PairVotes{}, l.Tally(7))
}

func TestPercentagesOfEmptyTally(t *testing.T) {
	a, b := PairVotes{}.Percentages()
	assert.Zero(t, a)
	assert.Zero(t, b)
}

func TestLedgerDecrementFloorsAtZero(t *testing.T) {
	l := NewLedger()

	l.Decrement(0, SideA)
	assert.Equal(t, PairVotes{}, l.Tally(0))

	l.Vote(0, SideB)
	l.Decrement(0, SideB)
	l.Decrement(0, SideB)
	assert.Equal(t, PairVotes{}, l.Tally(0))
}

func TestLedgerResetOnlyTouchesOnePair(t *testing.T) {
	l := NewLedger()
	l.Vote(0, SideA)
	l.Vote(1, SideB)

	l.Reset(0)

	assert.Equal(t, PairVotes{}, l.Tally(0))
	assert.Equal(t, PairVotes{CompanyB: 1}, l.Tally(1))
}

func TestLedgerWinners(t *testing.T) {
	pairs := testPairs()
	l := NewLedger()

	for range 3 {
		l.Vote(1, SideB)
	}
	l.Vote(0, SideA)
	l.Vote(2, SideA)
	l.Vote(2, SideB)

	winners := slices.Collect(l.Winners(pairs))
	require.Len(t, winners, 3)

	assert.Equal(t, Winner{
		Name:              "Samsung",
		Votes:             3,
		PairIndex:         1,
		WinType:           WinClear,
		StrategicContrast: "Closed vs. open ecosystem",
	}, winners[0])

	// Equal vote counts keep pair order.
	assert.Equal(t, "Tesla", winners[1].Name)
	assert.Equal(t, 0, winners[1].PairIndex)

	assert.Equal(t, "IKEA / Hermès", winners[2].Name)
	assert.Equal(t, WinTied, winners[2].WinType)
	assert.Equal(t, 1, winners[2].Votes)
}

func TestLedgerWinnersSkipsZeroTallies(t *testing.T) {
	l := NewLedger()
	l.Vote(0, SideA)
	l.Reset(0)

	assert.Empty(t, slices.Collect(l.Winners(testPairs())))
}

func TestLedgerWinnersStopsEarly(t *testing.T) {
	l := NewLedger()
	for i := range 4 {
		l.Vote(i, SideA)
	}

	seen := 0
	for range l.Winners(testPairs()) {
		seen++
		if seen == 2 {
			break
		}
	}

	assert.Equal(t, 2, seen)
}

func TestLedgerCompletion(t *testing.T) {
	l := NewLedger()
	l.Vote(0, SideA)
	l.Vote(2, SideB)

	status := l.CompletionStatus(4)
	assert.Equal(t, CompletionStatus{
		VotedPairs:           2,
		TotalPairs:           4,
		CompletionPercentage: 50,
		IsComplete:           false,
		TotalWinners:         2,
	}, status)
	assert.False(t, l.IsComplete(4))

	l.Vote(1, SideA)
	l.Vote(3, SideA)
	assert.True(t, l.IsComplete(4))
	assert.Equal(t, 100, l.CompletionStatus(4).CompletionPercentage)

	assert.Zero(t, NewLedger().CompletionStatus(0).CompletionPercentage)
}

func TestLedgerStateRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Vote(0, SideA)
	l.Vote(3, SideB)

	state := l.GetState()
	state[0] = PairVotes{CompanyA: 99}
	assert.Equal(t, PairVotes{CompanyA: 1}, l.Tally(0), "GetState must return a copy")

	other := NewLedger()
	other.LoadState(l.GetState())
	assert.Equal(t, l.GetState(), other.GetState())
}

func TestLedgerLoadStateClampsNegatives(t *testing.T) {
	l := NewLedger()
	l.LoadState(map[int]PairVotes{0: {CompanyA: -2, CompanyB: 4}})

	assert.Equal(t, PairVotes{CompanyB: 4}, l.Tally(0))
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"A": SideA, "a": SideA, "B": SideB, "b": SideB} {
		got, err := ParseSide(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseSide("c")
	assert.Error(t, err)
}
