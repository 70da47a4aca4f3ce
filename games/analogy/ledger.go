/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"
)

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts "A"/"B" in either case.
func ParseSide(s string) (Side, error) {
	switch s {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	}

	return "", fmt.Errorf("invalid side %q", s)
}

type WinType string

const (
	WinClear WinType = "clear"
	WinTied  WinType = "tied"
)

// PairVotes is the tally for one pair. Neither count goes below zero.
type PairVotes struct {
	CompanyA int `json:"companyA"`
	CompanyB int `json:"companyB"`
}

func (v PairVotes) Total() int {
	return v.CompanyA + v.CompanyB
}

// Percentages rounds each side's share of the total, 0/0 when empty.
func (v PairVotes) Percentages() (int, int) {
	total := v.Total()
	if total == 0 {
		return 0, 0
	}

	a := int(math.Round(float64(v.CompanyA) / float64(total) * 100))
	b := int(math.Round(float64(v.CompanyB) / float64(total) * 100))

	return a, b
}

// Winner is derived from the ledger for every pair with a non-zero tally.
type Winner struct {
	Name              string  `json:"name"`
	Votes             int     `json:"votes"`
	PairIndex         int     `json:"pairIndex"`
	WinType           WinType `json:"winType"`
	StrategicContrast string  `json:"strategicContrast"`
}

// wellFormed reports whether w can be handed to the archetype phase.
func (w Winner) wellFormed() bool {
	return w.Name != "" && w.StrategicContrast != ""
}

type CompletionStatus struct {
	VotedPairs           int  `json:"votedPairs"`
	TotalPairs           int  `json:"totalPairs"`
	CompletionPercentage int  `json:"completionPercentage"`
	IsComplete           bool `json:"isComplete"`
	TotalWinners         int  `json:"totalWinners"`
}

// Ledger maps pair index to vote tally.
type Ledger struct {
	votes map[int]PairVotes
}

func NewLedger() *Ledger {
	return &Ledger{votes: make(map[int]PairVotes)}
}

func (l *Ledger) Vote(pairIndex int, side Side) {
	v := l.votes[pairIndex]

	switch side {
	case SideA:
		v.CompanyA++
	case SideB:
		v.CompanyB++
	default:
		return
	}

	l.votes[pairIndex] = v
}

// Decrement is a no-op when the side is already at zero.
func (l *Ledger) Decrement(pairIndex int, side Side) {
	v, ok := l.votes[pairIndex]
	if !ok {
		return
	}

	switch side {
	case SideA:
		v.CompanyA = max(0, v.CompanyA-1)
	case SideB:
		v.CompanyB = max(0, v.CompanyB-1)
	default:
		return
	}

	l.votes[pairIndex] = v
}

// Reset zeroes one pair; other pairs keep their tallies.
func (l *Ledger) Reset(pairIndex int) {
	if _, ok := l.votes[pairIndex]; ok {
		l.votes[pairIndex] = PairVotes{}
	}
}

func (l *Ledger) Tally(pairIndex int) PairVotes {
	return l.votes[pairIndex]
}

// Winners yields one record per pair with at least one vote, most votes
// first. Each call ranges over a fresh snapshot of the ledger.
func (l *Ledger) Winners(pairs []CompanyPair) iter.Seq[Winner] {
	return func(yield func(Winner) bool) {
		for _, w := range l.rankWinners(pairs) {
			if !yield(w) {
				return
			}
		}
	}
}

func (l *Ledger) rankWinners(pairs []CompanyPair) []Winner {
	indexes := make([]int, 0, len(l.votes))
	for i, v := range l.votes {
		if v.Total() > 0 {
			indexes = append(indexes, i)
		}
	}
	sort.Ints(indexes)

	winners := make([]Winner, 0, len(indexes))
	for _, i := range indexes {
		v := l.votes[i]

		var pair CompanyPair
		if i >= 0 && i < len(pairs) {
			pair = pairs[i]
		}

		w := Winner{
			PairIndex:         i,
			StrategicContrast: pair.StrategicContrast,
		}

		switch {
		case v.CompanyA > v.CompanyB:
			w.Name, w.Votes, w.WinType = pair.CompanyA, v.CompanyA, WinClear
		case v.CompanyB > v.CompanyA:
			w.Name, w.Votes, w.WinType = pair.CompanyB, v.CompanyB, WinClear
		default:
			w.Votes, w.WinType = v.CompanyA, WinTied
			if pair.CompanyA != "" || pair.CompanyB != "" {
				w.Name = pair.CompanyA + " / " + pair.CompanyB
			}
		}

		winners = append(winners, w)
	}

	slices.SortStableFunc(winners, func(a, b Winner) int {
		return b.Votes - a.Votes
	})

	return winners
}

// IsComplete reports whether every pair in [0, totalPairs) has votes.
func (l *Ledger) IsComplete(totalPairs int) bool {
	return l.votedPairs(totalPairs) == totalPairs
}

func (l *Ledger) votedPairs(totalPairs int) int {
	voted := 0
	for i := range totalPairs {
		if l.votes[i].Total() > 0 {
			voted++
		}
	}

	return voted
}

func (l *Ledger) CompletionStatus(totalPairs int) CompletionStatus {
	voted := l.votedPairs(totalPairs)

	percentage := 0
	if totalPairs > 0 {
		percentage = int(math.Round(float64(voted) / float64(totalPairs) * 100))
	}

	winners := 0
	for _, v := range l.votes {
		if v.Total() > 0 {
			winners++
		}
	}

	return CompletionStatus{
		VotedPairs:           voted,
		TotalPairs:           totalPairs,
		CompletionPercentage: percentage,
		IsComplete:           voted == totalPairs,
		TotalWinners:         winners,
	}
}

// GetState copies the ledger into plain data.
func (l *Ledger) GetState() map[int]PairVotes {
	out := make(map[int]PairVotes, len(l.votes))
	for i, v := range l.votes {
		out[i] = v
	}

	return out
}

// LoadState replaces the ledger, clamping negative counts found in older
// documents to zero.
func (l *Ledger) LoadState(state map[int]PairVotes) {
	l.votes = make(map[int]PairVotes, len(state))
	for i, v := range state {
		l.votes[i] = PairVotes{
			CompanyA: max(0, v.CompanyA),
			CompanyB: max(0, v.CompanyB),
		}
	}
}
