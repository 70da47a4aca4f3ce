/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	PhaseVoting      = 1
	PhaseArchetype   = 2
	PhaseTranslation = 3

	defaultTimerDuration    = 10
	defaultAutoSaveInterval = 5000
)

// Phase describes one workshop stage.
type Phase struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var Phases = []Phase{
	{ID: PhaseVoting, Title: "Strategic Preference Round", Description: "Physical positioning exercise with strategic company pairs"},
	{ID: PhaseArchetype, Title: "Archetype Analysis", Description: "Analyze patterns in preferences and define strategic archetype"},
	{ID: PhaseTranslation, Title: "Strategic Translation", Description: "Transform insights into actionable hypotheses and next steps"},
}

// Session is the persisted document for one facilitation run.
type Session struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	TeamName     string           `json:"teamName"`
	Facilitator  string           `json:"facilitator"`
	Participants *int             `json:"participants"`
	CurrentPhase int              `json:"currentPhase"`
	Phase1       VotingPhase      `json:"phase1"`
	Phase2       ArchetypePhase   `json:"phase2"`
	Phase3       TranslationPhase `json:"phase3"`
	Settings     Settings         `json:"settings"`
}

type VotingPhase struct {
	Pairs            []CompanyPair     `json:"pairs"`
	PairVotes        map[int]PairVotes `json:"pairVotes"`
	Votes            PairVotes         `json:"votes"`
	CurrentPairIndex int               `json:"currentPairIndex"`
	TimerLeft        int               `json:"timerLeft"`
	TimerState       TimerState        `json:"timerState"`
	TotalVotes       int               `json:"totalVotes"`
	PercentageA      int               `json:"percentageA"`
	PercentageB      int               `json:"percentageB"`
}

type ArchetypePhase struct {
	Patterns          string   `json:"patterns"`
	Archetype         string   `json:"archetype"`
	Keywords          []string `json:"keywords"`
	TemplateUsed      string   `json:"templateUsed,omitempty"`
	WinnersFromPhase1 []Winner `json:"winnersFromPhase1"`
}

type TranslationPhase struct {
	Forerunner        string           `json:"forerunner"`
	PositiveAnalogies []Analogy        `json:"positiveAnalogies"`
	NegativeAnalogies []Analogy        `json:"negativeAnalogies"`
	CausalRelations   []CausalRelation `json:"causalRelations"`
	Hypotheses        []Hypothesis     `json:"hypotheses"`
	ActionItems       []ActionItem     `json:"actionItems"`
}

type Analogy struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

type CausalRelation struct {
	Factor   string `json:"factor"`
	Outcome  string `json:"outcome"`
	Strength string `json:"strength"`
}

type Hypothesis struct {
	Premise    string `json:"premise"`
	Conclusion string `json:"conclusion"`
	Statement  string `json:"statement"`
	Priority   string `json:"priority"`
	Confidence string `json:"confidence"`
}

type ActionItem struct {
	Task            string `json:"task"`
	Owner           string `json:"owner"`
	Deadline        string `json:"deadline"`
	SuccessCriteria string `json:"successCriteria"`
	Status          string `json:"status"`
}

type Settings struct {
	TimerDuration    int  `json:"timerDuration"`
	AutoSave         bool `json:"autoSave"`
	AutoSaveInterval int  `json:"autoSaveInterval"`
}

// AutoSaveEvery converts the millisecond setting to a duration, falling
// back to the default for unset or negative values.
func (s Settings) AutoSaveEvery() time.Duration {
	if s.AutoSaveInterval <= 0 {
		return defaultAutoSaveInterval * time.Millisecond
	}

	return time.Duration(s.AutoSaveInterval) * time.Millisecond
}

// NewSession returns a session in its initial state, stamped at now.
func NewSession(now time.Time) *Session {
	now = now.UTC()

	return &Session{
		ID:           newSessionID(now),
		CreatedAt:    now,
		UpdatedAt:    now,
		CurrentPhase: PhaseVoting,
		Phase1: VotingPhase{
			Pairs:      []CompanyPair{},
			PairVotes:  map[int]PairVotes{},
			TimerLeft:  defaultTimerDuration,
			TimerState: StateReady,
		},
		Phase2: ArchetypePhase{
			Keywords:          []string{},
			WinnersFromPhase1: []Winner{},
		},
		Phase3: TranslationPhase{
			PositiveAnalogies: []Analogy{},
			NegativeAnalogies: []Analogy{},
			CausalRelations:   []CausalRelation{},
			Hypotheses:        []Hypothesis{},
			ActionItems:       []ActionItem{},
		},
		Settings: Settings{
			TimerDuration:    defaultTimerDuration,
			AutoSave:         true,
			AutoSaveInterval: defaultAutoSaveInterval,
		},
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newSessionID formats session_<epoch-ms>_<9 base36 chars>.
func newSessionID(now time.Time) string {
	suffix := make([]byte, 9)
	limit := big.NewInt(int64(len(base36)))

	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		suffix[i] = base36[n.Int64()]
	}

	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
