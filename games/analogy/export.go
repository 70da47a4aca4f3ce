/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportJSON renders the full session document.
func ExportJSON(session *Session) ([]byte, error) {
	return json.MarshalIndent(session, "", "  ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}

	return s
}

// MarkdownReport renders the human-readable session summary.
func MarkdownReport(session *Session, winners []Winner, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Analogy Game Session Report\n\n")
	fmt.Fprintf(&b, "**Team:** %s  \n", orDefault(session.TeamName, "Unnamed Team"))
	fmt.Fprintf(&b, "**Facilitator:** %s  \n", orDefault(session.Facilitator, "Not specified"))
	fmt.Fprintf(&b, "**Date:** %s  \n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Session ID:** %s\n\n---\n\n", session.ID)

	b.WriteString("## Phase 1: Preference Round Results\n\n### Winning Companies\n")
	if len(winners) == 0 {
		b.WriteString("None\n")
	}
	for _, w := range winners {
		if w.WinType == WinTied {
			fmt.Fprintf(&b, "- %s (tied, %d votes each)\n", w.Name, w.Votes)
		} else {
			fmt.Fprintf(&b, "- %s (%d votes)\n", w.Name, w.Votes)
		}
	}

	b.WriteString("\n### Detailed Results\n")
	b.WriteString("| Round | Company A | Votes A | Company B | Votes B | Winner |\n")
	b.WriteString("|-------|-----------|---------|-----------|---------|--------|\n")
	for i, pair := range session.Phase1.Pairs {
		v := session.Phase1.PairVotes[i]

		winner := "-"
		switch {
		case v.Total() == 0:
		case v.CompanyA > v.CompanyB:
			winner = pair.CompanyA
		case v.CompanyB > v.CompanyA:
			winner = pair.CompanyB
		default:
			winner = "Tie"
		}

		fmt.Fprintf(&b, "| %d | %s | %d | %s | %d | **%s** |\n",
			i+1, pair.CompanyA, v.CompanyA, pair.CompanyB, v.CompanyB, winner)
	}

	b.WriteString("\n---\n\n## Phase 2: Archetype Analysis\n\n")
	fmt.Fprintf(&b, "### Identified Patterns\n%s\n\n", orDefault(session.Phase2.Patterns, "No patterns identified"))
	fmt.Fprintf(&b, "### Strategic Archetype\n%s\n\n", orDefault(session.Phase2.Archetype, "No archetype defined"))
	if len(session.Phase2.Keywords) > 0 {
		fmt.Fprintf(&b, "**Keywords:** %s\n\n", strings.Join(session.Phase2.Keywords, ", "))
	}

	p3 := session.Phase3
	b.WriteString("---\n\n## Phase 3: Strategic Translation\n\n")
	fmt.Fprintf(&b, "**Forerunner Company:** %s\n\n", orDefault(p3.Forerunner, "Not selected"))
	fmt.Fprintf(&b, "**Positive Analogies:** %d\n", len(p3.PositiveAnalogies))
	fmt.Fprintf(&b, "**Negative Analogies:** %d\n", len(p3.NegativeAnalogies))
	fmt.Fprintf(&b, "**Causal Relations:** %d\n", len(p3.CausalRelations))
	fmt.Fprintf(&b, "**Hypotheses Created:** %d\n", len(p3.Hypotheses))
	fmt.Fprintf(&b, "**Action Items Planned:** %d\n", len(p3.ActionItems))

	for i, h := range p3.Hypotheses {
		if i == 0 {
			b.WriteString("\n### Hypotheses\n")
		}
		fmt.Fprintf(&b, "%d. %s (priority: %s, confidence: %s)\n",
			i+1, orDefault(h.Statement, "IF "+h.Premise+" THEN "+h.Conclusion), h.Priority, h.Confidence)
	}

	for i, a := range p3.ActionItems {
		if i == 0 {
			b.WriteString("\n### Action Items\n")
		}
		fmt.Fprintf(&b, "- [%s] %s (owner: %s, due: %s)\n",
			orDefault(a.Status, "pending"), orDefault(a.Task, "Untitled"), orDefault(a.Owner, "unassigned"), orDefault(a.Deadline, "n/a"))
	}

	b.WriteString("\n---\n*Generated by Analogy Game Facilitator*\n")

	return b.String()
}
