/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"errors"
	"sort"
)

var ErrUnknownTemplate = errors.New("unknown template")

type ArchetypeTemplate struct {
	Patterns  string `json:"patterns"`
	Archetype string `json:"archetype"`
}

type HypothesisTemplate struct {
	Premise    string `json:"premise"`
	Conclusion string `json:"conclusion"`
}

// Statement renders the IF/THEN form shown to the group.
func (h HypothesisTemplate) Statement() string {
	return "IF " + h.Premise + " THEN " + h.Conclusion
}

var ArchetypeTemplates = map[string]ArchetypeTemplate{
	"disruptor": {
		Patterns:  "digital transformation, customer experience, efficiency gains",
		Archetype: "Companies that leverage technology to fundamentally transform traditional industries and create superior customer experiences.",
	},
	"premium": {
		Patterns:  "brand excellence, quality focus, premium positioning",
		Archetype: "Organizations that establish market leadership through superior quality, brand prestige, and premium customer experiences.",
	},
	"platform": {
		Patterns:  "network effects, ecosystem building, scalability",
		Archetype: "Companies that create value by connecting multiple parties and enabling interactions within their ecosystem.",
	},
	"integrated": {
		Patterns:  "end-to-end solutions, vertical integration, seamless experience",
		Archetype: "Organizations that control the entire value chain to deliver seamless, integrated solutions to customers.",
	},
	"customer": {
		Patterns:  "customer obsession, personalization, service excellence",
		Archetype: "Companies that build competitive advantage through deep customer understanding and exceptional service delivery.",
	},
}

var HypothesisTemplates = map[string]HypothesisTemplate{
	"platform": {
		Premise:    "We build a platform that connects multiple stakeholders in our ecosystem",
		Conclusion: "We will achieve network effects and sustainable competitive advantage",
	},
	"premium": {
		Premise:    "We position our offering as a premium solution with superior quality",
		Conclusion: "We will command higher margins and build stronger customer loyalty",
	},
	"ecosystem": {
		Premise:    "We create an integrated ecosystem of complementary services",
		Conclusion: "We will increase customer lifetime value and reduce churn",
	},
	"innovation": {
		Premise:    "We invest heavily in R&D and innovation capabilities",
		Conclusion: "We will maintain technological leadership and market differentiation",
	},
	"customer": {
		Premise:    "We implement customer-centric design and personalization",
		Conclusion: "We will achieve higher engagement and customer satisfaction scores",
	},
}

// TemplateNames lists the keys of a template map in a stable order.
func TemplateNames[T any](templates map[string]T) []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
