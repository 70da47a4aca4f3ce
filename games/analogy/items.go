/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnknownItemKind = errors.New("unknown item kind")
	ErrItemIndex       = errors.New("item index out of range")
)

// ItemKind names one of the editable phase-three lists.
type ItemKind string

const (
	ItemPositiveAnalogy ItemKind = "positiveAnalogy"
	ItemNegativeAnalogy ItemKind = "negativeAnalogy"
	ItemCausalRelation  ItemKind = "causalRelation"
	ItemHypothesis      ItemKind = "hypothesis"
	ItemActionItem      ItemKind = "actionItem"
)

func newHypothesis() Hypothesis {
	return Hypothesis{Priority: "medium", Confidence: "medium"}
}

func newActionItem() ActionItem {
	return ActionItem{Status: "pending"}
}

func newCausalRelation() CausalRelation {
	return CausalRelation{Strength: "medium"}
}

// AddItem appends a blank entry to the named list.
func (c *Controller) AddItem(kind ItemKind) error {
	var err error

	c.update(func() bool {
		p3 := &c.session.Phase3

		switch kind {
		case ItemPositiveAnalogy:
			p3.PositiveAnalogies = append(p3.PositiveAnalogies, Analogy{})
		case ItemNegativeAnalogy:
			p3.NegativeAnalogies = append(p3.NegativeAnalogies, Analogy{})
		case ItemCausalRelation:
			p3.CausalRelations = append(p3.CausalRelations, newCausalRelation())
		case ItemHypothesis:
			p3.Hypotheses = append(p3.Hypotheses, newHypothesis())
		case ItemActionItem:
			p3.ActionItems = append(p3.ActionItems, newActionItem())
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownItemKind, kind)

			return false
		}

		return true
	})

	return err
}

// RemoveItem deletes the entry at index from the named list.
func (c *Controller) RemoveItem(kind ItemKind, index int) error {
	var err error

	c.update(func() bool {
		p3 := &c.session.Phase3

		switch kind {
		case ItemPositiveAnalogy:
			p3.PositiveAnalogies, err = removeAt(p3.PositiveAnalogies, index)
		case ItemNegativeAnalogy:
			p3.NegativeAnalogies, err = removeAt(p3.NegativeAnalogies, index)
		case ItemCausalRelation:
			p3.CausalRelations, err = removeAt(p3.CausalRelations, index)
		case ItemHypothesis:
			p3.Hypotheses, err = removeAt(p3.Hypotheses, index)
		case ItemActionItem:
			p3.ActionItems, err = removeAt(p3.ActionItems, index)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownItemKind, kind)
		}

		return err == nil
	})

	return err
}

// UpdateItem overlays fields, keyed by their JSON names, onto the entry at
// index. Unknown keys are ignored.
func (c *Controller) UpdateItem(kind ItemKind, index int, fields map[string]string) error {
	var err error

	c.update(func() bool {
		p3 := &c.session.Phase3

		switch kind {
		case ItemPositiveAnalogy:
			err = patchAt(p3.PositiveAnalogies, index, fields)
		case ItemNegativeAnalogy:
			err = patchAt(p3.NegativeAnalogies, index, fields)
		case ItemCausalRelation:
			err = patchAt(p3.CausalRelations, index, fields)
		case ItemHypothesis:
			err = patchAt(p3.Hypotheses, index, fields)
		case ItemActionItem:
			err = patchAt(p3.ActionItems, index, fields)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownItemKind, kind)
		}

		return err == nil
	})

	return err
}

func removeAt[T any](items []T, index int) ([]T, error) {
	if index < 0 || index >= len(items) {
		return items, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}

	return slices.Delete(items, index, index+1), nil
}

func patchAt[T any](items []T, index int, fields map[string]string) error {
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, index)
	}

	doc, err := toDocument(items[index])
	if err != nil {
		return err
	}

	for k, v := range fields {
		if _, ok := doc[k]; ok {
			doc[k] = v
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	items[index] = out

	return nil
}
