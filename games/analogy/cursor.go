/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import "fmt"

// Cursor tracks the current position in the session's pair list. onMove
// runs after every actual move so the current tally can be reloaded.
type Cursor struct {
	index  int
	length int
	onMove func(index int)
}

func NewCursor(length int, onMove func(index int)) *Cursor {
	return &Cursor{
		length: max(0, length),
		onMove: onMove,
	}
}

func (c *Cursor) Index() int {
	return c.index
}

func (c *Cursor) Len() int {
	return c.length
}

func (c *Cursor) CanNext() bool {
	return c.index < c.length-1
}

func (c *Cursor) CanPrevious() bool {
	return c.index > 0
}

// Next advances by one unless already on the last pair.
func (c *Cursor) Next() bool {
	if !c.CanNext() {
		return false
	}

	c.move(c.index + 1)

	return true
}

// Previous steps back by one unless already on the first pair.
func (c *Cursor) Previous() bool {
	if !c.CanPrevious() {
		return false
	}

	c.move(c.index - 1)

	return true
}

// GoTo ignores indexes outside [0, length).
func (c *Cursor) GoTo(index int) bool {
	if index < 0 || index >= c.length || index == c.index {
		return false
	}

	c.move(index)

	return true
}

func (c *Cursor) Counter() string {
	if c.length == 0 {
		return "0 / 0"
	}

	return fmt.Sprintf("%d / %d", c.index+1, c.length)
}

// LoadState restores a saved index without firing onMove, clamped into
// range so an older document with more pairs cannot strand the cursor.
func (c *Cursor) LoadState(index int) {
	switch {
	case c.length == 0, index < 0:
		c.index = 0
	case index >= c.length:
		c.index = c.length - 1
	default:
		c.index = index
	}
}

func (c *Cursor) move(index int) {
	c.index = index

	if c.onMove != nil {
		c.onMove(index)
	}
}
