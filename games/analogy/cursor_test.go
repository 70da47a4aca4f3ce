/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorBounds(t *testing.T) {
	var moves []int
	c := NewCursor(3, func(i int) { moves = append(moves, i) })

	assert.Equal(t, "1 / 3", c.Counter())
	assert.False(t, c.CanPrevious())
	assert.False(t, c.Previous())

	assert.True(t, c.Next())
	assert.True(t, c.Next())
	assert.False(t, c.Next())
	assert.Equal(t, 2, c.Index())
	assert.Equal(t, "3 / 3", c.Counter())

	assert.True(t, c.Previous())
	assert.Equal(t, []int{1, 2, 1}, moves)
}

func TestCursorGoTo(t *testing.T) {
	moved := 0
	c := NewCursor(4, func(int) { moved++ })

	assert.False(t, c.GoTo(-1))
	assert.False(t, c.GoTo(4))
	assert.False(t, c.GoTo(0), "same index is not a move")
	assert.Zero(t, moved)

	assert.True(t, c.GoTo(3))
	assert.Equal(t, 3, c.Index())
	assert.Equal(t, 1, moved)
}

func TestCursorEmpty(t *testing.T) {
	c := NewCursor(0, nil)

	assert.Equal(t, "0 / 0", c.Counter())
	assert.False(t, c.Next())
	assert.False(t, c.Previous())
	assert.False(t, c.GoTo(0))
}

func TestCursorLoadStateClamps(t *testing.T) {
	moved := false
	c := NewCursor(3, func(int) { moved = true })

	c.LoadState(10)
	assert.Equal(t, 2, c.Index())

	c.LoadState(-4)
	assert.Equal(t, 0, c.Index())

	c.LoadState(1)
	assert.Equal(t, 1, c.Index())

	assert.False(t, moved)
}
