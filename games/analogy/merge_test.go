/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	target := map[string]any{
		"id": "default",
		"settings": map[string]any{
			"timerDuration": 10.0,
			"autoSave":      true,
			"newField":      "kept",
		},
		"keywords": []any{"a", "b", "c"},
	}
	source := map[string]any{
		"id": "saved",
		"settings": map[string]any{
			"timerDuration": 30.0,
		},
		"keywords": []any{"z"},
		"extra":    "x",
	}

	got := DeepMerge(target, source)

	assert.Equal(t, map[string]any{
		"id": "saved",
		"settings": map[string]any{
			"timerDuration": 30.0,
			"autoSave":      true,
			"newField":      "kept",
		},
		"keywords": []any{"z"},
		"extra":    "x",
	}, got)

	assert.Equal(t, "default", target["id"], "target must not be modified")
	assert.Equal(t, 10.0, target["settings"].(map[string]any)["timerDuration"])
}

func TestDeepMergeObjectReplacesScalar(t *testing.T) {
	got := DeepMerge(
		map[string]any{"a": "scalar"},
		map[string]any{"a": map[string]any{"b": 1.0}},
	)

	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1.0}}, got)
}

func TestDeepMergeNilTarget(t *testing.T) {
	got := DeepMerge(nil, map[string]any{"a": 1.0})
	assert.Equal(t, map[string]any{"a": 1.0}, got)
}
