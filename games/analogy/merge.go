/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analogy

import "maps"

// DeepMerge overlays source onto target and returns a new document.
// Objects merge key by key, recursively. Arrays and scalars from source
// replace the target value outright; arrays are never concatenated.
// Keys missing from source keep their target value, which is how fields
// added to the default session survive loading an older document.
func DeepMerge(target, source map[string]any) map[string]any {
	out := maps.Clone(target)
	if out == nil {
		out = make(map[string]any, len(source))
	}

	for key, sv := range source {
		switch v := sv.(type) {
		case []any:
			out[key] = append([]any(nil), v...)
		case map[string]any:
			if tv, ok := out[key].(map[string]any); ok {
				out[key] = DeepMerge(tv, v)
			} else {
				out[key] = v
			}
		default:
			out[key] = v
		}
	}

	return out
}
