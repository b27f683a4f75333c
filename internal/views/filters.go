package views

import (
	"maps"
	"slices"
)

// FilterState maps a field name to its constraint. A field that is absent
// has no constraint; empty values are never stored.
type FilterState map[string]Value

// Normalize returns a copy without null or empty-string values. The reserved
// view parameter is never a filter and is dropped as well.
func (f FilterState) Normalize() FilterState {
	out := make(FilterState, len(f))
	for key, value := range f {
		if value.IsEmpty() || key == ViewParam {
			continue
		}
		out[key] = value.Clone()
	}
	return out
}

// Merge overlays patch onto f (shallow, patch wins) and normalizes the result.
// Setting a key to Null or "" in patch removes it.
func (f FilterState) Merge(patch FilterState) FilterState {
	merged := make(FilterState, len(f)+len(patch))
	maps.Copy(merged, f)
	maps.Copy(merged, patch)
	return merged.Normalize()
}

// Clone deep-copies the state. The result is never nil.
func (f FilterState) Clone() FilterState {
	out := make(FilterState, len(f))
	for key, value := range f {
		out[key] = value.Clone()
	}
	return out
}

func (f FilterState) Equal(other FilterState) bool {
	return maps.EqualFunc(f, other, Value.Equal)
}

func (f FilterState) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}
