package datafilters

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	exprlang "github.com/expr-lang/expr"

	"github.com/mwantia/viewsync/internal/views"
)

// Record is the field view of one item, as seen by ApplyToData.
type Record map[string]any

// DataQuery describes client-side filtering over an in-memory slice.
type DataQuery struct {
	Search       string
	SearchFields []string
	Filters      views.FilterState
	Sort         views.Sort
	// Where is an optional boolean expression evaluated against each record.
	Where string
}

// QueryFromState builds a DataQuery that searches the given fields.
func QueryFromState(state State, searchFields ...string) DataQuery {
	return DataQuery{
		Search:       state.Search,
		SearchFields: searchFields,
		Filters:      state.Filters.Clone(),
		Sort:         state.Sort,
	}
}

type recordItem[T any] struct {
	item   T
	record Record
}

// ApplyToData returns the items matching q in the requested order. The input
// slice is left untouched.
//
// Search is a case-insensitive substring match over SearchFields. A filter
// matches when the field equals the filter value; list filters match when
// the field (or any of its elements) is a member of the list.
func ApplyToData[T any](items []T, q DataQuery, record func(T) Record) ([]T, error) {
	var where func(Record) (bool, error)
	if strings.TrimSpace(q.Where) != "" {
		program, err := exprlang.Compile(q.Where,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
			exprlang.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("invalid where expression: %w", err)
		}
		where = func(r Record) (bool, error) {
			out, err := exprlang.Run(program, map[string]any(r))
			if err != nil {
				return false, err
			}
			matched, _ := out.(bool)
			return matched, nil
		}
	}

	needle := strings.ToLower(strings.TrimSpace(q.Search))

	matched := make([]recordItem[T], 0, len(items))
	for _, item := range items {
		r := record(item)

		if needle != "" && !matchesSearch(r, q.SearchFields, needle) {
			continue
		}
		if !matchesFilters(r, q.Filters) {
			continue
		}
		if where != nil {
			ok, err := where(r)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate where expression: %w", err)
			}
			if !ok {
				continue
			}
		}

		matched = append(matched, recordItem[T]{item: item, record: r})
	}

	if !q.Sort.IsZero() {
		slices.SortStableFunc(matched, func(a, b recordItem[T]) int {
			return compareFields(a.record[q.Sort.Field], b.record[q.Sort.Field], q.Sort.Order)
		})
	}

	out := make([]T, len(matched))
	for i, m := range matched {
		out[i] = m.item
	}
	return out, nil
}

func matchesSearch(r Record, fields []string, needle string) bool {
	for _, field := range fields {
		value, ok := r[field]
		if !ok || value == nil {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(value)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters(r Record, filters views.FilterState) bool {
	for field, want := range filters {
		if want.IsEmpty() {
			continue
		}
		if !matchesFilter(r[field], want) {
			return false
		}
	}
	return true
}

func matchesFilter(actual any, want views.Value) bool {
	got := views.ValueOf(actual)

	if want.Kind() == views.KindStringArray {
		allowed := want.List()
		if got.Kind() == views.KindStringArray {
			for _, item := range got.List() {
				if slices.Contains(allowed, item) {
					return true
				}
			}
			return false
		}
		return slices.Contains(allowed, views.EncodeValue(got))
	}

	// query values decode loosely, so "42" must still match a string field
	return got.Equal(want) || views.EncodeValue(got) == views.EncodeValue(want)
}

// compareFields orders two record values in the given direction. Missing
// values sort last in either direction; values of different kinds compare by
// their encoded form.
func compareFields(a, b any, order views.SortOrder) int {
	va, vb := views.ValueOf(a), views.ValueOf(b)

	switch {
	case va.Kind() == views.KindNull && vb.Kind() == views.KindNull:
		return 0
	case va.Kind() == views.KindNull:
		return 1
	case vb.Kind() == views.KindNull:
		return -1
	}

	c := compareValues(va, vb)
	if order == views.SortDesc {
		return -c
	}
	return c
}

func compareValues(va, vb views.Value) int {
	if va.Kind() == vb.Kind() {
		switch va.Kind() {
		case views.KindNumber:
			return cmp.Compare(va.Float(), vb.Float())
		case views.KindString:
			return strings.Compare(strings.ToLower(va.Text()), strings.ToLower(vb.Text()))
		case views.KindBool:
			return compareBool(va.Boolean(), vb.Boolean())
		case views.KindDate:
			return va.Time().Compare(vb.Time())
		}
	}
	return strings.Compare(views.EncodeValue(va), views.EncodeValue(vb))
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
