package views

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Flip() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

type Sort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

func (s Sort) IsZero() bool {
	return s.Field == ""
}

// SavedView is a named snapshot of filter state for one table.
type SavedView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Filters     FilterState `json:"filters"`
	Sort        *Sort       `json:"sort,omitempty"`
	Columns     []string    `json:"columns,omitempty"`
	IsDefault   bool        `json:"isDefault,omitempty"`
	// Persisted views were pinned by the user and are never evicted.
	Persisted bool  `json:"persisted"`
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

func (v SavedView) Clone() SavedView {
	out := v
	out.Filters = v.Filters.Clone()
	out.Columns = slices.Clone(v.Columns)
	if v.Sort != nil {
		sort := *v.Sort
		out.Sort = &sort
	}
	return out
}

// ViewInput carries the caller-supplied fields of a new view.
type ViewInput struct {
	Name        string
	Description string
	Filters     FilterState
	Sort        *Sort
	Columns     []string
	IsDefault   bool
	Persisted   bool
}

// ViewPatch lists the fields UpdateView may change. Nil fields are left as
// they are; id and creation time cannot be patched.
type ViewPatch struct {
	Name        *string
	Description *string
	Filters     FilterState
	Sort        *Sort
	Columns     []string
	IsDefault   *bool
	Persisted   *bool
}

func (p ViewPatch) apply(view *SavedView) {
	if p.Name != nil {
		view.Name = *p.Name
	}
	if p.Description != nil {
		view.Description = *p.Description
	}
	if p.Filters != nil {
		view.Filters = p.Filters.Normalize()
	}
	if p.Sort != nil {
		sort := *p.Sort
		view.Sort = &sort
	}
	if p.Columns != nil {
		view.Columns = slices.Clone(p.Columns)
	}
	if p.IsDefault != nil {
		view.IsDefault = *p.IsDefault
	}
	if p.Persisted != nil {
		view.Persisted = *p.Persisted
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewViewID returns "<epoch-millis>-<9 random base36 chars>".
func NewViewID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
