package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mwantia/viewsync/pkg/db/store"
)

const DefaultKeyPrefix = "saved_views_"

// StorageKey returns the storage slot that holds a table's collection.
func StorageKey(prefix, tableID string) string {
	return prefix + tableID
}

// Collection is the persisted form of all views for one table.
type Collection struct {
	Views        []SavedView `json:"views"`
	ActiveViewID *string     `json:"activeViewId"`
	LastUpdated  int64       `json:"lastUpdated"`
}

func emptyCollection() Collection {
	return Collection{Views: []SavedView{}}
}

// ParseCollection decodes a stored collection and repairs what it can:
// empty filter values are stripped and a dangling active id is cleared.
func ParseCollection(raw string) (Collection, error) {
	var c Collection
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return emptyCollection(), fmt.Errorf("failed to decode collection: %w", err)
	}

	if c.Views == nil {
		c.Views = []SavedView{}
	}
	for i := range c.Views {
		c.Views[i].Filters = c.Views[i].Filters.Normalize()
	}
	if c.ActiveViewID != nil && c.index(*c.ActiveViewID) < 0 {
		c.ActiveViewID = nil
	}
	return c, nil
}

func (c Collection) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c Collection) Clone() Collection {
	out := c
	out.Views = make([]SavedView, len(c.Views))
	for i, view := range c.Views {
		out.Views[i] = view.Clone()
	}
	if c.ActiveViewID != nil {
		id := *c.ActiveViewID
		out.ActiveViewID = &id
	}
	return out
}

func (c Collection) index(id string) int {
	return slices.IndexFunc(c.Views, func(v SavedView) bool {
		return v.ID == id
	})
}

func (c Collection) activeID() string {
	if c.ActiveViewID == nil {
		return ""
	}
	return *c.ActiveViewID
}

// LoadCollection reads a table's collection. A missing key yields an empty
// collection; a corrupt value yields an empty collection and an error.
func LoadCollection(ctx context.Context, storage Storage, key string) (Collection, string, error) {
	raw, err := storage.GetItem(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return emptyCollection(), "", nil
	}
	if err != nil {
		return emptyCollection(), "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	c, err := ParseCollection(raw)
	return c, raw, err
}
