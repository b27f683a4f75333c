package views

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/mwantia/viewsync/pkg/db/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollection_RepairsDanglingActiveView(t *testing.T) {
	raw := `{
		"views": [{"id": "v1", "name": "Open", "filters": {"status": "open", "assignee": "", "unit": null}, "persisted": false, "createdAt": 1, "updatedAt": 2}],
		"activeViewId": "v9",
		"lastUpdated": 3
	}`

	c, err := ParseCollection(raw)
	require.NoError(t, err)

	assert.Nil(t, c.ActiveViewID)
	require.Len(t, c.Views, 1)
	assert.Equal(t, []string{"status"}, c.Views[0].Filters.Keys())
	assert.Equal(t, int64(3), c.LastUpdated)
}

func TestCollection_EncodeShape(t *testing.T) {
	active := "v1"
	c := Collection{
		Views: []SavedView{{
			ID:        "v1",
			Name:      "Urgent",
			Filters:   FilterState{"priority": String("high")},
			Sort:      &Sort{Field: "createdAt", Order: SortDesc},
			CreatedAt: 10,
			UpdatedAt: 20,
		}},
		ActiveViewID: &active,
		LastUpdated:  30,
	}

	raw, err := c.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"views": [{
			"id": "v1",
			"name": "Urgent",
			"filters": {"priority": "high"},
			"sort": {"field": "createdAt", "order": "desc"},
			"persisted": false,
			"createdAt": 10,
			"updatedAt": 20
		}],
		"activeViewId": "v1",
		"lastUpdated": 30
	}`, raw)
}

func TestLoadCollection(t *testing.T) {
	ctx := context.Background()
	storage := store.NewMemoryStore()

	c, raw, err := LoadCollection(ctx, storage, "saved_views_tickets")
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.NotNil(t, c.Views)

	require.NoError(t, storage.SetItem(ctx, "saved_views_tickets", "[]"))
	c, _, err = LoadCollection(ctx, storage, "saved_views_tickets")
	assert.Error(t, err)
	assert.Empty(t, c.Views)
}

func TestNewViewID(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	id := NewViewID(now)

	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, NewViewID(now))
}

func TestHistory(t *testing.T) {
	h := NewHistory("?status=open")
	events, cancel := h.Navigations()
	defer cancel()

	h.ReplaceQuery("status=closed")
	h.Push("unit=4B")
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "unit=4B", h.Query())
	assert.Empty(t, events, "push must not notify")

	require.True(t, h.Back())
	assert.Equal(t, "status=closed", h.Query())
	assert.False(t, h.Back())

	select {
	case <-events:
	default:
		t.Fatal("expected a navigation notification")
	}

	h.Push("status=open")
	assert.Equal(t, 2, h.Len(), "push drops forward history")
	assert.False(t, h.Forward())
}
