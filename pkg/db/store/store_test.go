package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newBackends(t *testing.T) map[string]Storage {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "views.db"),
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "views"))
	require.NoError(t, err)

	backends := map[string]Storage{
		"sqlite": sqliteStore,
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}

	ctx := context.Background()
	for name, backend := range backends {
		require.NoError(t, backend.Connect(ctx), name)
		require.NoError(t, backend.Migrate(ctx), name)
		require.NoError(t, backend.Health(ctx), name)
		t.Cleanup(func() { backend.Close() })
	}
	return backends
}

func TestStorage_ItemLifecycle(t *testing.T) {
	for name, backend := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := backend.GetItem(ctx, "saved_views_tickets")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, backend.SetItem(ctx, "saved_views_tickets", `{"views":[]}`))
			value, err := backend.GetItem(ctx, "saved_views_tickets")
			require.NoError(t, err)
			assert.Equal(t, `{"views":[]}`, value)

			require.NoError(t, backend.SetItem(ctx, "saved_views_tickets", `{"views":[1]}`))
			value, err = backend.GetItem(ctx, "saved_views_tickets")
			require.NoError(t, err)
			assert.Equal(t, `{"views":[1]}`, value)

			require.NoError(t, backend.RemoveItem(ctx, "saved_views_tickets"))
			_, err = backend.GetItem(ctx, "saved_views_tickets")
			assert.ErrorIs(t, err, ErrNotFound)

			// removing twice is not an error, and a removed key can be written again
			require.NoError(t, backend.RemoveItem(ctx, "saved_views_tickets"))
			require.NoError(t, backend.SetItem(ctx, "saved_views_tickets", "revived"))
			value, err = backend.GetItem(ctx, "saved_views_tickets")
			require.NoError(t, err)
			assert.Equal(t, "revived", value)
		})
	}
}

func TestStorage_KeysByPrefix(t *testing.T) {
	for name, backend := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, backend.SetItem(ctx, "saved_views_visitors", "{}"))
			require.NoError(t, backend.SetItem(ctx, "saved_views_billing/invoices", "{}"))
			require.NoError(t, backend.SetItem(ctx, "savedXviews_other", "{}"))
			require.NoError(t, backend.SetItem(ctx, "data_filters_helpdesk", "{}"))

			keys, err := backend.Keys(ctx, "saved_views_")
			require.NoError(t, err)
			assert.Equal(t, []string{"saved_views_billing/invoices", "saved_views_visitors"}, keys)
		})
	}
}

func TestStorage_Watch(t *testing.T) {
	for name, backend := range newBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			events, err := backend.Watch(ctx)
			require.NoError(t, err)

			require.NoError(t, backend.SetItem(ctx, "saved_views_shifts", "one"))
			event := nextEvent(t, events, "saved_views_shifts")
			assert.False(t, event.Removed)
			assert.Equal(t, "one", event.Value)

			require.NoError(t, backend.RemoveItem(ctx, "saved_views_shifts"))
			event = nextEvent(t, events, "saved_views_shifts")
			assert.True(t, event.Removed)

			cancel()
			for range events {
			}
		})
	}
}

func TestMemoryStore_WatchDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	// nobody reads yet; writers must not block
	for i := 0; i < 100; i++ {
		require.NoError(t, s.SetItem(ctx, "k", "v"))
	}

	cancel()
	for range events {
	}

	assert.Eventually(t, func() bool {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		return len(s.watchers) == 0
	}, time.Second, 10*time.Millisecond)
}

func nextEvent(t *testing.T, events <-chan Event, key string) Event {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			require.True(t, ok, "watch channel closed")
			if event.Key == key {
				return event
			}
		case <-timeout:
			t.Fatalf("no event for %s", key)
			return Event{}
		}
	}
}
