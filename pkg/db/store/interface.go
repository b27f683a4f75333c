package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: item not found")

// Event describes a change to a single key, as observed by a watcher.
type Event struct {
	Key     string
	Value   string
	Removed bool
}

// Storage is a string key/value store with the semantics of browser local
// storage, plus lifecycle hooks and change notification.
type Storage interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Item operations
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Event, error)
}
