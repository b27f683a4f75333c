package datafilters

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"

	"github.com/mwantia/viewsync/internal/views"
	"github.com/mwantia/viewsync/pkg/db/store"
	"github.com/mwantia/viewsync/pkg/log"
)

const (
	SearchParam = "search"
	SortParam   = "sort"
	OrderParam  = "order"
)

// State is everything a listing needs to build its request.
type State struct {
	Search  string            `json:"search"`
	Filters views.FilterState `json:"filters"`
	Sort    views.Sort        `json:"sort"`
}

func (s State) Clone() State {
	out := s
	out.Filters = s.Filters.Clone()
	return out
}

// Query renders the state as request parameters. Filter keys are used
// verbatim, so a filter named like a reserved parameter is overwritten.
func (s State) Query() url.Values {
	values := url.Values{}
	for key, value := range s.Filters {
		if value.IsEmpty() {
			continue
		}
		values.Set(key, views.EncodeValue(value))
	}
	if s.Search != "" {
		values.Set(SearchParam, s.Search)
	}
	if !s.Sort.IsZero() {
		values.Set(SortParam, s.Sort.Field)
		values.Set(OrderParam, string(s.Sort.Order))
	}
	return values
}

// ChangeFunc receives the recomputed query after every change, typically to
// trigger a refetch.
type ChangeFunc func(ctx context.Context, query url.Values)

type Option func(*Builder)

// WithStorage persists the whole state as JSON under key.
func WithStorage(storage views.Storage, key string) Option {
	return func(b *Builder) {
		b.storage = storage
		b.key = key
	}
}

func WithOnChange(fn ChangeFunc) Option {
	return func(b *Builder) {
		b.onChange = fn
	}
}

func WithInitial(state State) Option {
	return func(b *Builder) {
		b.initial = state.Clone()
		b.initial.Filters = b.initial.Filters.Normalize()
	}
}

func WithLogger(logger log.LoggerService) Option {
	return func(b *Builder) {
		b.log = logger
	}
}

// Builder holds search, filters and sort for a listing without any notion
// of named views.
type Builder struct {
	mutex    sync.Mutex
	state    State
	initial  State
	storage  views.Storage
	key      string
	onChange ChangeFunc
	log      log.LoggerService
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		initial: State{Filters: views.FilterState{}},
		log:     log.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.state = b.initial.Clone()
	return b
}

// Load restores the persisted state, if any. Unreadable data is logged and
// the current state kept.
func (b *Builder) Load(ctx context.Context) {
	if b.storage == nil {
		return
	}

	raw, err := b.storage.GetItem(ctx, b.key)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		b.log.Warn("Failed to read filter state '%s': %v", b.key, err)
		return
	}

	var loaded State
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		b.log.Warn("Discarding unreadable filter state '%s': %v", b.key, err)
		return
	}

	b.update(ctx, func(s *State) {
		*s = loaded
	})
}

func (b *Builder) SetSearch(ctx context.Context, search string) {
	b.update(ctx, func(s *State) {
		s.Search = search
	})
}

// SetFilter sets one field. An empty value removes it.
func (b *Builder) SetFilter(ctx context.Context, field string, value views.Value) {
	b.update(ctx, func(s *State) {
		s.Filters[field] = value
	})
}

// SetFilters merges patch into the filters.
func (b *Builder) SetFilters(ctx context.Context, patch views.FilterState) {
	b.update(ctx, func(s *State) {
		s.Filters = s.Filters.Merge(patch)
	})
}

func (b *Builder) RemoveFilter(ctx context.Context, field string) {
	b.update(ctx, func(s *State) {
		delete(s.Filters, field)
	})
}

func (b *Builder) ClearFilters(ctx context.Context) {
	b.update(ctx, func(s *State) {
		s.Filters = views.FilterState{}
	})
}

func (b *Builder) SetSort(ctx context.Context, field string, order views.SortOrder) {
	b.update(ctx, func(s *State) {
		s.Sort = views.Sort{Field: field, Order: order}
	})
}

// ToggleSort flips the order when already sorted by field, otherwise sorts
// ascending by field.
func (b *Builder) ToggleSort(ctx context.Context, field string) {
	b.update(ctx, func(s *State) {
		if s.Sort.Field == field {
			s.Sort.Order = s.Sort.Order.Flip()
			return
		}
		s.Sort = views.Sort{Field: field, Order: views.SortAsc}
	})
}

// Reset returns to the initial state.
func (b *Builder) Reset(ctx context.Context) {
	b.update(ctx, func(s *State) {
		*s = b.initial.Clone()
	})
}

func (b *Builder) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.state.Clone()
}

func (b *Builder) Query() url.Values {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.state.Query()
}

func (b *Builder) update(ctx context.Context, mutate func(*State)) {
	b.mutex.Lock()

	mutate(&b.state)
	b.state.Filters = b.state.Filters.Normalize()
	b.persist(ctx)
	query := b.state.Query()

	b.mutex.Unlock()

	if b.onChange != nil {
		b.onChange(ctx, query)
	}
}

func (b *Builder) persist(ctx context.Context) {
	if b.storage == nil {
		return
	}

	data, err := json.Marshal(b.state)
	if err != nil {
		b.log.Error("Failed to encode filter state: %v", err)
		return
	}
	if err := b.storage.SetItem(ctx, b.key, string(data)); err != nil {
		b.log.Error("Failed to persist filter state '%s': %v", b.key, err)
	}
}
