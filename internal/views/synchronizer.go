package views

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mwantia/viewsync/pkg/db/store"
	"github.com/mwantia/viewsync/pkg/log"
)

const DefaultMaxViews = 50

// recentWrites bounds how many of our own writes are remembered to suppress
// their echo from the storage watcher.
const recentWrites = 8

// Storage is the subset of store.Storage the synchronizer needs.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
}

// Watcher is implemented by storages that report changes made elsewhere.
type Watcher interface {
	Watch(ctx context.Context) (<-chan store.Event, error)
}

type ChangeSource int

const (
	SourceLocal ChangeSource = iota
	SourceNavigation
	SourceStorage
)

func (s ChangeSource) String() string {
	switch s {
	case SourceNavigation:
		return "navigation"
	case SourceStorage:
		return "storage"
	default:
		return "local"
	}
}

// Snapshot is a copy of the synchronizer state at one point in time.
type Snapshot struct {
	TableID      string
	Filters      FilterState
	ActiveViewID string
	Views        []SavedView
	Query        string
}

type ChangeFunc func(source ChangeSource, snapshot Snapshot)

type Option func(*Synchronizer)

func WithLogger(logger log.LoggerService) Option {
	return func(s *Synchronizer) {
		s.log = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

func WithIDGenerator(newID func(time.Time) string) Option {
	return func(s *Synchronizer) {
		s.newID = newID
	}
}

func WithMaxViews(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxViews = n
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(s *Synchronizer) {
		s.prefix = prefix
	}
}

func WithSchema(schema Schema) Option {
	return func(s *Synchronizer) {
		s.schema = schema
	}
}

// WithOnChange registers a callback invoked after every state change. It
// runs outside the synchronizer lock and may call back into it.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Synchronizer) {
		s.onChange = fn
	}
}

// Synchronizer keeps the filter state of one table consistent across memory,
// the Location and Storage.
//
// All mutations are serialized: caller operations and the event loop that
// consumes navigation and storage events take the same lock, so the state is
// only ever touched by one party at a time.
type Synchronizer struct {
	mutex sync.Mutex
	wait  sync.WaitGroup

	tableID  string
	prefix   string
	storage  Storage
	location Location
	log      log.LoggerService
	now      func() time.Time
	newID    func(time.Time) string
	maxViews int
	schema   Schema
	onChange ChangeFunc

	filters    FilterState
	collection Collection
	written    []string
	cancel     context.CancelFunc
	mounted    bool
}

func New(tableID string, storage Storage, location Location, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		tableID:    tableID,
		prefix:     DefaultKeyPrefix,
		storage:    storage,
		location:   location,
		log:        log.NewDiscardLogger(),
		now:        time.Now,
		newID:      NewViewID,
		maxViews:   DefaultMaxViews,
		filters:    FilterState{},
		collection: emptyCollection(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) TableID() string {
	return s.tableID
}

func (s *Synchronizer) Key() string {
	return StorageKey(s.prefix, s.tableID)
}

func (s *Synchronizer) Schema() Schema {
	return s.schema
}

// Mount loads the stored collection, derives the initial filters and starts
// listening for navigation and storage events until Unmount or ctx ends.
//
// Filter precedence on mount: the location's query, then the filters of the
// restored active view, then nothing.
func (s *Synchronizer) Mount(ctx context.Context) error {
	s.mutex.Lock()
	if s.mounted {
		s.mutex.Unlock()
		return ErrAlreadyMounted
	}

	s.load(ctx)

	filters, viewID, err := s.schema.ParseQuery(s.location.Query())
	if err != nil {
		s.log.Warn("Ignoring malformed query parameters: %v", err)
	}
	if viewID != "" {
		if s.collection.index(viewID) >= 0 {
			s.collection.ActiveViewID = &viewID
		} else {
			s.log.Debug("Query references unknown view '%s'", viewID)
		}
	}

	switch {
	case len(filters) > 0:
		s.filters = filters
	case s.activeIndex() >= 0:
		s.filters = s.collection.Views[s.activeIndex()].Filters.Clone()
	default:
		s.filters = FilterState{}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mounted = true

	var storageEvents <-chan store.Event
	if watcher, ok := s.storage.(Watcher); ok {
		storageEvents, err = watcher.Watch(loopCtx)
		if err != nil {
			s.log.Warn("Unable to watch storage, changes from other sessions will not be seen: %v", err)
			storageEvents = nil
		}
	}

	var navigations <-chan struct{}
	stopNavigations := func() {}
	if navigator, ok := s.location.(Navigator); ok {
		navigations, stopNavigations = navigator.Navigations()
	}

	s.wait.Add(1)
	go s.run(loopCtx, storageEvents, navigations, stopNavigations)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.log.Debug("Mounted with %d views and %d active filters", len(snapshot.Views), len(snapshot.Filters))
	s.notify(SourceLocal, snapshot)
	return nil
}

// Unmount stops the event loop and waits for it to exit.
func (s *Synchronizer) Unmount() {
	s.mutex.Lock()
	if !s.mounted {
		s.mutex.Unlock()
		return
	}
	s.mounted = false
	s.cancel()
	s.mutex.Unlock()

	s.wait.Wait()
}

// Init mounts the synchronizer when it is started as a service.
func (s *Synchronizer) Init(ctx context.Context) error {
	return s.Mount(ctx)
}

func (s *Synchronizer) Cleanup(context.Context) error {
	s.Unmount()
	return nil
}

func (s *Synchronizer) run(ctx context.Context, storageEvents <-chan store.Event, navigations <-chan struct{}, stopNavigations func()) {
	defer s.wait.Done()
	defer stopNavigations()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-storageEvents:
			if !ok {
				storageEvents = nil
				continue
			}
			s.handleStorage(event)

		case _, ok := <-navigations:
			if !ok {
				navigations = nil
				continue
			}
			s.handleNavigation()
		}
	}
}

// handleStorage reloads the collection when another session changed it.
// Last writer wins; the live filters are left alone.
func (s *Synchronizer) handleStorage(event store.Event) {
	if event.Key != s.Key() {
		return
	}

	s.mutex.Lock()
	if !event.Removed && slices.Contains(s.written, event.Value) {
		s.mutex.Unlock()
		return
	}

	if event.Removed {
		s.collection = emptyCollection()
	} else {
		collection, err := ParseCollection(event.Value)
		if err != nil {
			s.log.Warn("Discarding unreadable collection from storage: %v", err)
		}
		s.collection = collection
		s.remember(event.Value)
	}

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.log.Debug("Reloaded collection after external change (%d views)", len(snapshot.Views))
	s.notify(SourceStorage, snapshot)
}

// handleNavigation re-reads the location after back/forward navigation.
func (s *Synchronizer) handleNavigation() {
	s.mutex.Lock()

	filters, viewID, err := s.schema.ParseQuery(s.location.Query())
	if err != nil {
		s.log.Warn("Ignoring malformed query parameters: %v", err)
	}
	s.filters = filters
	if viewID != "" && s.collection.index(viewID) >= 0 {
		s.collection.ActiveViewID = &viewID
	} else {
		s.collection.ActiveViewID = nil
	}

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceNavigation, snapshot)
}

// ApplyFilters merges patch into the live filters, reflects them in the
// location and, if a view is active, saves them into that view.
func (s *Synchronizer) ApplyFilters(ctx context.Context, patch FilterState) {
	s.mutex.Lock()

	s.filters = s.filters.Merge(patch)
	s.syncLocation()

	if i := s.activeIndex(); i >= 0 {
		view := &s.collection.Views[i]
		view.Filters = s.filters.Clone()
		view.UpdatedAt = s.now().UnixMilli()
		s.persist(ctx)
	}

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceLocal, snapshot)
}

// CreateView stores a new view. At capacity the least recently updated
// non-persisted view is evicted first; if every view is persisted a
// *CapacityError is returned and nothing changes.
func (s *Synchronizer) CreateView(ctx context.Context, input ViewInput) (SavedView, error) {
	s.mutex.Lock()

	if len(s.collection.Views) >= s.maxViews {
		victim := s.evictionCandidate()
		if victim < 0 {
			s.mutex.Unlock()
			return SavedView{}, &CapacityError{TableID: s.tableID, Cap: s.maxViews}
		}
		s.removeAt(victim)
	}

	now := s.now()
	view := SavedView{
		ID:          s.newID(now),
		Name:        input.Name,
		Description: input.Description,
		Filters:     input.Filters.Normalize(),
		Columns:     slices.Clone(input.Columns),
		IsDefault:   input.IsDefault,
		Persisted:   input.Persisted,
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
	if input.Sort != nil {
		sort := *input.Sort
		view.Sort = &sort
	}

	s.collection.Views = append(s.collection.Views, view)
	s.persist(ctx)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.log.Debug("Created view '%s' (%s)", view.Name, view.ID)
	s.notify(SourceLocal, snapshot)
	return view.Clone(), nil
}

// UpdateView patches the view with the given id. Unknown ids are ignored.
func (s *Synchronizer) UpdateView(ctx context.Context, id string, patch ViewPatch) {
	s.mutex.Lock()

	i := s.collection.index(id)
	if i < 0 {
		s.mutex.Unlock()
		return
	}

	view := &s.collection.Views[i]
	patch.apply(view)
	view.UpdatedAt = s.now().UnixMilli()
	s.persist(ctx)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceLocal, snapshot)
}

// DeleteView removes the view with the given id. Deleting the active view
// also clears the live filters. Unknown ids are ignored.
func (s *Synchronizer) DeleteView(ctx context.Context, id string) {
	s.mutex.Lock()

	i := s.collection.index(id)
	if i < 0 {
		s.mutex.Unlock()
		return
	}

	s.removeAt(i)
	s.persist(ctx)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceLocal, snapshot)
}

// ActivateView makes the view drive the live filters. Unknown ids are ignored.
func (s *Synchronizer) ActivateView(ctx context.Context, id string) {
	s.mutex.Lock()

	i := s.collection.index(id)
	if i < 0 {
		s.mutex.Unlock()
		return
	}

	s.collection.ActiveViewID = &id
	s.filters = s.collection.Views[i].Filters.Clone()
	s.syncLocation()
	s.persist(ctx)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceLocal, snapshot)
}

// ResetFilters clears the live filters and the active view.
func (s *Synchronizer) ResetFilters(ctx context.Context) {
	s.mutex.Lock()

	s.filters = FilterState{}
	s.collection.ActiveViewID = nil
	s.location.ReplaceQuery("")
	s.persist(ctx)

	snapshot := s.snapshot()
	s.mutex.Unlock()

	s.notify(SourceLocal, snapshot)
}

func (s *Synchronizer) Filters() FilterState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.filters.Clone()
}

func (s *Synchronizer) ActiveViewID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.collection.activeID()
}

func (s *Synchronizer) ActiveView() (SavedView, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	i := s.activeIndex()
	if i < 0 {
		return SavedView{}, false
	}
	return s.collection.Views[i].Clone(), true
}

func (s *Synchronizer) View(id string) (SavedView, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	i := s.collection.index(id)
	if i < 0 {
		return SavedView{}, false
	}
	return s.collection.Views[i].Clone(), true
}

func (s *Synchronizer) Views() []SavedView {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.collection.Clone().Views
}

// PersistedViews returns pinned views, oldest first.
func (s *Synchronizer) PersistedViews() []SavedView {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var pinned []SavedView
	for _, view := range s.collection.Views {
		if view.Persisted {
			pinned = append(pinned, view.Clone())
		}
	}
	slices.SortStableFunc(pinned, func(a, b SavedView) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return pinned
}

func (s *Synchronizer) Collection() Collection {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.collection.Clone()
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.snapshot()
}

// The helpers below expect the lock to be held.

func (s *Synchronizer) snapshot() Snapshot {
	collection := s.collection.Clone()
	return Snapshot{
		TableID:      s.tableID,
		Filters:      s.filters.Clone(),
		ActiveViewID: collection.activeID(),
		Views:        collection.Views,
		Query:        s.location.Query(),
	}
}

func (s *Synchronizer) activeIndex() int {
	if s.collection.ActiveViewID == nil {
		return -1
	}
	return s.collection.index(*s.collection.ActiveViewID)
}

// removeAt deletes a view and cascades to the active view if needed.
func (s *Synchronizer) removeAt(i int) {
	removed := s.collection.Views[i]
	s.collection.Views = slices.Delete(s.collection.Views, i, i+1)

	if s.collection.activeID() == removed.ID {
		s.collection.ActiveViewID = nil
		s.filters = FilterState{}
		s.location.ReplaceQuery("")
	}
}

// evictionCandidate picks the least recently updated non-persisted view.
func (s *Synchronizer) evictionCandidate() int {
	victim := -1
	for i, view := range s.collection.Views {
		if view.Persisted {
			continue
		}
		if victim < 0 || view.UpdatedAt < s.collection.Views[victim].UpdatedAt {
			victim = i
		}
	}
	return victim
}

func (s *Synchronizer) syncLocation() {
	query := EncodeQuery(s.filters, s.collection.activeID()).Encode()
	s.location.ReplaceQuery(query)
}

func (s *Synchronizer) load(ctx context.Context) {
	collection, raw, err := LoadCollection(ctx, s.storage, s.Key())
	if err != nil {
		s.log.Warn("Starting with an empty collection: %v", err)
	}
	s.collection = collection
	if raw != "" {
		s.remember(raw)
	}
}

// persist writes the collection back. Failures are logged, never returned.
func (s *Synchronizer) persist(ctx context.Context) {
	s.collection.LastUpdated = s.now().UnixMilli()

	raw, err := s.collection.Encode()
	if err != nil {
		s.log.Error("Failed to encode collection: %v", err)
		return
	}
	if err := s.storage.SetItem(ctx, s.Key(), raw); err != nil {
		s.log.Error("Failed to persist collection: %v", err)
		return
	}
	s.remember(raw)
}

func (s *Synchronizer) remember(raw string) {
	s.written = append(s.written, raw)
	if len(s.written) > recentWrites {
		s.written = s.written[len(s.written)-recentWrites:]
	}
}

func (s *Synchronizer) notify(source ChangeSource, snapshot Snapshot) {
	if s.onChange != nil {
		s.onChange(source, snapshot)
	}
}
