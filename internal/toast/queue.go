package toast

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDuration = 5 * time.Second
	DefaultMax      = 5
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Toast is a short-lived notification. A negative Duration keeps it until it
// is dismissed; zero uses the queue default.
type Toast struct {
	ID        string        `json:"id"`
	Level     Level         `json:"level"`
	Title     string        `json:"title"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

type Option func(*Queue)

func WithDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d != 0 {
			q.duration = d
		}
	}
}

func WithMax(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.max = n
		}
	}
}

// WithOnChange registers a hook that receives the visible toasts after every
// change. It is called without the queue lock held.
func WithOnChange(fn func([]Toast)) Option {
	return func(q *Queue) {
		q.onChange = fn
	}
}

// Queue holds the visible toasts, newest last.
type Queue struct {
	mutex    sync.Mutex
	toasts   []Toast
	timers   map[string]*time.Timer
	duration time.Duration
	max      int
	onChange func([]Toast)
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		timers:   make(map[string]*time.Timer),
		duration: DefaultDuration,
		max:      DefaultMax,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push shows a toast and returns its id. When the queue is full the oldest
// toast is dropped.
func (q *Queue) Push(t Toast) string {
	q.mutex.Lock()

	t.ID = uuid.NewString()
	if t.Duration == 0 {
		t.Duration = q.duration
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	q.toasts = append(q.toasts, t)
	for len(q.toasts) > q.max {
		q.stop(q.toasts[0].ID)
		q.toasts = q.toasts[1:]
	}

	if t.Duration > 0 {
		id := t.ID
		q.timers[id] = time.AfterFunc(t.Duration, func() {
			q.Dismiss(id)
		})
	}

	visible := slices.Clone(q.toasts)
	q.mutex.Unlock()

	q.notify(visible)
	return t.ID
}

func (q *Queue) Success(title, message string) string {
	return q.Push(Toast{Level: LevelSuccess, Title: title, Message: message})
}

func (q *Queue) Error(title, message string) string {
	return q.Push(Toast{Level: LevelError, Title: title, Message: message})
}

func (q *Queue) Info(title, message string) string {
	return q.Push(Toast{Level: LevelInfo, Title: title, Message: message})
}

func (q *Queue) Warning(title, message string) string {
	return q.Push(Toast{Level: LevelWarning, Title: title, Message: message})
}

// Dismiss removes a toast and cancels its expiry. It reports whether the
// toast was still visible.
func (q *Queue) Dismiss(id string) bool {
	q.mutex.Lock()

	i := slices.IndexFunc(q.toasts, func(t Toast) bool {
		return t.ID == id
	})
	if i < 0 {
		q.mutex.Unlock()
		return false
	}

	q.stop(id)
	q.toasts = slices.Delete(q.toasts, i, i+1)
	visible := slices.Clone(q.toasts)
	q.mutex.Unlock()

	q.notify(visible)
	return true
}

// Clear dismisses every toast and cancels all pending timers.
func (q *Queue) Clear() {
	q.mutex.Lock()

	for id := range q.timers {
		q.stop(id)
	}
	q.toasts = nil
	q.mutex.Unlock()

	q.notify(nil)
}

// Init satisfies the service lifecycle; a queue needs no setup.
func (q *Queue) Init(context.Context) error {
	return nil
}

// Cleanup clears the queue so that no expiry timer outlives it.
func (q *Queue) Cleanup(context.Context) error {
	q.Clear()
	return nil
}

func (q *Queue) List() []Toast {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return slices.Clone(q.toasts)
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.toasts)
}

func (q *Queue) stop(id string) {
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) notify(visible []Toast) {
	if q.onChange != nil {
		q.onChange(visible)
	}
}
