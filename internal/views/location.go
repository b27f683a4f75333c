package views

import (
	"strings"
	"sync"
)

// Location is the address bar of a listing page.
type Location interface {
	// Query returns the current query string without the leading '?'.
	Query() string
	// ReplaceQuery rewrites the current entry in place, without adding history.
	ReplaceQuery(query string)
}

// Navigator is implemented by locations that can move through history on
// their own (back/forward). Each receive on the channel means "the query
// may have changed"; cancel releases the subscription.
type Navigator interface {
	Navigations() (<-chan struct{}, func())
}

// History is an in-memory Location with a back/forward stack.
type History struct {
	mutex   sync.Mutex
	entries []string
	index   int
	subs    map[int]chan struct{}
	nextSub int
}

func NewHistory(query string) *History {
	return &History{
		entries: []string{strings.TrimPrefix(query, "?")},
		subs:    make(map[int]chan struct{}),
	}
}

func (h *History) Query() string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.entries[h.index]
}

func (h *History) ReplaceQuery(query string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.entries[h.index] = strings.TrimPrefix(query, "?")
}

// Push adds a new entry and drops any forward history. Like pushState it
// does not notify navigators.
func (h *History) Push(query string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.entries = append(h.entries[:h.index+1], strings.TrimPrefix(query, "?"))
	h.index++
}

func (h *History) Back() bool {
	return h.move(-1)
}

func (h *History) Forward() bool {
	return h.move(1)
}

func (h *History) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.entries)
}

func (h *History) move(delta int) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		return false
	}
	h.index = next

	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default: // a pending notification already covers this move
		}
	}
	return true
}

func (h *History) Navigations() (<-chan struct{}, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan struct{}, 1)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mutex.Lock()
			delete(h.subs, id)
			h.mutex.Unlock()
			close(ch)
		})
	}
}
