package store

import (
	"strings"
	"sync"
)

// hub fans successful writes out to prefix subscribers. It is shared by
// the store implementations; notification is in-process only.
type hub struct {
	mu     sync.RWMutex
	subs   map[int64]subscription
	nextID int64
}

type subscription struct {
	prefix string
	fn     func(Entry)
}

func newHub() *hub {
	return &hub{subs: make(map[int64]subscription)}
}

func (h *hub) subscribe(prefix string, fn func(Entry)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{prefix: prefix, fn: fn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *hub) notify(written []Entry) {
	h.mu.RLock()
	subs := make([]subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, e := range written {
		for _, s := range subs {
			if strings.HasPrefix(e.Path, s.prefix) {
				s.fn(e)
			}
		}
	}
}
