package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used by tests and as a volatile tier.
// All operations are serialized behind a single mutex, which trivially
// gives AtomicWrite its all-or-nothing semantics.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	hub     *hub
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		hub:     newHub(),
	}
}

// AtomicWrite validates every guard first, then applies every pair.
func (m *Memory) AtomicWrite(ctx context.Context, pairs []Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	for _, p := range pairs {
		cur, ok := m.entries[p.Path]
		switch {
		case p.Guard == GuardAny:
		case p.Guard == GuardAbsent:
			if ok {
				m.mu.Unlock()
				return ErrConflict
			}
		default:
			if !ok || cur.Version != p.Guard {
				m.mu.Unlock()
				return ErrConflict
			}
		}
	}

	written := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		version := int64(1)
		if cur, ok := m.entries[p.Path]; ok {
			version = cur.Version + 1
		}
		e := Entry{Path: p.Path, Value: append([]byte(nil), p.Value...), Version: version}
		m.entries[p.Path] = e
		written = append(written, e)
	}
	m.mu.Unlock()

	m.hub.notify(written)
	return nil
}

// Read returns the entry at path, or (nil, nil) when absent.
func (m *Memory) Read(ctx context.Context, path string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path]
	if !ok {
		return nil, nil
	}
	out := Entry{Path: e.Path, Value: append([]byte(nil), e.Value...), Version: e.Version}
	return &out, nil
}

// ReadPrefix returns all entries under prefix ordered by path.
func (m *Memory) ReadPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Entry
	for path, e := range m.entries {
		if strings.HasPrefix(path, prefix) {
			out = append(out, Entry{Path: e.Path, Value: append([]byte(nil), e.Value...), Version: e.Version})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Subscribe registers fn for entries written under prefix.
func (m *Memory) Subscribe(prefix string, fn func(Entry)) func() {
	return m.hub.subscribe(prefix, fn)
}
