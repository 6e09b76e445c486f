// Package store defines the key-value tree boundary the reservation core
// runs against: point reads, prefix reads, change subscription and a
// single atomic multi-path write primitive with per-path version guards.
package store

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned by AtomicWrite when any guarded pair's
	// expected version no longer matches the stored one. Callers retry
	// with fresh state.
	ErrConflict = errors.New("store: version conflict")
)

// Guard sentinels for Pair.Guard. Any positive value means the path must
// currently be at exactly that version.
const (
	// GuardAny applies the write unconditionally.
	GuardAny int64 = -1
	// GuardAbsent requires that the path does not exist yet.
	GuardAbsent int64 = 0
)

// Pair is one (path, value) element of an atomic multi-path write.
type Pair struct {
	Path  string
	Value []byte
	Guard int64
}

// Entry is a stored value together with its version token. Versions
// start at 1 on creation and increment by one on every write.
type Entry struct {
	Path    string
	Value   []byte
	Version int64
}

// Store is the persistence boundary. Implementations must apply the
// pairs of an AtomicWrite indivisibly relative to other writes touching
// the same paths: either every pair commits or none does.
type Store interface {
	// AtomicWrite applies all pairs as one indivisible operation.
	// If any guard fails it returns ErrConflict and nothing is written.
	AtomicWrite(ctx context.Context, pairs []Pair) error

	// Read returns the entry at path, or (nil, nil) when absent.
	Read(ctx context.Context, path string) (*Entry, error)

	// ReadPrefix returns all entries whose path starts with prefix,
	// ordered by path.
	ReadPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// Subscribe registers fn to be called with every entry written under
	// prefix after a successful AtomicWrite. The returned function
	// cancels the subscription. Notification is in-process best effort;
	// consumers needing durable history must read the tree.
	Subscribe(prefix string, fn func(Entry)) (cancel func())
}
