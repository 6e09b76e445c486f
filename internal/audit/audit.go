// Package audit records administrator actions and exports booking
// history. Recording is fire-and-forget: a failed audit write is
// logged and swallowed, never failing the primary operation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"seatflow/internal/store"
)

const entryPrefix = "audit/"

// Entry is one recorded action.
type Entry struct {
	ID       string            `json:"id"`
	Action   string            `json:"action"`
	TargetID string            `json:"target_id"`
	ActorID  string            `json:"actor_id"`
	Reason   string            `json:"reason,omitempty"`
	At       time.Time         `json:"at"`
	Details  map[string]string `json:"details,omitempty"`
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// StoreRecorder appends entries under the audit/ subtree.
type StoreRecorder struct {
	store  store.Store
	logger *zerolog.Logger
}

// NewStoreRecorder constructs a StoreRecorder.
func NewStoreRecorder(s store.Store, logger *zerolog.Logger) *StoreRecorder {
	return &StoreRecorder{store: s, logger: logger}
}

// Record persists the entry asynchronously. The write is detached from
// the caller's context so a finished request cannot cancel it.
func (r *StoreRecorder) Record(_ context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		value, err := json.Marshal(e)
		if err != nil {
			r.logger.Error().Err(err).Str("action", e.Action).Msg("audit marshal failed")
			return
		}
		path := fmt.Sprintf("%s%d-%s", entryPrefix, e.At.UnixNano(), e.ID)
		err = r.store.AtomicWrite(ctx, []store.Pair{{Path: path, Value: value, Guard: store.GuardAbsent}})
		if err != nil {
			r.logger.Error().Err(err).Str("action", e.Action).Msg("audit write failed")
		}
	}()
}

// List returns all recorded entries in chronological order.
func (r *StoreRecorder) List(ctx context.Context) ([]Entry, error) {
	raw, err := r.store.ReadPrefix(ctx, entryPrefix)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		var entry Entry
		if err := json.Unmarshal(e.Value, &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry at %s: %w", e.Path, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Discard is a Recorder that drops every entry. Used in tests.
type Discard struct{}

func (Discard) Record(context.Context, Entry) {}
