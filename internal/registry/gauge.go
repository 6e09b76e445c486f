package registry

import (
	"context"

	"seatflow/internal/metrics"
	"seatflow/internal/store"
)

// StartStatusGauge keeps the seats-by-status metric current. It
// recomputes the counts from a full list whenever a seat record
// changes, coalescing bursts of writes into one recount. Blocks until
// ctx is cancelled.
func (r *Registry) StartStatusGauge(ctx context.Context) {
	dirty := make(chan struct{}, 1)
	cancel := r.store.Subscribe(seatPrefix, func(store.Entry) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer cancel()

	r.publishCounts(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
			r.publishCounts(ctx)
		}
	}
}

func (r *Registry) publishCounts(ctx context.Context) {
	seats, err := r.List(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("seat gauge recount failed")
		return
	}
	counts := make(map[string]int, 4)
	for _, s := range seats {
		counts[string(s.Status)]++
	}
	metrics.SetSeatCounts(counts)
}
