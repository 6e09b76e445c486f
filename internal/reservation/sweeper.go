package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs SweepExpired on a recurring timer, independent of any
// client request. Because the sweep itself is idempotent, additional
// client-triggered invocations remain valid as a supplementary trigger.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *zerolog.Logger
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
}

// NewSweeper constructs a Sweeper over the engine.
func NewSweeper(engine *Engine, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop. It returns when the context is done or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunNow(ctx)
		}
	}
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// RunNow forces an immediate sweep.
func (s *Sweeper) RunNow(ctx context.Context) {
	start := time.Now()
	reclaimed, err := s.engine.SweepExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if len(reclaimed) > 0 {
		s.logger.Info().
			Strs("seats", reclaimed).
			Dur("duration", time.Since(start)).
			Msg("sweep reclaimed seats")
	}
}

// IsRunning returns whether the sweeper loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
