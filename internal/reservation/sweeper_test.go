package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperStartStop(t *testing.T) {
	env := newTestEnv(t)
	logger := env.engine.logger

	sweeper := NewSweeper(env.engine, 10*time.Millisecond, logger)
	assert.False(t, sweeper.IsRunning())

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, sweeper.IsRunning, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.False(t, sweeper.IsRunning())
}

func TestSweeperHonorsContext(t *testing.T) {
	env := newTestEnv(t)

	sweeper := NewSweeper(env.engine, 10*time.Millisecond, env.engine.logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	require.Eventually(t, sweeper.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestSweeperRunNowReclaims(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Claim(ctx, "F1-A-01", "u1", "Alice", time.Hour)
	require.NoError(t, err)

	env.advance(GracePeriod + time.Second)

	sweeper := NewSweeper(env.engine, time.Minute, env.engine.logger)
	sweeper.RunNow(ctx)

	seat, err := env.registry.Get(ctx, "F1-A-01")
	require.NoError(t, err)
	assert.False(t, seat.HasClaim())
}
