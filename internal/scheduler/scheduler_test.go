package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPanicsOnInvalidInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC), s.nextTick(now))
	assert.Equal(t, time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC), s.nextTick(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), s.bucketStart(now))
}

func TestNextTickFreeRunning(t *testing.T) {
	s := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	assert.Equal(t, now.Add(time.Minute), s.nextTick(now))
	assert.Equal(t, now, s.bucketStart(now))
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond, Immediate: true}, zerolog.Nop())

	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}

func TestRunCancelledDuringStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Minute, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
