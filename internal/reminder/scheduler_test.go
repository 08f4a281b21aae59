package reminder

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTenants struct {
	calls atomic.Int32
	block chan struct{}
}

func (c *countingTenants) Tenants(ctx context.Context) ([]string, error) {
	c.calls.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

func newCountingScheduler(tenants *countingTenants, interval time.Duration) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := NewNotifier(tenants, nil, nil, nil, Options{}, logger)
	return NewScheduler(notifier, interval, 0, logger)
}

func TestScheduler_InitialSweep(t *testing.T) {
	tenants := &countingTenants{}
	s := newCountingScheduler(tenants, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return tenants.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_StopCancelsRunningSweep(t *testing.T) {
	tenants := &countingTenants{block: make(chan struct{})}
	s := newCountingScheduler(tenants, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return tenants.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	tenants := &countingTenants{block: make(chan struct{})}
	s := newCountingScheduler(tenants, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.run(ctx)
	assert.Eventually(t, func() bool { return tenants.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.run(ctx)
	assert.Equal(t, int32(1), tenants.calls.Load())
	close(tenants.block)
}

func TestScheduler_RejectsBadInterval(t *testing.T) {
	s := newCountingScheduler(&countingTenants{}, 0)
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestScheduler_StopAfterFailedSchedule(t *testing.T) {
	s := newCountingScheduler(&countingTenants{}, time.Hour)
	s.spec = "not a schedule"
	require.Error(t, s.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after Start failed")
	}
}
