package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, interval time.Duration, task Task) *Scheduler {
	t.Helper()
	s, err := New("ci.test", interval, task)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	_, err := New("ci", 0, func(context.Context) error { return nil })
	require.Error(t, err)
	_, err = New("ci", time.Second, nil)
	require.Error(t, err)
}

func TestStartRunsSynchronously(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, s.Running())
	assert.Eventually(t, func() bool {
		next, ok := s.NextRun()
		return ok && next.After(time.Now().Add(50*time.Minute))
	}, time.Second, 5*time.Millisecond)
}

func TestStartTwice(t *testing.T) {
	s := newScheduler(t, time.Hour, func(context.Context) error { return nil })
	require.NoError(t, s.Start(t.Context()))
	require.ErrorIs(t, s.Start(t.Context()), ErrAlreadyRunning)
}

func TestFailuresDoNotStopTicks(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("jenkins unreachable")
	})

	require.NoError(t, s.Start(t.Context()))
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestPanicsDoNotStopTicks(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		panic("boom")
	})

	require.NoError(t, s.Start(t.Context()))
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsTicks(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.Start(t.Context()))
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	_, ok := s.NextRun()
	assert.False(t, ok)

	stopped := calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), stopped+1, "at most the in-flight run may complete")

	require.NoError(t, s.Stop(), "stopping twice is harmless")
}

func TestRestartRunsImmediately(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, s.Restart(t.Context()))

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, s.Running())
	assert.Equal(t, 2, s.Runs())
}

func TestOverrunningCyclesDoNotOverlap(t *testing.T) {
	var active, maxActive, calls atomic.Int32
	s := newScheduler(t, 5*time.Millisecond, func(context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	require.NoError(t, s.Start(t.Context()))
	assert.Eventually(t, func() bool { return calls.Load() >= 4 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestTicksOutliveStartContext(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(t, 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopDuringFirstRunThenStartArmsOneJob(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	s := newScheduler(t, 20*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Start(t.Context()) }()
	<-entered

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(t.Context()))

	close(release)
	require.NoError(t, <-firstDone)

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	settled := calls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), settled+1, "at most the in-flight run may complete")
}
