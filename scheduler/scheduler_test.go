package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasuganosora/mmocache/facade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newNop() *zap.Logger { return zap.NewNop() }

func TestAddTicker_Fires(t *testing.T) {
	s := New(context.Background(), newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, 10*time.Millisecond)
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(context.Background(), newNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
	assert.Equal(t, []string{"task"}, s.ListTickers())
}

func TestRemove_CancelsTaskContext(t *testing.T) {
	s := New(context.Background(), newNop())
	defer s.Stop()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	var once int32
	s.AddTicker("slow", 10*time.Millisecond, func(ctx context.Context) {
		if !atomic.CompareAndSwapInt32(&once, 0, 1) {
			return
		}
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started
	s.Remove("slow")
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	assert.Empty(t, s.ListTickers())
}

func TestRemove_NonExistent(t *testing.T) {
	s := New(context.Background(), newNop())
	defer s.Stop()
	s.Remove("nope")
}

func TestStop_WaitsAndIsIdempotent(t *testing.T) {
	s := New(context.Background(), newNop())

	var c int32
	s.AddTicker("a", 10*time.Millisecond, func(context.Context) { atomic.AddInt32(&c, 1) })
	time.Sleep(40 * time.Millisecond)
	s.Stop()
	snap := atomic.LoadInt32(&c)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&c))
	s.Stop()

	s.AddTicker("late", time.Millisecond, func(context.Context) {})
	assert.Empty(t, s.ListTickers())
}

func TestParentCancelStopsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, newNop())

	var c int32
	s.AddTicker("a", 10*time.Millisecond, func(context.Context) { atomic.AddInt32(&c, 1) })
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	snap := atomic.LoadInt32(&c)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&c))
	s.Stop()
}

func TestListTickers_Sorted(t *testing.T) {
	s := New(context.Background(), newNop())
	defer s.Stop()

	require.Empty(t, s.ListTickers())
	s.AddTicker("beta", time.Hour, func(context.Context) {})
	s.AddTicker("alpha", time.Hour, func(context.Context) {})
	assert.Equal(t, []string{"alpha", "beta"}, s.ListTickers())
}

func TestTicker_PanicRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := New(context.Background(), zap.New(core))
	defer s.Stop()

	var calls int32
	s.AddTicker("panic", 10*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&calls, 1)
		panic("oops")
	})
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, 5*time.Millisecond)
	assert.NotZero(t, logs.FilterMessage("scheduler task panicked").Len())
}

type fixedStats facade.Stats

func (f fixedStats) Stats() facade.Stats { return facade.Stats(f) }

type fixedSessions int

func (f fixedSessions) Count() int { return int(f) }

func TestReportTasks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ReportStats(fixedStats{Characters: 3, Gold: 1, Cash: 2}, logger)(context.Background())
	ReportSessions(fixedSessions(5), logger)(context.Background())

	entries := logs.All()
	require.Len(t, entries, 2)
	stats := entries[0].ContextMap()
	assert.Equal(t, int64(6), stats["total"])
	assert.Equal(t, int64(3), stats["characters"])
	assert.Equal(t, int64(3), stats["balances"])
	assert.Equal(t, int64(5), entries[1].ContextMap()["count"])
}
