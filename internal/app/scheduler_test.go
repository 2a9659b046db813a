package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingRepairer struct {
	calls atomic.Int32
	err   error
}

func (r *countingRepairer) Repair(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	repairer := &countingRepairer{}
	s := NewScheduler(repairer, 10*time.Millisecond, zap.NewNop())

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return repairer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	calls := repairer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, repairer.calls.Load())
}

func TestScheduler_KeepsRunningAfterErrors(t *testing.T) {
	repairer := &countingRepairer{err: errors.New("db down")}
	s := NewScheduler(repairer, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return repairer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
}

func TestScheduler_DisabledInterval(t *testing.T) {
	repairer := &countingRepairer{}
	s := NewScheduler(repairer, 0, zap.NewNop())

	s.Start(context.Background())
	s.Stop()
	assert.Zero(t, repairer.calls.Load())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	repairer := &countingRepairer{}
	s := NewScheduler(repairer, 10*time.Millisecond, zap.NewNop())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked although Start was never called")
	}

	// запуск после остановки ничего не делает
	s.Start(context.Background())
	s.Stop()
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, repairer.calls.Load())
}
