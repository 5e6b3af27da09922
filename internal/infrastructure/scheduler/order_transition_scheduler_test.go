package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingAdvancer struct {
	calls atomic.Int32
	err   error
}

func (a *countingAdvancer) AdvanceScheduled(ctx context.Context, now time.Time) (int, error) {
	a.calls.Add(1)
	return 1, a.err
}

func TestOrderTransitionSchedulerRunsAndStops(t *testing.T) {
	advancer := &countingAdvancer{}
	s := NewOrderTransitionScheduler(OrderTransitionSchedulerConfig{
		Enabled:       true,
		CheckInterval: 10 * time.Millisecond,
		RunTimeout:    time.Second,
	}, advancer, zap.NewNop())

	s.Start()
	assert.Eventually(t, func() bool {
		return advancer.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	after := advancer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, advancer.calls.Load())
}

func TestOrderTransitionSchedulerDisabled(t *testing.T) {
	advancer := &countingAdvancer{}
	s := NewOrderTransitionScheduler(OrderTransitionSchedulerConfig{
		Enabled:       false,
		CheckInterval: time.Millisecond,
	}, advancer, zap.NewNop())

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	assert.Zero(t, advancer.calls.Load())
}

func TestOrderTransitionSchedulerStopIsIdempotent(t *testing.T) {
	s := NewOrderTransitionScheduler(DefaultOrderTransitionSchedulerConfig(), &countingAdvancer{}, zap.NewNop())
	s.Start()
	s.Stop()
	s.Stop()
}
