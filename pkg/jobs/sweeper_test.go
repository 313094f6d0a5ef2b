package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeperRunsOnStartAndOnTick(t *testing.T) {
	var passes atomic.Int32
	s := NewSweeper("test", func(ctx context.Context) error {
		passes.Add(1)
		return nil
	}, SweeperConfig{Interval: 10 * time.Millisecond, RunOnStart: true})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return passes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSweeperStopBeforeStartIsNoop(t *testing.T) {
	s := NewSweeper("idle", func(ctx context.Context) error { return nil }, SweeperConfig{})
	s.Stop()
}

func TestSweeperStopCancelsLoop(t *testing.T) {
	var passes atomic.Int32
	s := NewSweeper("test", func(ctx context.Context) error {
		passes.Add(1)
		return nil
	}, SweeperConfig{Interval: time.Hour})

	s.Start(context.Background())
	s.Stop()
	require.Equal(t, int32(0), passes.Load())
}
