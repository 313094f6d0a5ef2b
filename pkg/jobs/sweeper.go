package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc performs one sweep pass.
type SweepFunc func(context.Context) error

// SweeperConfig configures periodic sweep behaviour.
type SweeperConfig struct {
	Interval    time.Duration
	RunOnStart  bool
	PassTimeout time.Duration
	Logger      *zap.Logger
}

// Sweeper runs a named background job on a fixed interval until stopped.
type Sweeper struct {
	name string
	fn   SweepFunc

	interval    time.Duration
	runOnStart  bool
	passTimeout time.Duration
	logger      *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSweeper builds a sweeper with the provided job function.
func NewSweeper(name string, fn SweepFunc, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Sweeper{
		name:        name,
		fn:          fn,
		interval:    cfg.Interval,
		runOnStart:  cfg.RunOnStart,
		passTimeout: cfg.PassTimeout,
		logger:      cfg.Logger,
	}
}

// Start begins the sweep loop. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("sweeper started", "job", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("sweeper stopped", "job", s.name)
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	if s.runOnStart {
		s.runOnce()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Sweeper) runOnce() {
	ctx := s.ctx
	cancel := func() {}
	if s.passTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
	}
	defer cancel()

	start := time.Now()
	if err := s.fn(ctx); err != nil {
		s.logger.Sugar().Warnw("sweep pass failed", "job", s.name, "error", err)
		return
	}
	s.logger.Sugar().Debugw("sweep pass complete", "job", s.name, "elapsed", time.Since(start))
}
