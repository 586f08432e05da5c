// Package sweep runs the periodic expiry pass: overdue parent reviews are
// auto-approved and unanswered screen-time requests are refunded.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/familyxp/internal/points"
)

// Processor resolves whatever has expired as of now.
type Processor interface {
	ProcessExpired(ctx context.Context) (points.SweepResult, error)
}

// Scheduler calls a Processor on a fixed interval.
type Scheduler struct {
	mu       sync.RWMutex
	proc     Processor
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(proc Processor, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		proc:     proc,
		interval: interval,
		logger:   logger.With("component", "sweep"),
	}
}

// Start runs one pass immediately, then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("sweep scheduler started", "interval", s.interval)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce performs a single pass and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) points.SweepResult {
	res, err := s.proc.ProcessExpired(ctx)
	if err != nil {
		s.logger.Error("sweep pass", "error", err,
			"auto_approved", res.AutoApproved, "refunded", res.Refunded)
		return res
	}
	if res.Total() > 0 {
		s.logger.Debug("sweep pass", "auto_approved", res.AutoApproved, "refunded", res.Refunded)
	}
	return res
}
