package probe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wssmoke/internal/logging"
)

// Scheduler repeats harness runs on a fixed interval.
type Scheduler struct {
	harness  *Harness
	interval time.Duration
	onReport func(Report, error)
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewScheduler creates a scheduler; onReport may be nil.
func NewScheduler(h *Harness, interval time.Duration, onReport func(Report, error), logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		harness:  h,
		interval: interval,
		onReport: onReport,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop in a goroutine. The first run starts immediately.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop cancels the in-flight run, if any, and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.doneCh
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick() {
	report, err := s.harness.Run(s.ctx)
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Warn("probe run skipped", "reason", err)
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	if s.onReport != nil {
		s.onReport(report, err)
	}
}
