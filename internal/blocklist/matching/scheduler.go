package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"senderguard/internal/blocklist/models"
	dErrors "senderguard/pkg/domain-errors"
)

// Runner is satisfied by *Engine.
type Runner interface {
	RunMatch(ctx context.Context) (models.RunResult, error)
}

// Scheduler triggers matching runs on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("match interval must be positive, got %s", interval)
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}, nil
}

// Start runs until ctx is cancelled. Failed runs are logged and the next
// tick runs again; they never stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	result, err := s.runner.RunMatch(ctx)
	if s.logger == nil {
		return
	}
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "scheduled match run finished", "updated", len(result.Reports))
	case dErrors.HasCode(err, dErrors.CodePartialFailure):
		s.logger.WarnContext(ctx, "scheduled match run partially failed",
			"updated", len(result.Reports),
			"failed", len(result.Failures),
			"error", err,
		)
	default:
		s.logger.ErrorContext(ctx, "scheduled match run failed", "error", err, "retryable", dErrors.IsRetryable(err))
	}
}
