package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"capsules/internal/observability"
	"capsules/internal/repository"
)

// Sweeper eagerly flips is_published on rows whose window has elapsed, so
// publication happens even for content nobody queries. All read paths still
// apply the full visibility predicate; the sweep only narrows the gap between
// the time condition and the flag.
type Sweeper struct {
	capsules  repository.CapsuleRepository
	responses repository.ResponseRepository
	logger    *slog.Logger
	now       func() time.Time
	// onPublished, when set, receives the ids of capsules flipped by a cycle.
	onPublished func(ctx context.Context, capsuleIDs []uint)
}

// NewSweeper creates a publication sweeper.
func NewSweeper(capsules repository.CapsuleRepository, responses repository.ResponseRepository, logger *slog.Logger, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		capsules:  capsules,
		responses: responses,
		logger:    logger,
		now:       now,
	}
}

// OnPublished registers a best-effort callback for freshly published capsules.
func (s *Sweeper) OnPublished(fn func(ctx context.Context, capsuleIDs []uint)) {
	s.onPublished = fn
}

// Start runs the sweep on a fixed interval until the context is cancelled.
// One cycle runs immediately on startup.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("publication sweeper started", slog.Duration("interval", interval))

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("publication sweep failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("publication sweeper stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("publication sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs a single sweep cycle. Re-running on already flipped rows
// is a no-op, so overlapping or repeated sweeps are harmless.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now()

	capsuleIDs, err := s.capsules.PublishDue(ctx, now)
	if err != nil {
		observability.SweepRuns.WithLabelValues("error").Inc()
		return err
	}
	responseCount, err := s.responses.PublishDue(ctx, now)
	if err != nil {
		observability.SweepRuns.WithLabelValues("error").Inc()
		return err
	}

	observability.SweepRuns.WithLabelValues("ok").Inc()
	if len(capsuleIDs) > 0 {
		observability.CapsulesPublished.WithLabelValues("capsule").Add(float64(len(capsuleIDs)))
	}
	if responseCount > 0 {
		observability.CapsulesPublished.WithLabelValues("response").Add(float64(responseCount))
	}

	if len(capsuleIDs) > 0 || responseCount > 0 {
		s.logger.Info("publication sweep completed",
			slog.Int("capsules", len(capsuleIDs)),
			slog.Int64("responses", responseCount),
		)
	}

	if s.onPublished != nil && len(capsuleIDs) > 0 {
		s.onPublished(ctx, capsuleIDs)
	}
	return nil
}
