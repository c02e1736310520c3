package scoring

import (
	"context"
	"log/slog"
	"time"

	"capsules/internal/observability"
	"capsules/internal/repository"
)

// Worker periodically recomputes engagement aggregates and depth scores from
// source-of-truth rows. Running everything from one goroutine keeps the
// derived columns single-writer; the hot paths never touch them.
type Worker struct {
	capsules   repository.CapsuleRepository
	responses  repository.ResponseRepository
	profiles   repository.ProfileRepository
	engagement repository.EngagementRepository
	logger     *slog.Logger
}

// NewWorker creates a score recomputation worker.
func NewWorker(
	capsules repository.CapsuleRepository,
	responses repository.ResponseRepository,
	profiles repository.ProfileRepository,
	engagement repository.EngagementRepository,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		capsules:   capsules,
		responses:  responses,
		profiles:   profiles,
		engagement: engagement,
		logger:     logger,
	}
}

// Start runs recomputation on a fixed interval until the context is
// cancelled. One cycle runs immediately on startup.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("score worker started", slog.Duration("interval", interval))

	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("score recomputation failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("score worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("score recomputation failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce recomputes every capsule's read aggregates and feed score, then
// every profile's depth score. The pass is idempotent: rerunning it on
// unchanged data writes the same values.
func (w *Worker) RunOnce(ctx context.Context) error {
	if err := w.runOnce(ctx); err != nil {
		observability.ScoreRecomputations.WithLabelValues("error").Inc()
		return err
	}
	observability.ScoreRecomputations.WithLabelValues("ok").Inc()
	return nil
}

func (w *Worker) runOnce(ctx context.Context) error {
	reads, err := w.engagement.ReadAggregates(ctx)
	if err != nil {
		return err
	}
	readsByCapsule := make(map[uint]repository.ReadAggregate, len(reads))
	for _, agg := range reads {
		readsByCapsule[agg.CapsuleID] = agg
	}

	counters, err := w.capsules.ListCounters(ctx)
	if err != nil {
		return err
	}

	// Per-author rollups for profile scoring. Only published capsules count
	// toward a profile: incubating drafts are invisible everywhere, scores
	// included.
	publishedByAuthor := make(map[uint]int)
	readSecondsByAuthor := make(map[uint]int64)

	for _, c := range counters {
		agg := readsByCapsule[c.ID]
		if c.IsPublished {
			publishedByAuthor[c.AuthorID]++
			readSecondsByAuthor[c.AuthorID] += agg.TotalReadSeconds
		}

		score := CapsuleFeedScore(agg.ReadCount, agg.TotalReadSeconds, c.ResponseCount, c.ReactionCount)
		if agg.ReadCount == c.ReadCount && agg.TotalReadSeconds == c.TotalReadSeconds && score == c.DepthFeedScore {
			continue
		}
		if err := w.capsules.UpdateEngagement(ctx, c.ID, agg.ReadCount, agg.TotalReadSeconds, score); err != nil {
			return err
		}
	}

	responseCounts, err := w.responses.CountPublishedByAuthor(ctx)
	if err != nil {
		return err
	}
	responsesByAuthor := make(map[uint]int, len(responseCounts))
	for _, rc := range responseCounts {
		responsesByAuthor[rc.AuthorID] = rc.Count
	}

	profileIDs, err := w.profiles.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range profileIDs {
		score := ProfileDepthScore(responsesByAuthor[id], publishedByAuthor[id], readSecondsByAuthor[id])
		if err := w.profiles.UpdateDerived(ctx, id, score, publishedByAuthor[id], responsesByAuthor[id]); err != nil {
			return err
		}
	}
	return nil
}
