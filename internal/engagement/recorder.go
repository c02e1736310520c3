// Package engagement records reads and reactions against published capsules.
package engagement

import (
	"context"
	"errors"
	"time"

	"capsules/internal/lifecycle"
	"capsules/internal/models"
	"capsules/internal/observability"
	"capsules/internal/repository"

	"gorm.io/gorm"
)

// MinReadSeconds is the dwell time below which a read is treated as a bounce
// and discarded without touching storage.
const MinReadSeconds = 5

// Recorder is the engagement write path. Every operation first checks that
// the capsule is addressable to the caller; content still incubating behaves
// exactly like content that does not exist.
type Recorder struct {
	capsules   repository.CapsuleRepository
	engagement repository.EngagementRepository
	now        func() time.Time
}

// NewRecorder creates a Recorder. A nil now defaults to time.Now.
func NewRecorder(capsules repository.CapsuleRepository, engagement repository.EngagementRepository, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{capsules: capsules, engagement: engagement, now: now}
}

// visibleCapsule loads the capsule and enforces the visibility predicate.
func (r *Recorder) visibleCapsule(ctx context.Context, capsuleID uint, now time.Time) (*models.Capsule, error) {
	capsule, err := r.capsules.GetByID(ctx, capsuleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Capsule")
		}
		return nil, models.NewInternalError(err)
	}
	if !lifecycle.CapsuleVisible(capsule, now) {
		return nil, models.NewNotFoundError("Capsule")
	}
	return capsule, nil
}

// ToggleReaction flips the viewer's reaction on a published capsule and
// reports whether a reaction now exists.
func (r *Recorder) ToggleReaction(ctx context.Context, userID, capsuleID uint) (bool, error) {
	if _, err := r.visibleCapsule(ctx, capsuleID, r.now()); err != nil {
		return false, err
	}
	added, err := r.engagement.ToggleReaction(ctx, userID, capsuleID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if added {
		observability.ReactionsToggled.WithLabelValues("added").Inc()
	} else {
		observability.ReactionsToggled.WithLabelValues("removed").Inc()
	}
	return added, nil
}

// RecordRead stores a qualifying read session. Sub-threshold dwell times are
// silently discarded so a quick scroll-past never counts as a read. Repeated
// sessions by the same viewer overwrite the previous one.
func (r *Recorder) RecordRead(ctx context.Context, userID, capsuleID uint, seconds int) error {
	if seconds < MinReadSeconds {
		observability.ReadsRecorded.WithLabelValues("bounce").Inc()
		return nil
	}
	now := r.now()
	if _, err := r.visibleCapsule(ctx, capsuleID, now); err != nil {
		return err
	}
	if err := r.engagement.UpsertReadEvent(ctx, userID, capsuleID, seconds, now); err != nil {
		return models.NewInternalError(err)
	}
	observability.ReadsRecorded.WithLabelValues("recorded").Inc()
	return nil
}

// HasReacted reports whether the viewer currently has a reaction on the capsule.
func (r *Recorder) HasReacted(ctx context.Context, userID, capsuleID uint) (bool, error) {
	reacted, err := r.engagement.HasReacted(ctx, userID, capsuleID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return reacted, nil
}
