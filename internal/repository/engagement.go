package repository

import (
	"context"
	"errors"
	"time"

	"capsules/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadAggregate is the per-capsule rollup of read events.
type ReadAggregate struct {
	CapsuleID        uint
	ReadCount        int
	TotalReadSeconds int64
}

// EngagementRepository persists reactions and read events.
type EngagementRepository interface {
	// ToggleReaction flips the reaction state for (userID, capsuleID) and
	// reports whether a reaction now exists. Concurrent double-invocations
	// are coalesced by the unique index, never surfaced as errors.
	ToggleReaction(ctx context.Context, userID, capsuleID uint) (bool, error)
	// UpsertReadEvent overwrites the stored session for (userID, capsuleID).
	UpsertReadEvent(ctx context.Context, userID, capsuleID uint, seconds int, at time.Time) error
	CountReactions(ctx context.Context, capsuleID uint) (int64, error)
	HasReacted(ctx context.Context, userID, capsuleID uint) (bool, error)
	ReadAggregates(ctx context.Context) ([]ReadAggregate, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) ToggleReaction(ctx context.Context, userID, capsuleID uint) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND capsule_id = ?", userID, capsuleID).
			Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			added = false
			return tx.Model(&models.Capsule{}).
				Where("id = ?", capsuleID).
				Update("reaction_count", gorm.Expr("CASE WHEN reaction_count > 0 THEN reaction_count - 1 ELSE 0 END")).Error
		}

		if err := tx.Create(&models.Reaction{UserID: userID, CapsuleID: capsuleID}).Error; err != nil {
			// A concurrent toggle won the insert; the pair is already in the
			// desired state, and it incremented the counter.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				added = true
				return nil
			}
			return err
		}
		added = true
		return tx.Model(&models.Capsule{}).
			Where("id = ?", capsuleID).
			Update("reaction_count", gorm.Expr("reaction_count + 1")).Error
	})
	return added, err
}

func (r *engagementRepository) UpsertReadEvent(ctx context.Context, userID, capsuleID uint, seconds int, at time.Time) error {
	event := models.ReadEvent{
		UserID:      userID,
		CapsuleID:   capsuleID,
		ReadSeconds: seconds,
		RecordedAt:  at,
	}
	// Overwrite, never accumulate: the stored value is the latest qualifying
	// session, so the upsert is idempotent for repeated identical reads.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "capsule_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"read_seconds", "recorded_at"}),
		}).
		Create(&event).Error
}

func (r *engagementRepository) CountReactions(ctx context.Context, capsuleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("capsule_id = ?", capsuleID).
		Count(&count).Error
	return count, err
}

func (r *engagementRepository) HasReacted(ctx context.Context, userID, capsuleID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("user_id = ? AND capsule_id = ?", userID, capsuleID).
		Count(&count).Error
	return count > 0, err
}

func (r *engagementRepository) ReadAggregates(ctx context.Context) ([]ReadAggregate, error) {
	var aggregates []ReadAggregate
	err := r.db.WithContext(ctx).
		Model(&models.ReadEvent{}).
		Select("capsule_id, COUNT(*) as read_count, SUM(read_seconds) as total_read_seconds").
		Group("capsule_id").
		Find(&aggregates).Error
	return aggregates, err
}
