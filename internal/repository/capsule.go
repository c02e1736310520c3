// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"time"

	"capsules/internal/models"

	"gorm.io/gorm"
)

// CapsuleCounters is the scoring input slice of a capsule row.
type CapsuleCounters struct {
	ID               uint
	AuthorID         uint
	IsPublished      bool
	ReactionCount    int
	ResponseCount    int
	ReadCount        int
	TotalReadSeconds int64
	DepthFeedScore   float64
}

// CapsuleRepository defines the interface for capsule data operations.
// Every listing method that serves readers other than the author takes the
// evaluation instant and applies the visibility predicate in SQL; there is no
// unfiltered listing path.
type CapsuleRepository interface {
	Create(ctx context.Context, capsule *models.Capsule) error
	GetByID(ctx context.Context, id uint) (*models.Capsule, error)
	// DeleteIfWithdrawable performs the single atomic conditional delete
	// guarding withdrawal and reports the number of rows affected.
	DeleteIfWithdrawable(ctx context.Context, id, authorID uint, now time.Time) (int64, error)
	// ListForYou and ListLatest filter by topic in SQL so pages stay full
	// under a topic filter; an empty topic means no filter.
	ListForYou(ctx context.Context, now time.Time, topic string, limit, offset int) ([]*models.Capsule, error)
	ListLatest(ctx context.Context, now time.Time, topic string, limit, offset int) ([]*models.Capsule, error)
	ListPendingByAuthor(ctx context.Context, authorID uint, now time.Time) ([]*models.Capsule, error)
	ListPublishedByAuthor(ctx context.Context, authorID uint, now time.Time, limit int) ([]*models.Capsule, error)
	// PublishDue flips is_published on every row whose window has elapsed and
	// returns the ids it flipped.
	PublishDue(ctx context.Context, now time.Time) ([]uint, error)
	// Publish is the idempotent single-row transition; flipping an already
	// published row is a no-op, never an error.
	Publish(ctx context.Context, id uint, now time.Time) error
	ListCounters(ctx context.Context) ([]CapsuleCounters, error)
	UpdateEngagement(ctx context.Context, id uint, readCount int, totalReadSeconds int64, depthFeedScore float64) error
}

type capsuleRepository struct {
	db *gorm.DB
}

// NewCapsuleRepository creates a new capsule repository
func NewCapsuleRepository(db *gorm.DB) CapsuleRepository {
	return &capsuleRepository{db: db}
}

func (r *capsuleRepository) Create(ctx context.Context, capsule *models.Capsule) error {
	return r.db.WithContext(ctx).Create(capsule).Error
}

func (r *capsuleRepository) GetByID(ctx context.Context, id uint) (*models.Capsule, error) {
	var capsule models.Capsule
	err := r.db.WithContext(ctx).Preload("Author").First(&capsule, id).Error
	if err != nil {
		return nil, err
	}
	return &capsule, nil
}

func (r *capsuleRepository) DeleteIfWithdrawable(ctx context.Context, id, authorID uint, now time.Time) (int64, error) {
	// One conditional statement, not check-then-act: the time/ownership
	// predicate and the delete must be a single atomic operation. Responses,
	// reactions and read events go with it via ON DELETE CASCADE.
	res := r.db.WithContext(ctx).
		Where("id = ? AND author_id = ? AND publishes_at > ?", id, authorID, now).
		Delete(&models.Capsule{})
	return res.RowsAffected, res.Error
}

// visible scopes a query to the visibility predicate: published AND past the
// incubation window. Each condition alone is insufficient.
func visible(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("is_published = ? AND publishes_at <= ?", true, now)
}

// tagged narrows a query to capsules carrying the topic. Tags are stored as a
// JSON array of strings, so matching the quoted topic is exact; topics are
// validated against the fixed list before they reach the repository.
func tagged(q *gorm.DB, topic string) *gorm.DB {
	if topic == "" {
		return q
	}
	return q.Where("tags LIKE ?", `%"`+topic+`"%`)
}

func (r *capsuleRepository) ListForYou(ctx context.Context, now time.Time, topic string, limit, offset int) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	err := tagged(visible(r.db.WithContext(ctx), now), topic).
		Preload("Author").
		Order("depth_feed_score DESC, publishes_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&capsules).Error
	return capsules, err
}

func (r *capsuleRepository) ListLatest(ctx context.Context, now time.Time, topic string, limit, offset int) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	err := tagged(visible(r.db.WithContext(ctx), now), topic).
		Preload("Author").
		Order("publishes_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&capsules).Error
	return capsules, err
}

func (r *capsuleRepository) ListPendingByAuthor(ctx context.Context, authorID uint, now time.Time) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("author_id = ? AND publishes_at > ?", authorID, now).
		Order("publishes_at ASC").
		Find(&capsules).Error
	return capsules, err
}

func (r *capsuleRepository) ListPublishedByAuthor(ctx context.Context, authorID uint, now time.Time, limit int) ([]*models.Capsule, error) {
	var capsules []*models.Capsule
	err := visible(r.db.WithContext(ctx), now).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order("publishes_at DESC").
		Limit(limit).
		Find(&capsules).Error
	return capsules, err
}

func (r *capsuleRepository) PublishDue(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Capsule{}).
		Where("is_published = ? AND publishes_at <= ?", false, now).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Capsule{}).
		Where("id IN ? AND is_published = ?", ids, false).
		Update("is_published", true).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *capsuleRepository) Publish(ctx context.Context, id uint, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Capsule{}).
		Where("id = ? AND publishes_at <= ?", id, now).
		Update("is_published", true).Error
}

func (r *capsuleRepository) ListCounters(ctx context.Context) ([]CapsuleCounters, error) {
	var counters []CapsuleCounters
	err := r.db.WithContext(ctx).
		Model(&models.Capsule{}).
		Select("id, author_id, is_published, reaction_count, response_count, read_count, total_read_seconds, depth_feed_score").
		Find(&counters).Error
	return counters, err
}

func (r *capsuleRepository) UpdateEngagement(ctx context.Context, id uint, readCount int, totalReadSeconds int64, depthFeedScore float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Capsule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"read_count":         readCount,
			"total_read_seconds": totalReadSeconds,
			"depth_feed_score":   depthFeedScore,
		}).Error
}
