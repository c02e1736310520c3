package repository

import (
	"context"
	"time"

	"capsules/internal/models"

	"gorm.io/gorm"
)

// AuthoredCounts aggregates a user's authored content for scoring.
type AuthoredCounts struct {
	AuthorID uint
	Count    int
}

// ResponseRepository defines the interface for response data operations.
type ResponseRepository interface {
	// Create inserts the response and increments the parent capsule's
	// response counter in the same transaction.
	Create(ctx context.Context, response *models.Response) error
	GetByID(ctx context.Context, id uint) (*models.Response, error)
	// DeleteIfWithdrawable mirrors the capsule withdrawal guard and keeps the
	// parent counter in step within one transaction.
	DeleteIfWithdrawable(ctx context.Context, id, authorID uint, now time.Time) (int64, error)
	ListPublishedByCapsule(ctx context.Context, capsuleID uint, now time.Time) ([]*models.Response, error)
	PublishDue(ctx context.Context, now time.Time) (int64, error)
	CountPublishedByAuthor(ctx context.Context) ([]AuthoredCounts, error)
}

type responseRepository struct {
	db *gorm.DB
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

func (r *responseRepository) Create(ctx context.Context, response *models.Response) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(response).Error; err != nil {
			return err
		}
		return tx.Model(&models.Capsule{}).
			Where("id = ?", response.CapsuleID).
			Update("response_count", gorm.Expr("response_count + 1")).Error
	})
}

func (r *responseRepository) GetByID(ctx context.Context, id uint) (*models.Response, error) {
	var response models.Response
	err := r.db.WithContext(ctx).Preload("Author").First(&response, id).Error
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (r *responseRepository) DeleteIfWithdrawable(ctx context.Context, id, authorID uint, now time.Time) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var capsuleID uint
		if err := tx.Model(&models.Response{}).
			Where("id = ?", id).
			Pluck("capsule_id", &capsuleID).Error; err != nil {
			return err
		}

		res := tx.Where("id = ? AND author_id = ? AND publishes_at > ?", id, authorID, now).
			Delete(&models.Response{})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return tx.Model(&models.Capsule{}).
			Where("id = ?", capsuleID).
			Update("response_count", gorm.Expr("CASE WHEN response_count > 0 THEN response_count - 1 ELSE 0 END")).Error
	})
	return affected, err
}

func (r *responseRepository) ListPublishedByCapsule(ctx context.Context, capsuleID uint, now time.Time) ([]*models.Response, error) {
	var responses []*models.Response
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("capsule_id = ? AND is_published = ? AND publishes_at <= ?", capsuleID, true, now).
		Order("publishes_at ASC").
		Find(&responses).Error
	return responses, err
}

func (r *responseRepository) PublishDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("is_published = ? AND publishes_at <= ?", false, now).
		Update("is_published", true)
	return res.RowsAffected, res.Error
}

func (r *responseRepository) CountPublishedByAuthor(ctx context.Context) ([]AuthoredCounts, error) {
	var counts []AuthoredCounts
	err := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Select("author_id, COUNT(*) as count").
		Where("is_published = ?", true).
		Group("author_id").
		Find(&counts).Error
	return counts, err
}
