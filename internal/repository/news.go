package repository

import (
	"context"

	"capsules/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewsRepository persists aggregated news items.
type NewsRepository interface {
	// UpsertByURL inserts the item or refreshes an existing one with the
	// same URL, so re-fetching a feed never duplicates entries.
	UpsertByURL(ctx context.Context, item *models.NewsItem) error
	ListRecent(ctx context.Context, limit int) ([]*models.NewsItem, error)
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

func (r *newsRepository) UpsertByURL(ctx context.Context, item *models.NewsItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "summary", "source", "published_at", "fetched_at"}),
		}).
		Create(item).Error
}

func (r *newsRepository) ListRecent(ctx context.Context, limit int) ([]*models.NewsItem, error) {
	var items []*models.NewsItem
	err := r.db.WithContext(ctx).
		Order("published_at DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}
