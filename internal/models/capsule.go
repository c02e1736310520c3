package models

import (
	"math"
	"strings"
	"time"
)

// Capsule represents a top-level post subject to the incubation lifecycle.
// There is deliberately no gorm.DeletedAt: withdrawal is a hard delete and a
// published capsule is never deleted or updated, so soft-delete tombstones
// would only weaken the "no trace after withdrawal" guarantee.
type Capsule struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	AuthorID uint     `gorm:"not null;index" json:"author_id"`
	Author   Profile  `gorm:"foreignKey:AuthorID" json:"-"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	Tags     []string `gorm:"serializer:json" json:"tags"`

	CreatedAt   time.Time `json:"created_at"`
	PublishesAt time.Time `gorm:"not null;index" json:"publishes_at"`
	IsPublished bool      `gorm:"not null;default:false;index" json:"is_published"`

	ReactionCount    int   `gorm:"not null;default:0" json:"reaction_count"`
	ResponseCount    int   `gorm:"not null;default:0" json:"response_count"`
	ReadCount        int   `gorm:"not null;default:0" json:"read_count"`
	TotalReadSeconds int64 `gorm:"not null;default:0" json:"total_read_seconds"`

	DepthFeedScore float64 `gorm:"not null;default:0;index" json:"depth_feed_score"`

	// AuthorProfile is the joined display snapshot (computed on serialization).
	AuthorProfile *ProfileSnapshot `gorm:"-" json:"author,omitempty"`
	// ReadTimeMinutes is the estimated reading time (computed, not persisted).
	ReadTimeMinutes int `gorm:"-" json:"read_time_minutes"`
}

// wordsPerMinute is the reading-speed assumption for the read-time estimate.
const wordsPerMinute = 200

// EstimateReadMinutes returns ceil(words/200) with a floor of one minute for
// non-empty content.
func EstimateReadMinutes(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// Decorate fills the computed fields from the preloaded author.
func (c *Capsule) Decorate() {
	snap := c.Author.Snapshot()
	c.AuthorProfile = &snap
	c.ReadTimeMinutes = EstimateReadMinutes(c.Content)
}
