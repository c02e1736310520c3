package models

import (
	"fmt"
	"time"
)

// NewsItem is an aggregated external headline. News items take no comments;
// the only interaction is the "discuss" handoff which pre-fills a capsule.
type NewsItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	Source      string    `gorm:"not null" json:"source"`
	URL         string    `gorm:"unique;not null" json:"url"`
	PublishedAt time.Time `gorm:"index" json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DiscussPrefill returns the compose-box prefill for the "discuss" handoff.
// No persistent link is kept between the news item and the resulting capsule.
func (n *NewsItem) DiscussPrefill() string {
	return fmt.Sprintf("On %q: ", n.Title)
}
