package models

import (
	"time"
)

// Response represents a reply to a capsule. It runs through the same
// incubation lifecycle as its parent but carries no tags and no reactions.
type Response struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	CapsuleID uint    `gorm:"not null;index" json:"capsule_id"`
	Capsule   Capsule `gorm:"foreignKey:CapsuleID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  uint    `gorm:"not null;index" json:"author_id"`
	Author    Profile `gorm:"foreignKey:AuthorID" json:"-"`
	Content   string  `gorm:"type:text;not null" json:"content"`

	CreatedAt   time.Time `json:"created_at"`
	PublishesAt time.Time `gorm:"not null;index" json:"publishes_at"`
	IsPublished bool      `gorm:"not null;default:false;index" json:"is_published"`

	AuthorProfile *ProfileSnapshot `gorm:"-" json:"author,omitempty"`
}

// Decorate fills the computed author snapshot from the preloaded author.
func (r *Response) Decorate() {
	snap := r.Author.Snapshot()
	r.AuthorProfile = &snap
}
