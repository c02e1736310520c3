// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Topics is the fixed set of tags a capsule may carry and a profile may
// declare as interests.
var Topics = []string{
	"Philosophy", "Economics", "Politics", "Science",
	"Culture", "Technology", "History", "Ethics",
}

// IsValidTopic reports whether t is one of the known topics.
func IsValidTopic(t string) bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// Profile represents a user account in the Capsules application.
// DepthScore, CapsuleCount and ResponseCount are derived aggregates owned by
// the score worker; profile edits never touch them.
type Profile struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Username    string   `gorm:"unique;not null" json:"username"`
	Email       string   `gorm:"unique;not null" json:"email"`
	Password    string   `gorm:"not null" json:"-"`
	DisplayName string   `gorm:"not null" json:"display_name"`
	Bio         string   `json:"bio"`
	AvatarColor string   `json:"avatar_color"`
	Interests   []string `gorm:"serializer:json" json:"interests"`

	DepthScore    int `json:"depth_score"`
	CapsuleCount  int `json:"capsule_count"`
	ResponseCount int `json:"response_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DepthLabel returns the UI badge for a depth score: "high" at >= 80,
// "mid" at >= 50, empty below.
func DepthLabel(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 50:
		return "mid"
	default:
		return ""
	}
}

// ProfileSnapshot is the author subset joined onto capsules and responses.
type ProfileSnapshot struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
	DepthScore  int    `json:"depth_score"`
	DepthLabel  string `json:"depth_label,omitempty"`
}

// Snapshot returns the joined-display subset of the profile.
func (p *Profile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarColor: p.AvatarColor,
		DepthScore:  p.DepthScore,
		DepthLabel:  DepthLabel(p.DepthScore),
	}
}
