package models

import (
	"time"
)

// Reaction records that a user liked a capsule.
// The (UserID, CapsuleID) pair is unique; existence is the whole state, so
// rows are hard-deleted on un-react and the unique index is what makes
// concurrent double-toggles safe.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_user_capsule" json:"user_id"`
	CapsuleID uint      `gorm:"not null;uniqueIndex:idx_reaction_user_capsule" json:"capsule_id"`
	Capsule   Capsule   `gorm:"foreignKey:CapsuleID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
