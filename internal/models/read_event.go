package models

import (
	"time"
)

// ReadEvent holds the latest qualifying read session for a (user, capsule)
// pair. A repeat read overwrites ReadSeconds, it never accumulates, so there
// is no read-modify-write race to guard against. Scoring input only; never
// served to clients.
type ReadEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_read_user_capsule" json:"user_id"`
	CapsuleID   uint      `gorm:"not null;uniqueIndex:idx_read_user_capsule" json:"capsule_id"`
	Capsule     Capsule   `gorm:"foreignKey:CapsuleID;constraint:OnDelete:CASCADE" json:"-"`
	ReadSeconds int       `gorm:"not null" json:"read_seconds"`
	RecordedAt  time.Time `gorm:"not null" json:"recorded_at"`
}
