package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is one row of the reminders table. SentAt is nil while the
// reminder is pending; a non-nil SentAt is terminal.
type Reminder struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Title     string     `json:"title"` // may be empty
	RemindAt  time.Time  `gorm:"index" json:"remind_at"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Reminder) TableName() string { return "reminders" }

// Pending reports whether the reminder has never been delivered.
func (r Reminder) Pending() bool { return r.SentAt == nil }

// Profile is the slice of the user profile table this service reads:
// the delivery address and language preference for a reminder owner.
type Profile struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Email    string    `json:"email"`
	Language string    `json:"language"`
}

func (Profile) TableName() string { return "profiles" }

// Recipient is a resolved delivery target, derived from a Profile on each
// sweep pass and never persisted.
type Recipient struct {
	Email    string
	Language string
}
