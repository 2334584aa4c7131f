package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/models"
)

// ReminderStore performs the narrow reads and writes the sweep needs
// against the reminders table: filtered selection and a conditional
// mark-as-sent by id. It never holds a multi-row transaction.
type ReminderStore struct {
	db *gorm.DB
}

func NewReminderStore(db *gorm.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// DueUnsent returns at most limit reminders with no delivery timestamp
// whose scheduled instant lies inside [from, to], both ends inclusive.
func (s *ReminderStore) DueUnsent(ctx context.Context, from, to time.Time, limit int) ([]models.Reminder, error) {
	var out []models.Reminder
	err := s.db.WithContext(ctx).
		Where("sent_at IS NULL AND remind_at >= ? AND remind_at <= ?", from, to).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	return out, nil
}

// MarkSent stamps the reminder's delivery timestamp, but only while it is
// still unset. Returns false when another pass already claimed the row, so
// the caller can tell a lost race from a successful mark.
func (s *ReminderStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Reminder{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("mark reminder %s sent: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
