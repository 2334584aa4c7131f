package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/models"
)

// ProfileStore resolves reminder owners to delivery targets in a single
// batch lookup per sweep.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// EmailsByUserIDs returns a recipient per owner id that has a profile row.
// Rows are validated at this boundary: addresses are trimmed, and a profile
// whose email is blank yields no map entry at all.
func (s *ProfileStore) EmailsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Recipient, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Recipient{}, nil
	}

	var rows []models.Profile
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}

	out := make(map[uuid.UUID]models.Recipient, len(rows))
	for _, p := range rows {
		email := strings.TrimSpace(p.Email)
		if email == "" {
			continue
		}
		out[p.UserID] = models.Recipient{
			Email:    email,
			Language: strings.ToLower(strings.TrimSpace(p.Language)),
		}
	}
	return out, nil
}
