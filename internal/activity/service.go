// Package activity writes best-effort audit rows. Recording happens
// outside the settlement transaction and never fails the caller.
package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplyft/backend/pkg/db/models"
	"github.com/shoplyft/backend/pkg/logger"
)

// Entry describes one audit event.
type Entry struct {
	ActorID     *uuid.UUID
	ActorRole   string
	Action      string
	Target      string
	Description string
}

// Service records audit activity.
type Service interface {
	Record(ctx context.Context, entry Entry)
	List(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

type service struct {
	db *gorm.DB
}

// NewService wires an activity service.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{db: db}, nil
}

// Record writes the row and swallows failures with a log line. Audit
// must never roll back or delay a settled order.
func (s *service) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" {
		return
	}
	row := models.ActivityLog{
		ID:          uuid.New(),
		ActorID:     entry.ActorID,
		ActorRole:   entry.ActorRole,
		Action:      entry.Action,
		Target:      entry.Target,
		Description: entry.Description,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("action", entry.Action).
			Msg("activity log write failed")
	}
}

func (s *service) List(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.ActivityLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
