package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog is a best-effort audit row written outside the settlement
// transaction.
type ActivityLog struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ActorID     *uuid.UUID `gorm:"column:actor_id;type:uuid"`
	ActorRole   string     `gorm:"column:actor_role;not null;default:''"`
	Action      string     `gorm:"column:action;not null"`
	Target      string     `gorm:"column:target;not null;default:''"`
	Description string     `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
