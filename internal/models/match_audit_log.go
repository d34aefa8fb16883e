package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchAuditLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID     string    `gorm:"index"`
	CsvRowID      string
	Action        string
	PreviousMatch *string
	NewMatch      *string
	Details       datatypes.JSON
	CreatedAt     time.Time
}
