package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BatchOpen      = "open"
	BatchSubmitted = "submitted"
	BatchDiscarded = "discarded"
)

type ReconciliationBatch struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID            string    `gorm:"index"`
	Filename             string
	CsvRowCount          int
	AutoMatchedCount     int
	NeedsReviewCount     int
	UnmatchedCount       int
	AlreadyImportedCount int
	Status               string
	StartedAt            time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
}
