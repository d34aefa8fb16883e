package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionUnverified = "UNVERIFIED"
	TransactionVerified   = "VERIFIED"
)

type Transaction struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	QrisOrderID     *string   `gorm:"index"`
	TransactionDate time.Time `gorm:"index"`
	TotalAmount     float64   `gorm:"index"`
	NetAmount       *float64
	PaymentMethod   string
	Status          string `gorm:"index"`
	SettledAt       *time.Time
	VerifiedAt      *time.Time
	CreatedAt       time.Time
}
