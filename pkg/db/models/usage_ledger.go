package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLedger holds one user's counters for one calendar month (YYYY-MM).
type UsageLedger struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Month          string    `gorm:"column:month;primaryKey;size:7" json:"month"`
	PublishedCount int       `gorm:"column:published_count;not null;default:0" json:"published_count"`
	AcceptedCount  int       `gorm:"column:accepted_count;not null;default:0" json:"accepted_count"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (UsageLedger) TableName() string { return "usage_ledger" }
