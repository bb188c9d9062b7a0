package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RideDocument is a file attached to a ride.
type RideDocument struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RideID     int64     `gorm:"column:ride_id;not null;index" json:"ride_id"`
	UploadedBy uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null" json:"uploaded_by"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	StorageKey string    `gorm:"column:storage_key;not null" json:"-"`
	MimeType   string    `gorm:"column:mime_type;not null" json:"mime_type"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null" json:"size_bytes"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (RideDocument) TableName() string { return "ride_documents" }

func (d *RideDocument) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
