package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// Ride is a transport job published by one driver and optionally taken by another.
type Ride struct {
	ID                  int64                     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PublishedBy         uuid.UUID                 `gorm:"column:published_by;type:uuid;not null;index" json:"published_by"`
	DepartureDepartment string                    `gorm:"column:departure_department;not null;index" json:"departure_department"`
	ArrivalDepartment   string                    `gorm:"column:arrival_department;not null;index" json:"arrival_department"`
	DepartureCity       *string                   `gorm:"column:departure_city" json:"departure_city,omitempty"`
	ArrivalCity         *string                   `gorm:"column:arrival_city" json:"arrival_city,omitempty"`
	Zone                string                    `gorm:"column:zone;not null" json:"zone"`
	Distance            string                    `gorm:"column:distance;not null" json:"distance"`
	CourseType          enums.CourseType          `gorm:"column:course_type;type:text;not null" json:"course_type"`
	MedicalType         *string                   `gorm:"column:medical_type" json:"medical_type,omitempty"`
	ScheduledDate       time.Time                 `gorm:"column:scheduled_date;type:date;not null" json:"scheduled_date"`
	DepartureTime       string                    `gorm:"column:departure_time;not null" json:"departure_time"`
	ArrivalTime         *string                   `gorm:"column:arrival_time" json:"arrival_time,omitempty"`
	ClientName          string                    `gorm:"column:client_name;not null" json:"client_name"`
	ClientPhone         string                    `gorm:"column:client_phone;not null" json:"client_phone"`
	Pickup              string                    `gorm:"column:pickup;not null" json:"pickup"`
	Destination         string                    `gorm:"column:destination;not null" json:"destination"`
	Notes               *string                   `gorm:"column:notes" json:"notes,omitempty"`
	Stretcher           bool                      `gorm:"column:stretcher;not null;default:false" json:"stretcher"`
	Status              enums.RideStatus          `gorm:"column:status;type:text;not null;default:'available'" json:"status"`
	AcceptedBy          *uuid.UUID                `gorm:"column:accepted_by;type:uuid" json:"accepted_by,omitempty"`
	AcceptedAt          *time.Time                `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CompletedAt         *time.Time                `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DocumentsVisibility enums.DocumentsVisibility `gorm:"column:documents_visibility;type:text;not null;default:'hidden'" json:"documents_visibility"`
	Documents           []RideDocument            `gorm:"foreignKey:RideID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Ride) TableName() string { return "rides" }

// IsParticipant reports whether userID published or took the ride.
func (r *Ride) IsParticipant(userID uuid.UUID) bool {
	if r == nil || userID == uuid.Nil {
		return false
	}
	if r.PublishedBy == userID {
		return true
	}
	return r.AcceptedBy != nil && *r.AcceptedBy == userID
}
