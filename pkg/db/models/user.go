package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// User represents a registered driver.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"column:email;not null;uniqueIndex:users_email_key" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	FirstName    string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string         `gorm:"column:last_name;not null" json:"last_name"`
	Phone        *string        `gorm:"column:phone" json:"phone,omitempty"`
	Department   string         `gorm:"column:department;not null;index" json:"department"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'driver'" json:"role"`
	IsPriority   bool           `gorm:"column:is_priority;not null;default:false" json:"is_priority"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	ReferralCode string         `gorm:"column:referral_code;not null;uniqueIndex:users_referral_code_key" json:"referral_code"`
	ReferredBy   *uuid.UUID     `gorm:"column:referred_by;type:uuid" json:"referred_by,omitempty"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
