package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralBonus is a permanent accept-quota credit granted to a referrer.
type ReferralBonus struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReferrerID  uuid.UUID `gorm:"column:referrer_id;type:uuid;not null;uniqueIndex:referral_bonuses_pair_key,priority:1" json:"referrer_id"`
	ReferredID  uuid.UUID `gorm:"column:referred_id;type:uuid;not null;uniqueIndex:referral_bonuses_pair_key,priority:2" json:"referred_id"`
	BonusRides  int       `gorm:"column:bonus_rides;not null" json:"bonus_rides"`
	MonthEarned string    `gorm:"column:month_earned;not null;size:7" json:"month_earned"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReferralBonus) TableName() string { return "referral_bonuses" }

func (b *ReferralBonus) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
