package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// BillingPlan captures the local metadata for a subscription plan.
// A nil RideLimit means accepts are unlimited on this plan.
type BillingPlan struct {
	ID            string                `gorm:"column:id;primaryKey" json:"id"`
	Name          string                `gorm:"column:name;not null" json:"name"`
	Status        enums.PlanStatus      `gorm:"column:status;type:text;not null;default:'active'" json:"status"`
	RideLimit     *int                  `gorm:"column:ride_limit" json:"ride_limit,omitempty"`
	Interval      enums.BillingInterval `gorm:"column:interval;type:text;not null;default:'month'" json:"interval"`
	PriceAmount   decimal.Decimal       `gorm:"column:price_amount;type:numeric(12,2);not null" json:"price_amount"`
	CurrencyCode  string                `gorm:"column:currency_code;not null;default:'EUR'" json:"currency_code"`
	StripePriceID *string               `gorm:"column:stripe_price_id;uniqueIndex:billing_plans_stripe_price_id_key" json:"stripe_price_id,omitempty"`
	IsDefault     bool                  `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BillingPlan) TableName() string { return "billing_plans" }
