package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// Subscription persists the billing state of a single user.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:subscriptions_user_id_key" json:"user_id"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'free'" json:"status"`
	PlanID               *string                  `gorm:"column:plan_id" json:"plan_id,omitempty"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex:subscriptions_stripe_subscription_id_key" json:"stripe_subscription_id,omitempty"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
