package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgstripe "github.com/courseshare/courseshare-backend/pkg/stripe"
)

// BillingEvent is the provider-neutral view of a subscription change.
type BillingEvent struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               enums.SubscriptionStatus
	PriceID              string
	UserID               uuid.UUID
	PlanID               string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
}

// EventFromStripe maps a Stripe subscription object into a BillingEvent. Deleted
// subscriptions are always reported as cancelled.
func EventFromStripe(sub *stripe.Subscription, deleted bool) BillingEvent {
	if sub == nil {
		return BillingEvent{}
	}
	event := BillingEvent{
		StripeSubscriptionID: sub.ID,
		Status:               enums.FromStripeStatus(string(sub.Status)),
		PriceID:              priceID(sub),
		CurrentPeriodStart:   toTimePtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     toTimePtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CanceledAt:           toTimePtr(sub.CanceledAt),
	}
	if sub.Customer != nil {
		event.StripeCustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		if id, err := uuid.Parse(strings.TrimSpace(sub.Metadata[pkgstripe.MetadataUserID])); err == nil {
			event.UserID = id
		}
		event.PlanID = strings.TrimSpace(sub.Metadata[pkgstripe.MetadataPlanID])
	}
	if deleted {
		event.Status = enums.SubscriptionStatusCancelled
	}
	return event
}

// CountsAsPaid reports whether the status lifts the free-tier quota.
func CountsAsPaid(status enums.SubscriptionStatus) bool {
	return status == enums.SubscriptionStatusActive
}

func priceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func trimmedPtr(value string) *string {
	if s := strings.TrimSpace(value); s != "" {
		return &s
	}
	return nil
}
