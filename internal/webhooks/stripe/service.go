package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"

	"github.com/courseshare/courseshare-backend/internal/subscriptions"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
)

type billingApplier interface {
	ApplyBillingEvent(ctx context.Context, event subscriptions.BillingEvent) error
}

type ServiceParams struct {
	Subscriptions billingApplier
	Logger        *logger.Logger
}

type Service struct {
	subscriptions billingApplier
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		subscriptions: params.Subscriptions,
		logg:          params.Logger,
	}, nil
}

// HandleEvent applies subscription lifecycle events. Other event types are acknowledged
// and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		deleted := event.Type == stripe.EventTypeCustomerSubscriptionDeleted
		return s.subscriptions.ApplyBillingEvent(ctx, subscriptions.EventFromStripe(&stripeSub, deleted))
	case stripe.EventTypeCheckoutSessionCompleted:
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":         event.ID,
			"session_id":       event.GetObjectValue("id"),
			"client_reference": event.GetObjectValue("client_reference_id"),
		}), "stripe.checkout_completed")
		return nil
	default:
		s.logg.Debug(s.logg.WithField(ctx, "event_type", string(event.Type)), "stripe.event_ignored")
		return nil
	}
}
