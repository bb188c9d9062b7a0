package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/internal/billing"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	pkgstripe "github.com/courseshare/courseshare-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CheckoutClient opens hosted checkout sessions with the billing provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, input pkgstripe.CheckoutInput) (*stripe.CheckoutSession, error)
}

// Service defines the subscription surface.
type Service interface {
	Plans(ctx context.Context) ([]models.BillingPlan, error)
	GetForUser(ctx context.Context, userID uuid.UUID) (*View, error)
	CreateCheckout(ctx context.Context, userID uuid.UUID, planID string) (*CheckoutResult, error)
	ApplyBillingEvent(ctx context.Context, event BillingEvent) error
}

// View is a user's subscription with its plan, if any.
type View struct {
	Subscription *models.Subscription `json:"subscription"`
	Plan         *models.BillingPlan  `json:"plan,omitempty"`
}

// CheckoutResult points the client at the hosted checkout page.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ServiceParams groups dependencies for the subscription service. Checkout is optional;
// without it checkout requests fail with a dependency error.
type ServiceParams struct {
	BillingRepo       billing.Repository
	Users             userFinder
	Checkout          CheckoutClient
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	billingRepo billing.Repository
	users       userFinder
	checkout    CheckoutClient
	txRunner    txRunner
	logg        *logger.Logger
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		billingRepo: params.BillingRepo,
		users:       params.Users,
		checkout:    params.Checkout,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

func (s *service) Plans(ctx context.Context) ([]models.BillingPlan, error) {
	active := enums.PlanStatusActive
	plans, err := s.billingRepo.ListBillingPlans(ctx, billing.ListBillingPlansQuery{Status: &active})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	if plans == nil {
		plans = []models.BillingPlan{}
	}
	return plans, nil
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	sub, err := s.billingRepo.FindSubscription(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	view := &View{Subscription: sub}
	if sub.PlanID != nil {
		plan, err := s.billingRepo.FindBillingPlanByID(ctx, *sub.PlanID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
		}
		view.Plan = plan
	}
	return view, nil
}

func (s *service) CreateCheckout(ctx context.Context, userID uuid.UUID, planID string) (*CheckoutResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required")
	}
	if s.checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing provider not configured")
	}

	plan, err := s.billingRepo.FindBillingPlanByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
	}
	if plan == nil || !plan.Status.AcceptsCheckout() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not purchasable")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	sub, err := s.billingRepo.FindSubscription(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	input := pkgstripe.CheckoutInput{
		UserID:        userID.String(),
		CustomerEmail: user.Email,
		PriceID:       *plan.StripePriceID,
		PlanID:        plan.ID,
	}
	if sub != nil {
		if CountsAsPaid(sub.Status) && sub.PlanID != nil && *sub.PlanID == plan.ID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "already subscribed to this plan")
		}
		if sub.StripeCustomerID != nil {
			input.CustomerID = *sub.StripeCustomerID
		}
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"plan_id": plan.ID,
	}), "subscriptions.checkout_created")
	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// ApplyBillingEvent reconciles the local subscription row with the provider's view.
// The row is found by provider subscription id first, then by the user id stamped in
// the metadata.
func (s *service) ApplyBillingEvent(ctx context.Context, event BillingEvent) error {
	if strings.TrimSpace(event.StripeSubscriptionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	if !event.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", event.Status))
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByStripeID(ctx, event.StripeSubscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
		}
		if stored == nil && event.UserID != uuid.Nil {
			stored, err = repo.FindSubscription(ctx, event.UserID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
			}
		}
		create := false
		if stored == nil {
			if event.UserID == uuid.Nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from subscription metadata")
			}
			stored = &models.Subscription{UserID: event.UserID}
			create = true
		}

		planID, err := resolvePlan(ctx, repo, event)
		if err != nil {
			return err
		}

		stored.Status = event.Status
		stored.StripeSubscriptionID = trimmedPtr(event.StripeSubscriptionID)
		if customer := trimmedPtr(event.StripeCustomerID); customer != nil {
			stored.StripeCustomerID = customer
		}
		if planID != nil {
			stored.PlanID = planID
		}
		stored.CurrentPeriodStart = event.CurrentPeriodStart
		stored.CurrentPeriodEnd = event.CurrentPeriodEnd
		stored.CancelAtPeriodEnd = event.CancelAtPeriodEnd
		stored.CanceledAt = event.CanceledAt

		if create {
			err = repo.CreateSubscription(ctx, stored)
		} else {
			err = repo.UpdateSubscription(ctx, stored)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
		}

		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id":                stored.UserID.String(),
			"stripe_subscription_id": event.StripeSubscriptionID,
			"status":                 string(stored.Status),
		}), "subscriptions.billing_event_applied")
		return nil
	})
}

func resolvePlan(ctx context.Context, repo billing.Repository, event BillingEvent) (*string, error) {
	if event.PriceID != "" {
		plan, err := repo.FindBillingPlanByStripePriceID(ctx, event.PriceID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan by price")
		}
		if plan != nil {
			return &plan.ID, nil
		}
	}
	if event.PlanID != "" {
		plan, err := repo.FindBillingPlanByID(ctx, event.PlanID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan")
		}
		if plan != nil {
			return &plan.ID, nil
		}
	}
	return nil, nil
}
