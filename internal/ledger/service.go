package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

const (
	monthKeyLayout            = "2006-01"
	defaultReferralBonusRides = 3
)

// Service answers quota questions and records monthly usage.
type Service interface {
	WithTx(tx *gorm.DB) Service
	CanAcceptRide(ctx context.Context, userID uuid.UUID) (*QuotaDecision, error)
	IncrementUsage(ctx context.Context, userID uuid.UUID, kind enums.UsageKind) error
	AccrueReferralBonus(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error)
	Snapshot(ctx context.Context, userID uuid.UUID) (*UsageSnapshot, error)
	CurrentMonth() string
}

// QuotaDecision is the outcome of CanAcceptRide. Remaining and Limit are nil when unlimited.
type QuotaDecision struct {
	Allowed   bool    `json:"allowed"`
	Remaining *int    `json:"remaining"`
	Limit     *int    `json:"limit"`
	Used      int     `json:"used"`
	Reason    *string `json:"reason,omitempty"`
}

// UsageSnapshot is the caller-facing view of this month's counters.
type UsageSnapshot struct {
	Month          string        `json:"month"`
	PublishedCount int           `json:"published_count"`
	AcceptedCount  int           `json:"accepted_count"`
	BonusRides     int           `json:"bonus_rides"`
	Quota          QuotaDecision `json:"quota"`
}

// ServiceParams configure the ledger service.
type ServiceParams struct {
	Repo               Repository
	FreePlanRideLimit  int
	ReferralBonusRides int
	Location           *time.Location
	Now                func() time.Time
}

type service struct {
	repo       Repository
	freeLimit  int
	bonusRides int
	loc        *time.Location
	now        func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	freeLimit := params.FreePlanRideLimit
	if freeLimit < 0 {
		return nil, fmt.Errorf("free plan ride limit must not be negative")
	}
	bonus := params.ReferralBonusRides
	if bonus <= 0 {
		bonus = defaultReferralBonusRides
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		freeLimit:  freeLimit,
		bonusRides: bonus,
		loc:        loc,
		now:        now,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

// MonthKey formats t as the fixed-width YYYY-MM key in loc.
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(monthKeyLayout)
}

func (s *service) CurrentMonth() string {
	return MonthKey(s.now(), s.loc)
}

func (s *service) CanAcceptRide(ctx context.Context, userID uuid.UUID) (*QuotaDecision, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	subject, err := s.repo.FindQuotaSubject(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load quota subject")
	}

	usage, err := s.repo.GetMonth(ctx, userID, s.CurrentMonth())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load monthly usage")
	}

	if subject.IsPriority || isActive(subject) {
		return &QuotaDecision{Allowed: true, Used: usage.AcceptedCount}, nil
	}

	planLimit := s.planLimit(subject)
	if planLimit == nil {
		return &QuotaDecision{Allowed: true, Used: usage.AcceptedCount}, nil
	}

	bonus, err := s.repo.SumReferralBonus(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum referral bonus")
	}

	return decide(*planLimit+bonus, usage.AcceptedCount), nil
}

func decide(limit, used int) *QuotaDecision {
	remaining := limit - used
	if remaining <= 0 {
		zero := 0
		reason := fmt.Sprintf("vous avez atteint la limite de %d courses acceptées ce mois-ci", limit)
		return &QuotaDecision{Allowed: false, Remaining: &zero, Limit: &limit, Used: used, Reason: &reason}
	}
	return &QuotaDecision{Allowed: true, Remaining: &remaining, Limit: &limit, Used: used}
}

func isActive(subject *QuotaSubject) bool {
	return subject.SubscriptionStatus != nil && *subject.SubscriptionStatus == enums.SubscriptionStatusActive
}

// planLimit returns the monthly accept limit before bonuses; nil means unlimited.
// A plan linked to a free-tier subscription overrides the configured default.
func (s *service) planLimit(subject *QuotaSubject) *int {
	freeTier := subject.SubscriptionStatus == nil || *subject.SubscriptionStatus == enums.SubscriptionStatusFree
	if freeTier && subject.PlanID != nil {
		return subject.PlanRideLimit
	}
	limit := s.freeLimit
	return &limit
}

func (s *service) IncrementUsage(ctx context.Context, userID uuid.UUID, kind enums.UsageKind) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if _, ok := kind.Column(); !ok {
		return fmt.Errorf("invalid usage kind %q", kind)
	}
	if err := s.repo.Increment(ctx, userID, s.CurrentMonth(), kind); err != nil {
		return fmt.Errorf("increment %s usage: %w", kind, err)
	}
	return nil
}

// AccrueReferralBonus credits the referrer once per referred user, and only while the
// referrer is on the free tier. It reports whether a bonus was created.
func (s *service) AccrueReferralBonus(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error) {
	if referrerID == uuid.Nil || referredID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "referrer and referred ids are required")
	}
	if referrerID == referredID {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "a user cannot refer themselves")
	}

	subject, err := s.repo.FindQuotaSubject(ctx, referrerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "referrer not found")
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load referrer")
	}
	if subject.SubscriptionStatus != nil && *subject.SubscriptionStatus != enums.SubscriptionStatusFree {
		return false, nil
	}

	created, err := s.repo.CreateReferralBonus(ctx, &models.ReferralBonus{
		ReferrerID:  referrerID,
		ReferredID:  referredID,
		BonusRides:  s.bonusRides,
		MonthEarned: s.CurrentMonth(),
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create referral bonus")
	}
	return created, nil
}

func (s *service) Snapshot(ctx context.Context, userID uuid.UUID) (*UsageSnapshot, error) {
	decision, err := s.CanAcceptRide(ctx, userID)
	if err != nil {
		return nil, err
	}
	month := s.CurrentMonth()
	usage, err := s.repo.GetMonth(ctx, userID, month)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load monthly usage")
	}
	bonus, err := s.repo.SumReferralBonus(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum referral bonus")
	}
	return &UsageSnapshot{
		Month:          month,
		PublishedCount: usage.PublishedCount,
		AcceptedCount:  usage.AcceptedCount,
		BonusRides:     bonus,
		Quota:          *decision,
	}, nil
}

// QuotaError converts a refusal into the caller-facing error.
func QuotaError(decision *QuotaDecision) error {
	message := "monthly accept limit reached"
	if decision != nil && decision.Reason != nil {
		message = *decision.Reason
	}
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, message).WithDetails(map[string]any{"remaining": 0})
}
