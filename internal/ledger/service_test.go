package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

type fakeRepository struct {
	subject     *QuotaSubject
	subjectErr  error
	accepted    int
	bonus       int
	incremented []string
	bonusCalls  []models.ReferralBonus
	bonusExists bool
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Increment(ctx context.Context, userID uuid.UUID, month string, kind enums.UsageKind) error {
	f.incremented = append(f.incremented, month+":"+string(kind))
	return nil
}

func (f *fakeRepository) GetMonth(ctx context.Context, userID uuid.UUID, month string) (*models.UsageLedger, error) {
	return &models.UsageLedger{UserID: userID, Month: month, AcceptedCount: f.accepted}, nil
}

func (f *fakeRepository) SumReferralBonus(ctx context.Context, referrerID uuid.UUID) (int, error) {
	return f.bonus, nil
}

func (f *fakeRepository) CreateReferralBonus(ctx context.Context, bonus *models.ReferralBonus) (bool, error) {
	f.bonusCalls = append(f.bonusCalls, *bonus)
	return !f.bonusExists, nil
}

func (f *fakeRepository) FindQuotaSubject(ctx context.Context, userID uuid.UUID) (*QuotaSubject, error) {
	if f.subjectErr != nil {
		return nil, f.subjectErr
	}
	if f.subject == nil {
		return &QuotaSubject{}, nil
	}
	return f.subject, nil
}

func newTestService(t *testing.T, repo Repository, now time.Time) Service {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:               repo,
		FreePlanRideLimit:  5,
		ReferralBonusRides: 3,
		Location:           paris,
		Now:                func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func statusPtr(s enums.SubscriptionStatus) *enums.SubscriptionStatus { return &s }

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error without repository")
	}
}

func TestMonthKeyUsesConfiguredTimezone(t *testing.T) {
	paris, _ := time.LoadLocation("Europe/Paris")
	// 23:30 UTC on March 31st is already April 1st in Paris.
	instant := time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC)
	if got := MonthKey(instant, paris); got != "2026-04" {
		t.Fatalf("expected 2026-04, got %s", got)
	}
	if got := MonthKey(instant, nil); got != "2026-03" {
		t.Fatalf("expected 2026-03 in UTC, got %s", got)
	}
}

func TestCanAcceptRide(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	user := uuid.New()
	planLimit := 2

	tests := []struct {
		name          string
		repo          *fakeRepository
		wantAllowed   bool
		wantRemaining *int
	}{
		{name: "free under limit", repo: &fakeRepository{accepted: 3}, wantAllowed: true, wantRemaining: intPtr(2)},
		{name: "free at limit", repo: &fakeRepository{accepted: 5}, wantAllowed: false, wantRemaining: intPtr(0)},
		{name: "free over limit", repo: &fakeRepository{accepted: 7}, wantAllowed: false, wantRemaining: intPtr(0)},
		{name: "bonus extends limit", repo: &fakeRepository{accepted: 5, bonus: 3}, wantAllowed: true, wantRemaining: intPtr(3)},
		{name: "bonus exhausted", repo: &fakeRepository{accepted: 8, bonus: 3}, wantAllowed: false, wantRemaining: intPtr(0)},
		{name: "priority always allowed", repo: &fakeRepository{accepted: 50, subject: &QuotaSubject{IsPriority: true}}, wantAllowed: true},
		{name: "active subscription unlimited", repo: &fakeRepository{accepted: 50, subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusActive)}}, wantAllowed: true},
		{name: "free tier plan limit", repo: &fakeRepository{accepted: 2, subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusFree), PlanID: strPtr("starter"), PlanRideLimit: &planLimit}}, wantAllowed: false, wantRemaining: intPtr(0)},
		{name: "free tier unlimited plan", repo: &fakeRepository{accepted: 99, subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusFree), PlanID: strPtr("partner")}}, wantAllowed: true},
		{name: "expired falls back to free limit", repo: &fakeRepository{accepted: 5, subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusExpired), PlanID: strPtr("pro")}}, wantAllowed: false, wantRemaining: intPtr(0)},
		{name: "past due uses free limit", repo: &fakeRepository{accepted: 1, subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusPastDue)}}, wantAllowed: true, wantRemaining: intPtr(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.repo, now)
			decision, err := svc.CanAcceptRide(context.Background(), user)
			if err != nil {
				t.Fatalf("CanAcceptRide: %v", err)
			}
			if decision.Allowed != tt.wantAllowed {
				t.Fatalf("expected allowed=%v, got %+v", tt.wantAllowed, decision)
			}
			if (tt.wantRemaining == nil) != (decision.Remaining == nil) {
				t.Fatalf("remaining mismatch: want %v got %v", tt.wantRemaining, decision.Remaining)
			}
			if tt.wantRemaining != nil && *decision.Remaining != *tt.wantRemaining {
				t.Fatalf("expected remaining %d, got %d", *tt.wantRemaining, *decision.Remaining)
			}
			if !decision.Allowed && (decision.Reason == nil || *decision.Reason == "") {
				t.Fatal("refusals must carry a reason")
			}
		})
	}
}

func TestCanAcceptRideReason(t *testing.T) {
	svc := newTestService(t, &fakeRepository{accepted: 5}, time.Now())
	decision, err := svc.CanAcceptRide(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("CanAcceptRide: %v", err)
	}
	want := "vous avez atteint la limite de 5 courses acceptées ce mois-ci"
	if decision.Reason == nil || *decision.Reason != want {
		t.Fatalf("unexpected reason %v", decision.Reason)
	}

	qerr := pkgerrors.As(QuotaError(decision))
	if qerr == nil || qerr.Code() != pkgerrors.CodeQuotaExceeded || qerr.Message() != want {
		t.Fatalf("unexpected quota error %v", qerr)
	}
	details, ok := qerr.Details().(map[string]any)
	if !ok || details["remaining"] != 0 {
		t.Fatalf("expected remaining=0 details, got %v", qerr.Details())
	}
}

func TestCanAcceptRideUnknownUser(t *testing.T) {
	svc := newTestService(t, &fakeRepository{subjectErr: gorm.ErrRecordNotFound}, time.Now())
	_, err := svc.CanAcceptRide(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	svc = newTestService(t, &fakeRepository{subjectErr: errors.New("conn reset")}, time.Now())
	_, err = svc.CanAcceptRide(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal, got %v", err)
	}
}

func TestIncrementUsageUsesCurrentMonth(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo, time.Date(2026, 12, 31, 23, 30, 0, 0, time.UTC))

	if err := svc.IncrementUsage(context.Background(), uuid.New(), enums.UsageAccepted); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if len(repo.incremented) != 1 || repo.incremented[0] != "2027-01:accepted" {
		t.Fatalf("unexpected increments %v", repo.incremented)
	}
	if err := svc.IncrementUsage(context.Background(), uuid.New(), enums.UsageKind("x")); err == nil {
		t.Fatal("expected invalid kind error")
	}
}

func TestAccrueReferralBonus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	referrer, referred := uuid.New(), uuid.New()

	t.Run("free referrer earns bonus", func(t *testing.T) {
		repo := &fakeRepository{subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusFree)}}
		created, err := newTestService(t, repo, now).AccrueReferralBonus(context.Background(), referrer, referred)
		if err != nil || !created {
			t.Fatalf("expected bonus created, got %v %v", created, err)
		}
		bonus := repo.bonusCalls[0]
		if bonus.BonusRides != 3 || bonus.MonthEarned != "2026-03" || bonus.ReferrerID != referrer || bonus.ReferredID != referred {
			t.Fatalf("unexpected bonus %+v", bonus)
		}
	})

	t.Run("duplicate pair is ignored", func(t *testing.T) {
		repo := &fakeRepository{bonusExists: true}
		created, err := newTestService(t, repo, now).AccrueReferralBonus(context.Background(), referrer, referred)
		if err != nil || created {
			t.Fatalf("expected no new bonus, got %v %v", created, err)
		}
	})

	t.Run("subscribed referrer earns nothing", func(t *testing.T) {
		repo := &fakeRepository{subject: &QuotaSubject{SubscriptionStatus: statusPtr(enums.SubscriptionStatusActive)}}
		created, err := newTestService(t, repo, now).AccrueReferralBonus(context.Background(), referrer, referred)
		if err != nil || created || len(repo.bonusCalls) != 0 {
			t.Fatalf("expected no bonus for subscribed referrer, got %v %v", created, err)
		}
	})

	t.Run("self referral rejected", func(t *testing.T) {
		_, err := newTestService(t, &fakeRepository{}, now).AccrueReferralBonus(context.Background(), referrer, referrer)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestSnapshot(t *testing.T) {
	repo := &fakeRepository{accepted: 2, bonus: 3}
	snap, err := newTestService(t, repo, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)).Snapshot(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Month != "2026-03" || snap.AcceptedCount != 2 || snap.BonusRides != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Quota.Remaining == nil || *snap.Quota.Remaining != 6 {
		t.Fatalf("expected 6 remaining, got %v", snap.Quota.Remaining)
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
