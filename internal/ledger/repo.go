package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// QuotaSubject is everything the quota decision reads about a user.
type QuotaSubject struct {
	IsPriority         bool
	SubscriptionStatus *enums.SubscriptionStatus
	PlanID             *string
	PlanRideLimit      *int
}

// Repository manages persistence for monthly usage and referral bonuses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, userID uuid.UUID, month string, kind enums.UsageKind) error
	GetMonth(ctx context.Context, userID uuid.UUID, month string) (*models.UsageLedger, error)
	SumReferralBonus(ctx context.Context, referrerID uuid.UUID) (int, error)
	CreateReferralBonus(ctx context.Context, bonus *models.ReferralBonus) (bool, error)
	FindQuotaSubject(ctx context.Context, userID uuid.UUID) (*QuotaSubject, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Increment upserts the (user, month) row and bumps one counter in a single statement.
func (r *repository) Increment(ctx context.Context, userID uuid.UUID, month string, kind enums.UsageKind) error {
	column, ok := kind.Column()
	if !ok {
		return fmt.Errorf("invalid usage kind %q", kind)
	}

	row := models.UsageLedger{UserID: userID, Month: month}
	switch kind {
	case enums.UsagePublished:
		row.PublishedCount = 1
	case enums.UsageAccepted:
		row.AcceptedCount = 1
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]any{
				column:       gorm.Expr(fmt.Sprintf("%s.%s + 1", row.TableName(), column)),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&row).Error
}

// GetMonth returns the counters for the month, or a zero row when none exists yet.
func (r *repository) GetMonth(ctx context.Context, userID uuid.UUID, month string) (*models.UsageLedger, error) {
	var row models.UsageLedger
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UsageLedger{UserID: userID, Month: month}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SumReferralBonus(ctx context.Context, referrerID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.ReferralBonus{}).
		Where("referrer_id = ?", referrerID).
		Select("COALESCE(SUM(bonus_rides), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// CreateReferralBonus inserts the bonus unless the (referrer, referred) pair already
// has one. It reports whether a row was created.
func (r *repository) CreateReferralBonus(ctx context.Context, bonus *models.ReferralBonus) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referrer_id"}, {Name: "referred_id"}},
			DoNothing: true,
		}).
		Create(bonus)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindQuotaSubject(ctx context.Context, userID uuid.UUID) (*QuotaSubject, error) {
	var rows []struct {
		IsPriority bool
		Status     *string
		PlanID     *string
		RideLimit  *int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.is_priority AS is_priority, s.status AS status, s.plan_id AS plan_id, p.ride_limit AS ride_limit
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		LEFT JOIN billing_plans p ON p.id = s.plan_id
		WHERE u.id = ?`, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	subject := &QuotaSubject{
		IsPriority:    rows[0].IsPriority,
		PlanID:        rows[0].PlanID,
		PlanRideLimit: rows[0].RideLimit,
	}
	if rows[0].Status != nil {
		status := enums.SubscriptionStatus(*rows[0].Status)
		subject.SubscriptionStatus = &status
	}
	return subject, nil
}
