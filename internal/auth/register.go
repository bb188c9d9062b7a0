package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/internal/billing"
	"github.com/courseshare/courseshare-backend/internal/users"
	"github.com/courseshare/courseshare-backend/pkg/db"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/security"
	"github.com/courseshare/courseshare-backend/pkg/validation"
)

const referralCodeAttempts = 5

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	req = normalizeRegister(req)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, req.Email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		var referrerID *uuid.UUID
		if req.ReferralCode != nil {
			referrer, err := userRepo.FindByReferralCode(ctx, *req.ReferralCode)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown referral code").
					WithDetails(map[string]string{"referral_code": "unknown referral code"})
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup referral code")
			}
			referrerID = &referrer.ID
		}

		code, err := uniqueReferralCode(ctx, userRepo)
		if err != nil {
			return err
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        req.Email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			Department:   req.Department,
			Role:         enums.UserRoleDriver,
			ReferralCode: code,
			ReferredBy:   referrerID,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "users_email_key") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if err := billing.NewRepository(tx).CreateSubscription(ctx, &models.Subscription{
			UserID: user.ID,
			Status: enums.SubscriptionStatusFree,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}

		if referrerID != nil {
			accrued, err := s.ledger.WithTx(tx).AccrueReferralBonus(ctx, *referrerID, user.ID)
			if err != nil {
				return err
			}
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"referrer_id": referrerID.String(),
				"accrued":     accrued,
			}), "auth.referral_applied")
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, created.ID.String()), "auth.registered")
	return s.issue(created, s.now())
}

func uniqueReferralCode(ctx context.Context, repo *users.Repository) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := security.GenerateReferralCode()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate referral code")
		}
		taken, err := repo.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check referral code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a referral code")
}

func normalizeRegister(req RegisterRequest) RegisterRequest {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Department = strings.ToUpper(strings.TrimSpace(req.Department))
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			req.Phone = nil
		} else {
			req.Phone = &phone
		}
	}
	if req.ReferralCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.ReferralCode))
		if code == "" {
			req.ReferralCode = nil
		} else {
			req.ReferralCode = &code
		}
	}
	return req
}
