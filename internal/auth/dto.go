package auth

import (
	"github.com/courseshare/courseshare-backend/internal/ledger"
	"github.com/courseshare/courseshare-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a driver account.
type RegisterRequest struct {
	FirstName    string  `json:"first_name" validate:"required,max=100"`
	LastName     string  `json:"last_name" validate:"required,max=100"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8,max=128"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Department   string  `json:"department" validate:"required,department"`
	ReferralCode *string `json:"referral_code,omitempty" validate:"omitempty,len=8,alphanum"`
}

// LoginResponse contains the access token and the authenticated user.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	User        *users.UserDTO `json:"user"`
}

// MeResponse is the caller's profile plus this month's quota and usage counters.
type MeResponse struct {
	User  *users.UserDTO        `json:"user"`
	Usage *ledger.UsageSnapshot `json:"usage"`
}
