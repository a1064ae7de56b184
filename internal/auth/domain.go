package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/staffora/staffora/internal/rbac"
)

var (
	// ErrTokenInvalid indicates a malformed, expired or forged access token.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrOTPInvalid indicates an unknown challenge or a wrong code.
	ErrOTPInvalid = errors.New("auth: invalid otp")
	// ErrOTPLocked indicates the challenge exhausted its attempts.
	ErrOTPLocked = errors.New("auth: otp attempts exhausted")
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Phone        string
	PasswordHash string
	IsActive     bool
	RoleID       string
	DepartmentID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject converts the account into the authorization principal.
func (u User) Subject() rbac.Subject {
	subject := rbac.Subject{UserID: strconv.FormatInt(u.ID, 10), RoleID: u.RoleID}
	if u.DepartmentID != nil {
		subject.DepartmentID = strconv.FormatInt(*u.DepartmentID, 10)
	}
	return subject
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OTPDelivery is the payload handed to the delivery job.
type OTPDelivery struct {
	ChallengeID string `json:"challenge_id"`
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Code        string `json:"code"`
}
