package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/staffora/staffora/internal/rbac"
	"github.com/staffora/staffora/internal/shared"
)

// OTPNotifier hands a freshly issued code to the delivery pipeline.
type OTPNotifier interface {
	DeliverOTP(ctx context.Context, delivery OTPDelivery) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenManager
	otp      *OTPStore
	notifier OTPNotifier
	logger   *slog.Logger
}

// NewService constructs a new Service. otp and notifier may be nil when
// one-time codes are disabled.
func NewService(repo Repository, tokens *TokenManager, otp *OTPStore, notifier OTPNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, otp: otp, notifier: notifier, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("auth lookup", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken signs an access token for user.
func (s *Service) IssueToken(user *User) (Token, error) {
	return s.tokens.Issue(user.Subject())
}

// ResolveSubject verifies an access token and returns its subject.
func (s *Service) ResolveSubject(ctx context.Context, token string) (rbac.Subject, error) {
	return s.tokens.Parse(token)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// RequestOTP starts a one-time code login. Unknown or inactive accounts get a
// challenge that can never verify, so callers cannot probe for emails.
func (s *Service) RequestOTP(ctx context.Context, email string) (string, error) {
	if s.otp == nil {
		return "", errors.New("otp login disabled")
	}
	email = strings.TrimSpace(email)
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil || !user.IsActive {
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", err
		}
		return uuid.NewString(), nil
	}

	challengeID, code, err := s.otp.Create(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if s.notifier != nil {
		delivery := OTPDelivery{ChallengeID: challengeID, UserID: user.ID, Email: user.Email, Code: code}
		if err := s.notifier.DeliverOTP(ctx, delivery); err != nil {
			return "", fmt.Errorf("enqueue otp delivery: %w", err)
		}
	}
	s.logger.Info("otp issued", slog.Int64("user_id", user.ID), slog.String("challenge_id", challengeID))
	return challengeID, nil
}

// VerifyOTP completes a one-time code login and issues a token.
func (s *Service) VerifyOTP(ctx context.Context, challengeID, code string) (*User, Token, error) {
	if s.otp == nil {
		return nil, Token{}, ErrOTPInvalid
	}
	userID, err := s.otp.Verify(ctx, challengeID, code)
	if err != nil {
		return nil, Token{}, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, Token{}, ErrOTPInvalid
		}
		return nil, Token{}, err
	}
	if !user.IsActive {
		return nil, Token{}, ErrOTPInvalid
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, Token{}, err
	}
	return user, token, nil
}
