package recovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/wheels-api/internal/events"
	"github.com/redmonkez12/wheels-api/internal/logging"
	"github.com/redmonkez12/wheels-api/internal/password"
	"github.com/redmonkez12/wheels-api/internal/user"
)

const (
	Cooldown    = 60 * time.Second
	CodeTTL     = 10 * time.Minute
	TokenTTL    = 15 * time.Minute
	MaxAttempts = 5

	publishTimeout = 2 * time.Second
)

// Notifier delivers the plaintext code to the account holder
type Notifier interface {
	SendResetCode(ctx context.Context, toEmail, code string) error
}

// PasswordHasher hashes new passwords and checks current ones
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// SessionRevoker ends every outstanding session of an account
type SessionRevoker interface {
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// RequestResult tells the client how long to wait before asking again
type RequestResult struct {
	CooldownSeconds int `json:"cooldownSeconds"`
}

// Service runs the password recovery state machine:
// none -> code issued -> token issued -> none
type Service struct {
	store     user.Store
	secrets   Secrets
	notifier  Notifier
	hasher    PasswordHasher
	sessions  SessionRevoker
	publisher events.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(
	store user.Store,
	secrets Secrets,
	notifier Notifier,
	hasher PasswordHasher,
	sessions SessionRevoker,
	publisher events.Publisher,
	logger *logging.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		store:     store,
		secrets:   secrets,
		notifier:  notifier,
		hasher:    hasher,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestReset issues a fresh code and mails it. Unknown emails get the same
// answer as known ones so the endpoint cannot be used to probe accounts.
func (s *Service) RequestReset(ctx context.Context, email string) (*RequestResult, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	email = user.NormalizeEmail(email)
	if email == "" {
		return &RequestResult{CooldownSeconds: cooldownSeconds()}, nil
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			logger.Debug("password reset requested for unknown email")
			return &RequestResult{CooldownSeconds: cooldownSeconds()}, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	now := s.now()
	if remaining, active := cooldownRemaining(account.Recovery.LastSentAt, now); active {
		logger.Info("password reset requested during cooldown", "user_id", account.ID, "remaining_seconds", remaining)
		return &RequestResult{CooldownSeconds: remaining}, nil
	}

	code, err := s.secrets.NewCode()
	if err != nil {
		return nil, err
	}

	codeHash := Digest(code)
	expiresAt := now.Add(CodeTTL)
	rec := user.Recovery{
		CodeHash:      &codeHash,
		CodeExpiresAt: &expiresAt,
		CodeAttempts:  0,
		LastSentAt:    &now,
	}
	if err := s.store.UpdateRecoveryByEmail(ctx, email, rec); err != nil {
		return nil, fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.notifier.SendResetCode(ctx, account.Email, code); err != nil {
		logger.Error("failed to deliver reset code", "user_id", account.ID, "error", err)
		return nil, configurationError(err)
	}

	logger.Info("reset code issued", "user_id", account.ID)
	s.publish(ctx, events.TypePasswordResetRequested, account)

	return &RequestResult{CooldownSeconds: cooldownSeconds()}, nil
}

// VerifyCode exchanges a valid code for a single-use reset token
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	email = user.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return "", ErrEmailRequired
	}
	if code == "" {
		return "", ErrCodeRequired
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	rec := account.Recovery
	if !rec.HasActiveCode() {
		return "", ErrInvalidCode
	}
	if rec.CodeAttempts >= MaxAttempts {
		logger.Warn("reset code locked after too many attempts", "user_id", account.ID)
		return "", ErrTooManyAttempts
	}

	now := s.now()
	if isExpired(*rec.CodeExpiresAt, now) {
		return "", ErrCodeExpired
	}

	// reserve the attempt before comparing; the store refuses it at the limit
	if err := s.store.IncrementCodeAttempts(ctx, email, MaxAttempts); err != nil {
		switch {
		case errors.Is(err, user.ErrAttemptsExhausted):
			logger.Warn("reset code locked after too many attempts", "user_id", account.ID)
			return "", ErrTooManyAttempts
		case errors.Is(err, user.ErrNotFound):
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("failed to record attempt: %w", err)
	}

	if !digestMatches(code, *rec.CodeHash) {
		logger.Warn("invalid reset code", "user_id", account.ID, "attempts", rec.CodeAttempts+1)
		return "", ErrInvalidCode
	}

	token, err := s.secrets.NewToken()
	if err != nil {
		return "", err
	}

	tokenHash := Digest(token)
	tokenExpiresAt := now.Add(TokenTTL)
	next := user.Recovery{
		TokenHash:      &tokenHash,
		TokenExpiresAt: &tokenExpiresAt,
		LastSentAt:     rec.LastSentAt,
	}
	if err := s.store.UpdateRecoveryByEmail(ctx, email, next); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	logger.Info("reset code verified", "user_id", account.ID)
	s.publish(ctx, events.TypeResetCodeVerified, account)

	return token, nil
}

// ResetPassword sets a new password for the holder of a valid reset token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	logger := logging.FromContextOr(ctx, s.logger)

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenRequired
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if tooShort(newPassword) {
		return ErrPasswordTooShort
	}

	account, err := s.store.GetByResetTokenHash(ctx, Digest(token))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to get user by reset token: %w", err)
	}

	exp := account.Recovery.TokenExpiresAt
	if exp == nil || isExpired(*exp, s.now()) {
		return ErrInvalidOrExpiredToken
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	logger.Info("password reset completed", "user_id", account.ID)
	s.afterPasswordChange(ctx, account, events.TypePasswordResetCompleted)

	return nil
}

// ChangePassword replaces the password of an authenticated account
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	logger := logging.FromContextOr(ctx, s.logger)

	if currentPassword == "" {
		return ErrCurrentPasswordRequired
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if newPassword == currentPassword {
		return ErrPasswordUnchanged
	}
	if tooShort(newPassword) {
		return ErrPasswordTooShort
	}

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Verify(account.PasswordHash, currentPassword)
	if err != nil {
		return fmt.Errorf("failed to verify current password: %w", err)
	}
	if !ok {
		logger.Warn("change password rejected: wrong current password", "user_id", account.ID)
		return ErrInvalidCurrentPassword
	}

	if err := s.setPassword(ctx, account, newPassword); err != nil {
		return err
	}

	logger.Info("password changed", "user_id", account.ID)
	s.afterPasswordChange(ctx, account, events.TypePasswordChanged)

	return nil
}

func (s *Service) setPassword(ctx context.Context, account *user.User, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.UpdatePasswordByID(ctx, account.ID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// afterPasswordChange ends existing sessions and announces the change. Both
// steps are best effort; the password is already stored.
func (s *Service) afterPasswordChange(ctx context.Context, account *user.User, eventType string) {
	if s.sessions != nil {
		if err := s.sessions.RevokeAllUserTokens(ctx, account.ID); err != nil {
			logging.FromContextOr(ctx, s.logger).Warn("failed to revoke sessions after password change",
				"user_id", account.ID, "error", err)
		}
	}

	s.publish(ctx, eventType, account)
}

func (s *Service) publish(ctx context.Context, eventType string, account *user.User) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	event := events.Event{
		Type:       eventType,
		AccountID:  account.ID,
		Email:      account.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		logging.FromContextOr(ctx, s.logger).Warn("failed to publish security event",
			"type", eventType, "user_id", account.ID, "error", err)
	}
}

// isExpired treats the exact expiry instant as expired
func isExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

func tooShort(pw string) bool {
	return utf8.RuneCountInString(pw) < password.MinLength
}

func cooldownSeconds() int {
	return int(Cooldown / time.Second)
}

// cooldownRemaining returns the whole seconds left, rounded up, while a code
// sent at lastSentAt still blocks a new one
func cooldownRemaining(lastSentAt *time.Time, now time.Time) (int, bool) {
	if lastSentAt == nil {
		return 0, false
	}

	elapsed := now.Sub(*lastSentAt)
	if elapsed >= Cooldown {
		return 0, false
	}

	remaining := int(math.Ceil((Cooldown - elapsed).Seconds()))
	remaining = max(remaining, 1)
	remaining = min(remaining, cooldownSeconds())

	return remaining, true
}
