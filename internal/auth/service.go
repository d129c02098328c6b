package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/wheels-api/internal/logging"
	"github.com/redmonkez12/wheels-api/internal/password"
	"github.com/redmonkez12/wheels-api/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError describes a rejected signup field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// SignupInput is the public signup form. Role is never taken from it.
type SignupInput struct {
	Name            string
	Email           string
	Contact         string
	Address         string
	Password        string
	ConfirmPassword string
}

// Service handles authentication business logic
type Service struct {
	users                user.Store
	refreshTokens        RefreshTokenRepository
	tokens               TokenService
	hasher               PasswordHasher
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

func NewService(
	users user.Store,
	refreshTokens RefreshTokenRepository,
	tokens TokenService,
	hasher PasswordHasher,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		users:                users,
		refreshTokens:        refreshTokens,
		tokens:               tokens,
		hasher:               hasher,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// Signup creates a new account with the user role
func (s *Service) Signup(ctx context.Context, in SignupInput) (*user.User, error) {
	if err := validateSignup(&in); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &user.User{
		Name:         in.Name,
		Email:        in.Email,
		Contact:      in.Contact,
		Address:      in.Address,
		Role:         user.RoleUser,
		PasswordHash: passwordHash,
	}
	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

func validateSignup(in *SignupInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = user.NormalizeEmail(in.Email)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Address = strings.TrimSpace(in.Address)

	switch {
	case utf8.RuneCountInString(in.Name) < 2:
		return &ValidationError{Field: "name", Message: "Name must be at least 2 characters"}
	case !validEmail(in.Email):
		return &ValidationError{Field: "email", Message: "Invalid email address"}
	case len(in.Contact) < 10:
		return &ValidationError{Field: "contact", Message: "Contact number must be at least 10 digits"}
	case utf8.RuneCountInString(in.Address) < 5:
		return &ValidationError{Field: "address", Message: "Address must be at least 5 characters"}
	case utf8.RuneCountInString(in.Password) < password.MinLength:
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	case in.Password != in.ConfirmPassword:
		return &ValidationError{Field: "confirmPassword", Message: "Passwords don't match"}
	}

	return nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Login authenticates a user and returns the account with a fresh session
func (s *Service) Login(ctx context.Context, email, pw string) (*user.User, *AuthTokens, error) {
	if strings.TrimSpace(email) == "" || pw == "" {
		return nil, nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Verify(existingUser.PasswordHash, pw)
	if err != nil {
		logging.FromContextOr(ctx, s.logger).Error("stored password hash is unreadable",
			"user_id", existingUser.ID, "error", err)
		return nil, nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokens(ctx, existingUser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return existingUser, tokens, nil
}

// Me returns the account behind an authenticated request
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// RefreshAccessToken rotates a refresh token into a new token pair
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	rt, err := s.refreshTokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if rt.IsRevoked() {
		return nil, ErrRefreshTokenRevoked
	}
	if rt.IsExpired() {
		return nil, ErrRefreshTokenExpired
	}

	// Revoke old refresh token before issuing new ones to prevent reuse
	if err := s.refreshTokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	existingUser, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return s.generateTokens(ctx, existingUser)
}

// RevokeRefreshToken revokes a refresh token
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.refreshTokens.RevokeRefreshToken(ctx, refreshToken)
}

// generateTokens creates both access and refresh tokens
func (s *Service) generateTokens(ctx context.Context, u *user.User) (*AuthTokens, error) {
	accessToken, err := s.tokens.CreateToken(u.ID, u.Email, u.Role, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.refreshTokenDuration)
	if err := s.refreshTokens.StoreRefreshToken(ctx, u.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenDuration.Seconds()),
	}, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
