package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrAttemptsExhausted is returned when the code attempt counter has
	// already reached the requested limit
	ErrAttemptsExhausted = errors.New("reset code attempts exhausted")
)

// Store is the credential store shared by the auth and recovery services.
// Updates are last-writer-wins on the whole account; there is no optimistic
// concurrency.
type Store interface {
	// Create inserts u and fills in its ID and timestamps
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)
	// UpdateRecoveryByEmail overwrites all recovery fields of the account
	UpdateRecoveryByEmail(ctx context.Context, email string, rec Recovery) error
	// IncrementCodeAttempts adds one to the code attempt counter in a single
	// conditional write, only while the counter is below limit
	IncrementCodeAttempts(ctx context.Context, email string, limit int) error
	// UpdatePasswordByID stores a new password hash and clears every recovery field
	UpdatePasswordByID(ctx context.Context, id uuid.UUID, passwordHash string) error
}
