package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/wheels-api/internal/database"
)

// Repository is the PostgreSQL credential store
type Repository struct {
	db *bun.DB
}

var _ Store = (*Repository)(nil)

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, u *User) error {
	dbUser := &database.User{
		Name:         u.Name,
		Email:        NormalizeEmail(u.Email),
		Contact:      u.Contact,
		Address:      u.Address,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
	}
	if dbUser.Role == "" {
		dbUser.Role = RoleUser
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	*u = *mapDBUserToModel(dbUser)
	return nil
}

// GetByEmail retrieves a user by normalized email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email", "email = ?", NormalizeEmail(email))
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "get user by id", "id = ?", id)
}

// GetByResetTokenHash retrieves the user holding a reset token digest
func (r *Repository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	return r.getOne(ctx, "get user by reset token", "reset_token_hash = ?", tokenHash)
}

func (r *Repository) getOne(ctx context.Context, op, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateRecoveryByEmail overwrites the recovery columns of a user
func (r *Repository) UpdateRecoveryByEmail(ctx context.Context, email string, rec Recovery) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_code_hash = ?", rec.CodeHash).
		Set("reset_code_expires_at = ?", rec.CodeExpiresAt).
		Set("reset_code_attempts = ?", rec.CodeAttempts).
		Set("reset_token_hash = ?", rec.TokenHash).
		Set("reset_token_expires_at = ?", rec.TokenExpiresAt).
		Set("reset_last_sent_at = ?", rec.LastSentAt).
		Set("updated_at = NOW()").
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update recovery state: %w", err)
	}

	return checkAffected(result)
}

// IncrementCodeAttempts bumps the attempt counter in place while it is below limit
func (r *Repository) IncrementCodeAttempts(ctx context.Context, email string, limit int) error {
	email = NormalizeEmail(email)
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_code_attempts = reset_code_attempts + 1").
		Set("updated_at = NOW()").
		Where("email = ?", email).
		Where("reset_code_attempts < ?", limit).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to increment reset code attempts: %w", err)
	}

	if err := checkAffected(result); !errors.Is(err, ErrNotFound) {
		return err
	}

	// nothing matched: either the account is gone or the limit was reached
	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAttemptsExhausted
}

// UpdatePasswordByID updates a user's password hash and clears recovery state
func (r *Repository) UpdatePasswordByID(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_code_hash = NULL").
		Set("reset_code_expires_at = NULL").
		Set("reset_code_attempts = 0").
		Set("reset_token_hash = NULL").
		Set("reset_token_expires_at = NULL").
		Set("reset_last_sent_at = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return checkAffected(result)
}

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict
const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Name:         dbu.Name,
		Email:        dbu.Email,
		Contact:      dbu.Contact,
		Address:      dbu.Address,
		Role:         dbu.Role,
		PasswordHash: dbu.PasswordHash,
		Recovery: Recovery{
			CodeHash:       dbu.ResetCodeHash,
			CodeExpiresAt:  dbu.ResetCodeExpiresAt,
			CodeAttempts:   dbu.ResetCodeAttempts,
			TokenHash:      dbu.ResetTokenHash,
			TokenExpiresAt: dbu.ResetTokenExpiresAt,
			LastSentAt:     dbu.ResetLastSentAt,
		},
		CreatedAt: dbu.CreatedAt,
		UpdatedAt: dbu.UpdatedAt,
	}
}
