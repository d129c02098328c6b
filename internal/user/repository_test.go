package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/wheels-api/internal/database"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db := database.NewBunDB(sqlDB)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewRepository(db), mock
}

var userColumns = []string{"id", "email", "role", "password_hash", "reset_code_attempts", "created_at", "updated_at"}

func TestRepository_Create(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^INSERT INTO "users" .*'sam@example\.com'.*RETURNING \*`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "sam@example.com", "user", "hash", int64(0), now, now))

	u := &User{Name: "Sam Driver", Email: " Sam@Example.com ", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))

	assert.Equal(t, id, u.ID)
	assert.Equal(t, "sam@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, now.Equal(u.CreatedAt))
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^INSERT INTO "users" `).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "users_email_key"`})

	err := repo.Create(context.Background(), &User{Email: "sam@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRepository_CreateOtherError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^INSERT INTO "users" `).
		WillReturnError(&pq.Error{Code: "23514", Message: "check constraint violated"})

	err := repo.Create(context.Background(), &User{Email: "sam@example.com", PasswordHash: "hash"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestRepository_GetByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT .* FROM "users" AS "u" WHERE \(email = 'sam@example\.com'\) LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "sam@example.com", "admin", "hash", int64(2), now, now))

	got, err := repo.GetByEmail(context.Background(), "SAM@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, 2, got.Recovery.CodeAttempts)
	assert.Equal(t, PhaseNone, got.Recovery.Phase())
}

func TestRepository_GetByEmailNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT .* FROM "users" AS "u" WHERE`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_GetByResetTokenHashDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT .* WHERE \(reset_token_hash = 'digest'\)`).
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByResetTokenHash(context.Background(), "digest")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "db down")
}

func TestRepository_UpdateRecoveryByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	digest := "code-digest"

	mock.ExpectExec(`(?s)^UPDATE "users" AS "u" SET reset_code_hash = 'code-digest', .*reset_code_attempts = 0, reset_token_hash = NULL, .*WHERE \(email = 'sam@example\.com'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRecoveryByEmail(context.Background(), "sam@example.com", Recovery{
		CodeHash:      &digest,
		CodeExpiresAt: &exp,
		LastSentAt:    &exp,
	})
	assert.NoError(t, err)
}

func TestRepository_UpdateRecoveryUnknownEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^UPDATE "users" `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRecoveryByEmail(context.Background(), "ghost@example.com", Recovery{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_IncrementCodeAttempts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE "users" AS "u" SET reset_code_attempts = reset_code_attempts \+ 1, updated_at = NOW\(\) WHERE \(email = 'sam@example\.com'\) AND \(reset_code_attempts < 5\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.IncrementCodeAttempts(context.Background(), "Sam@example.com", 5))
}

func TestRepository_IncrementCodeAttemptsAtLimit(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`reset_code_attempts < 5`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)^SELECT EXISTS \(SELECT .* FROM "users" AS "u" WHERE \(email = 'sam@example\.com'\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.IncrementCodeAttempts(context.Background(), "sam@example.com", 5)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestRepository_IncrementCodeAttemptsUnknownEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`reset_code_attempts < 5`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`^SELECT EXISTS `).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.IncrementCodeAttempts(context.Background(), "ghost@example.com", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_UpdatePasswordByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`(?s)^UPDATE "users" AS "u" SET password_hash = 'new-hash', reset_code_hash = NULL, reset_code_expires_at = NULL, reset_code_attempts = 0, reset_token_hash = NULL, reset_token_expires_at = NULL, reset_last_sent_at = NULL, .*WHERE \(id = '` + id.String() + `'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdatePasswordByID(context.Background(), id, "new-hash"))
}

func TestRepository_UpdatePasswordUnknownID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^UPDATE "users" `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePasswordByID(context.Background(), uuid.New(), "new-hash")
	assert.ErrorIs(t, err, ErrNotFound)
}
