package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
)

func TestNewBunDB(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewBunDB(sqlDB)
	assert.Equal(t, dialect.PG, db.Dialect().Name())

	// queries go through the wrapped connection with arguments inlined
	mock.ExpectQuery(`^SELECT 1 WHERE \('a' = 'a'\)$`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))

	var one int
	require.NoError(t, db.QueryRow("SELECT 1 WHERE (? = ?)", "a", "a").Scan(&one))
	assert.Equal(t, 1, one)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)

		content := string(body)
		assert.Contains(t, content, "-- +goose Up", name)
		assert.Contains(t, content, "-- +goose Down", name)
	}

	body, err := fs.ReadFile(migrations, "migrations/00001_create_users.sql")
	require.NoError(t, err)
	for _, column := range []string{"reset_code_hash", "reset_code_attempts", "reset_token_hash", "reset_last_sent_at"} {
		assert.True(t, strings.Contains(string(body), column), column)
	}
}
