package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model of the users table
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	Contact      string    `bun:"contact,notnull"`
	Address      string    `bun:"address,notnull"`
	Role         string    `bun:"role,notnull,default:'user'"`
	PasswordHash string    `bun:"password_hash,notnull"`

	ResetCodeHash       *string    `bun:"reset_code_hash"`
	ResetCodeExpiresAt  *time.Time `bun:"reset_code_expires_at"`
	ResetCodeAttempts   int        `bun:"reset_code_attempts,notnull,default:0"`
	ResetTokenHash      *string    `bun:"reset_token_hash"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at"`
	ResetLastSentAt     *time.Time `bun:"reset_last_sent_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
