package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Contact      string    `json:"contact"`
	Address      string    `json:"address"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Recovery     Recovery  `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Phase is the account's position in the password recovery cycle
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCodeIssued
	PhaseTokenIssued
)

func (p Phase) String() string {
	switch p {
	case PhaseCodeIssued:
		return "code_issued"
	case PhaseTokenIssued:
		return "token_issued"
	default:
		return "none"
	}
}

// Recovery is the password recovery state of an account. A nil pointer means
// the field is absent. At most one of CodeHash and TokenHash is set.
type Recovery struct {
	CodeHash       *string
	CodeExpiresAt  *time.Time
	CodeAttempts   int
	TokenHash      *string
	TokenExpiresAt *time.Time
	// LastSentAt is only written when a code is issued and survives the
	// code -> token transition.
	LastSentAt *time.Time
}

// Phase derives the recovery phase from which hash is present
func (r Recovery) Phase() Phase {
	switch {
	case r.TokenHash != nil:
		return PhaseTokenIssued
	case r.CodeHash != nil:
		return PhaseCodeIssued
	default:
		return PhaseNone
	}
}

// HasActiveCode reports whether a code hash and its expiry are both stored
func (r Recovery) HasActiveCode() bool {
	return r.CodeHash != nil && r.CodeExpiresAt != nil
}

// NormalizeEmail trims and lower-cases an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
