package recovery

import (
	"errors"
	"fmt"
)

// ErrValidation matches every input validation failure via errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationError is a caller mistake reported with HTTP 400
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

var (
	ErrEmailRequired           = &ValidationError{"email is required"}
	ErrCodeRequired            = &ValidationError{"verification code is required"}
	ErrTokenRequired           = &ValidationError{"reset token is required"}
	ErrPasswordRequired        = &ValidationError{"new password is required"}
	ErrCurrentPasswordRequired = &ValidationError{"current password is required"}
	ErrPasswordTooShort        = &ValidationError{"password must be at least 6 characters"}
	ErrPasswordUnchanged       = &ValidationError{"new password must be different from the current password"}
)

var (
	ErrInvalidCode            = errors.New("invalid verification code")
	ErrCodeExpired            = errors.New("verification code has expired")
	ErrTooManyAttempts        = errors.New("too many attempts, please request a new code")
	ErrInvalidOrExpiredToken  = errors.New("invalid or expired reset token")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrConfiguration          = errors.New("email service is not configured")
)

// configurationError keeps the underlying send failure inspectable
func configurationError(cause error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, cause)
}
