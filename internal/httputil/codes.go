package httputil

// Machine-readable error codes carried in the response envelope
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeNotFound           = "NOT_FOUND"

	// authentication
	CodeMissingAuth         = "MISSING_AUTH"
	CodeInvalidAuthHeader   = "INVALID_AUTH_HEADER"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID  = "INVALID_TOKEN_USER_ID"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"

	// signup
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"

	// password recovery
	CodeEmailRequired           = "EMAIL_REQUIRED"
	CodeCodeRequired            = "CODE_REQUIRED"
	CodeTokenRequired           = "RESET_TOKEN_REQUIRED"
	CodePasswordRequired        = "PASSWORD_REQUIRED"
	CodePasswordTooShort        = "PASSWORD_TOO_SHORT"
	CodePasswordUnchanged       = "PASSWORD_UNCHANGED"
	CodeInvalidCode             = "INVALID_CODE"
	CodeCodeExpired             = "CODE_EXPIRED"
	CodeTooManyAttempts         = "TOO_MANY_ATTEMPTS"
	CodeInvalidResetToken       = "INVALID_RESET_TOKEN"
	CodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	CodeInvalidCurrentPassword  = "INVALID_CURRENT_PASSWORD"
	CodeEmailServiceUnavailable = "EMAIL_NOT_CONFIGURED"
)
