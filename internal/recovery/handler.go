package recovery

import (
	"errors"
	"net/http"

	"github.com/redmonkez12/wheels-api/internal/auth"
	"github.com/redmonkez12/wheels-api/internal/httputil"
	"github.com/redmonkez12/wheels-api/internal/logging"
)

// Handler exposes the recovery flow over HTTP
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// VerifyResetCodeRequest represents the code verification request
type VerifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordRequest represents an authenticated password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// VerifyResetCodeResult carries the single-use reset token
type VerifyResetCodeResult struct {
	ResetToken string `json:"resetToken"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins
var errorMappings = []errorMapping{
	{ErrEmailRequired, http.StatusBadRequest, httputil.CodeEmailRequired},
	{ErrCodeRequired, http.StatusBadRequest, httputil.CodeCodeRequired},
	{ErrTokenRequired, http.StatusBadRequest, httputil.CodeTokenRequired},
	{ErrPasswordRequired, http.StatusBadRequest, httputil.CodePasswordRequired},
	{ErrCurrentPasswordRequired, http.StatusBadRequest, httputil.CodePasswordRequired},
	{ErrPasswordTooShort, http.StatusBadRequest, httputil.CodePasswordTooShort},
	{ErrPasswordUnchanged, http.StatusBadRequest, httputil.CodePasswordUnchanged},
	{ErrInvalidCode, http.StatusUnauthorized, httputil.CodeInvalidCode},
	{ErrCodeExpired, http.StatusUnauthorized, httputil.CodeCodeExpired},
	{ErrTooManyAttempts, http.StatusTooManyRequests, httputil.CodeTooManyAttempts},
	{ErrInvalidOrExpiredToken, http.StatusUnauthorized, httputil.CodeInvalidResetToken},
	{ErrInvalidCurrentPassword, http.StatusUnauthorized, httputil.CodeInvalidCurrentPassword},
	{ErrAccountNotFound, http.StatusNotFound, httputil.CodeAccountNotFound},
	{ErrConfiguration, http.StatusInternalServerError, httputil.CodeEmailServiceUnavailable},
}

func respondServiceError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error(op+" failed", "error", err.Error())
			} else {
				logger.Warn(op+" failed", "reason", m.err.Error())
			}
			httputil.RespondErrorWithCode(w, m.err.Error(), m.code, m.status)
			return
		}
	}

	logger.Error(op+" failed: internal error", "error", err.Error())
	httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}

func respondInvalidBody(w http.ResponseWriter, logger *logging.Logger, err error) {
	logger.Warn("invalid request body", "error", err.Error())
	httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset code
// @Description  Mail a 6-digit code to the account. Unknown emails get the same response.
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} httputil.Response{data=RequestResult}
// @Failure      429 {object} httputil.Response "Too many requests"
// @Failure      500 {object} httputil.Response "Email service not configured"
// @Router       /api/auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	result, err := h.service.RequestReset(r.Context(), req.Email)
	if err != nil {
		respondServiceError(w, logger, "forgot password", err)
		return
	}

	httputil.RespondSuccess(w, "If the email exists, a verification code has been sent", result, http.StatusOK)
}

// VerifyResetCode exchanges a code for a reset token
// @Summary      Verify reset code
// @Description  Exchange a valid code for a reset token that expires in 15 minutes
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        request body VerifyResetCodeRequest true "Email and code"
// @Success      200 {object} httputil.Response{data=VerifyResetCodeResult}
// @Failure      400 {object} httputil.Response "Missing email or code"
// @Failure      401 {object} httputil.Response "Invalid or expired code"
// @Failure      429 {object} httputil.Response "Too many attempts"
// @Router       /api/auth/verify-reset-code [post]
func (h *Handler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req VerifyResetCodeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	token, err := h.service.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		respondServiceError(w, logger, "verify reset code", err)
		return
	}

	httputil.RespondSuccess(w, "Code verified", VerifyResetCodeResult{ResetToken: token}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Set a new password using a reset token
// @Tags         password
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Validation error"
// @Failure      401 {object} httputil.Response "Invalid or expired token"
// @Router       /api/auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		respondServiceError(w, logger, "reset password", err)
		return
	}

	httputil.RespondSuccess(w, "Password reset successful", nil, http.StatusOK)
}

// ChangePassword handles an authenticated password change
// @Summary      Change password
// @Tags         password
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangePasswordRequest true "Current and new password"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.Response "Validation error"
// @Failure      401 {object} httputil.Response "Unauthorized or wrong current password"
// @Failure      404 {object} httputil.Response "Account not found"
// @Router       /api/auth/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		respondInvalidBody(w, logger, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(w, logger, "change password", err)
		return
	}

	httputil.RespondSuccess(w, "Password changed successfully", nil, http.StatusOK)
}
