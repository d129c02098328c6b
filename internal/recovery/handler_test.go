package recovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/wheels-api/internal/auth"
	"github.com/redmonkez12/wheels-api/internal/httputil"
	"github.com/redmonkez12/wheels-api/internal/logging"
)

var bg = context.Background()

func postJSON(ctx context.Context, t *testing.T, h http.HandlerFunc, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHandler_FullRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	rec, body := postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: testEmail})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 60, data["cooldownSeconds"])

	code := f.notifier.last(t).code
	rec, body = postJSON(bg, t, h.VerifyResetCode, VerifyResetCodeRequest{Email: testEmail, Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	token, _ := data["resetToken"].(string)
	require.NotEmpty(t, token)

	rec, body = postJSON(bg, t, h.ResetPassword, ResetPasswordRequest{ResetToken: token, NewPassword: "newpass1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	// the token is single use
	rec, body = postJSON(bg, t, h.ResetPassword, ResetPasswordRequest{ResetToken: token, NewPassword: "another1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidResetToken, body["code"])
}

func TestHandler_ForgotPasswordUnknownEmailLooksTheSame(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	_, known := postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: testEmail})
	f.advance(2 * time.Minute)
	_, unknown := postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: "ghost@example.com"})

	assert.Equal(t, known, unknown)
}

func TestHandler_ForgotPasswordCooldown(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: testEmail})
	f.advance(20 * time.Second)

	rec, body := postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: testEmail})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 40, body["data"].(map[string]any)["cooldownSeconds"])
	assert.Equal(t, 1, f.notifier.count())
}

func TestHandler_ForgotPasswordEmailNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("GMAIL_USER / GMAIL_APP_PASSWORD not set")
	h := NewHandler(f.svc)

	rec, body := postJSON(bg, t, h.ForgotPassword, ForgotPasswordRequest{Email: testEmail})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, httputil.CodeEmailServiceUnavailable, body["code"])
	assert.NotContains(t, body["message"], "GMAIL")
}

func TestHandler_VerifyResetCodeErrors(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	f.issueCode(t)

	tests := []struct {
		name   string
		req    VerifyResetCodeRequest
		status int
		code   string
	}{
		{"missing email", VerifyResetCodeRequest{Code: "123456"}, http.StatusBadRequest, httputil.CodeEmailRequired},
		{"missing code", VerifyResetCodeRequest{Email: testEmail}, http.StatusBadRequest, httputil.CodeCodeRequired},
		{"wrong code", VerifyResetCodeRequest{Email: testEmail, Code: "000000"}, http.StatusUnauthorized, httputil.CodeInvalidCode},
		{"unknown account", VerifyResetCodeRequest{Email: "ghost@example.com", Code: "123456"}, http.StatusUnauthorized, httputil.CodeInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := postJSON(bg, t, h.VerifyResetCode, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHandler_VerifyResetCodeLockout(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	code := f.issueCode(t)

	for i := 0; i < MaxAttempts; i++ {
		rec, _ := postJSON(bg, t, h.VerifyResetCode, VerifyResetCodeRequest{Email: testEmail, Code: "000000"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, body := postJSON(bg, t, h.VerifyResetCode, VerifyResetCodeRequest{Email: testEmail, Code: code})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeTooManyAttempts, body["code"])
}

func TestHandler_VerifyResetCodeExpired(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	code := f.issueCode(t)
	f.advance(CodeTTL)

	rec, body := postJSON(bg, t, h.VerifyResetCode, VerifyResetCodeRequest{Email: testEmail, Code: code})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeCodeExpired, body["code"])
}

func TestHandler_ResetPasswordValidation(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	tests := []struct {
		name string
		req  ResetPasswordRequest
		code string
	}{
		{"missing token", ResetPasswordRequest{NewPassword: "newpass1"}, httputil.CodeTokenRequired},
		{"missing password", ResetPasswordRequest{ResetToken: "reset-token-1"}, httputil.CodePasswordRequired},
		{"short password", ResetPasswordRequest{ResetToken: "reset-token-1", NewPassword: "abc"}, httputil.CodePasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := postJSON(bg, t, h.ResetPassword, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHandler_InvalidBody(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)

	for name, fn := range map[string]http.HandlerFunc{
		"forgot": h.ForgotPassword,
		"verify": h.VerifyResetCode,
		"reset":  h.ResetPassword,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json")))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), httputil.CodeInvalidRequestBody)
		})
	}
}

func TestHandler_ChangePassword(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	authed := auth.WithClaims(context.Background(), f.account.ID, testEmail, "user")

	rec, body := postJSON(bg, t, h.ChangePassword, ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "newpass1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeMissingAuth, body["code"])

	rec, body = postJSON(authed, t, h.ChangePassword, ChangePasswordRequest{CurrentPassword: "wrongpass", NewPassword: "newpass1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidCurrentPassword, body["code"])

	rec, body = postJSON(authed, t, h.ChangePassword, ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: testPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodePasswordUnchanged, body["code"])

	ghost := auth.WithClaims(context.Background(), uuid.New(), "ghost@example.com", "user")
	rec, body = postJSON(ghost, t, h.ChangePassword, ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "newpass1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httputil.CodeAccountNotFound, body["code"])

	rec, body = postJSON(authed, t, h.ChangePassword, ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "newpass1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []uuid.UUID{f.account.ID}, f.revoker.revoked)
}

func TestRespondServiceError_UnknownErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, logging.Discard(), "test", errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.CodeInternalError)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
