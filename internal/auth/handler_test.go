package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/wheels-api/internal/httputil"
)

func doJSON(t *testing.T, h http.HandlerFunc, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func signupBody() SignupRequest {
	return SignupRequest{
		Name:            "Sam Driver",
		Email:           "driver@example.com",
		Contact:         "9800000000",
		Address:         "12 Garage Lane",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func TestHandler_Signup(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	h := NewHandler(svc)

	rec, body := doJSON(t, h.Signup, signupBody())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "driver@example.com", data["email"])
	assert.Equal(t, "user", data["role"])
	assert.NotContains(t, data, "PasswordHash")
	assert.NotContains(t, data, "password")

	rec, body = doJSON(t, h.Signup, signupBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeEmailAlreadyExists, body["code"])

	mismatch := signupBody()
	mismatch.Email = "other@example.com"
	mismatch.ConfirmPassword = "different"
	rec, body = doJSON(t, h.Signup, mismatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodePasswordMismatch, body["code"])
}

func TestHandler_SignupInvalidBody(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	h.Signup(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Login(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	h := NewHandler(svc)
	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)

	rec, body := doJSON(t, h.Login, LoginRequest{Email: "driver@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refreshToken"])
	assert.IsType(t, map[string]any{}, body["data"])

	rec, body = doJSON(t, h.Login, LoginRequest{Email: "driver@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, httputil.CodeInvalidCredentials, body["code"])

	// unknown accounts get the same answer as a wrong password
	unknownRec, unknownBody := doJSON(t, h.Login, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, rec.Code, unknownRec.Code)
	assert.Equal(t, body["code"], unknownBody["code"])
	assert.Equal(t, body["message"], unknownBody["message"])
}

func TestHandler_RefreshAndLogout(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	h := NewHandler(svc)
	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	_, tokens, err := svc.Login(context.Background(), "driver@example.com", "secret1")
	require.NoError(t, err)

	rec, body := doJSON(t, h.Refresh, RefreshRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeRefreshTokenMissing, body["code"])

	rec, body = doJSON(t, h.Refresh, RefreshRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	next := data["refreshToken"].(string)

	rec, _ = doJSON(t, h.Logout, RefreshRequest{RefreshToken: next})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, h.Refresh, RefreshRequest{RefreshToken: next})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, httputil.CodeInvalidRefreshToken, body["code"])

	// logout without a token still succeeds
	rec, _ = doJSON(t, h.Logout, RefreshRequest{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_MeBehindMiddleware(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	h := NewHandler(svc)
	created, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	_, tokens, err := svc.Login(context.Background(), "driver@example.com", "secret1")
	require.NoError(t, err)

	protected := NewMiddleware(svc.tokens).RequireAuth(http.HandlerFunc(h.Me))

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, created.ID.String(), body["data"].(map[string]any)["id"])
}

func TestMiddleware_RequireAuth(t *testing.T) {
	tokens, err := NewPasetoService(testKey)
	require.NoError(t, err)

	id := uuid.New()
	valid, err := tokens.CreateToken(id, "driver@example.com", "admin", time.Minute)
	require.NoError(t, err)
	expired, err := tokens.CreateToken(id, "driver@example.com", "admin", -time.Minute)
	require.NoError(t, err)

	var seen struct {
		id    uuid.UUID
		email string
		role  string
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.id, _ = GetUserIDFromContext(r.Context())
		seen.email, _ = GetUserEmailFromContext(r.Context())
		seen.role, _ = GetUserRoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewMiddleware(tokens).RequireAuth(next)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, httputil.CodeMissingAuth},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"garbage token", "Bearer v4.local.garbage", http.StatusUnauthorized, httputil.CodeInvalidToken},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, httputil.CodeTokenExpired},
		{"valid token", "Bearer " + valid, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}

	assert.Equal(t, id, seen.id)
	assert.Equal(t, "driver@example.com", seen.email)
	assert.Equal(t, "admin", seen.role)
}
