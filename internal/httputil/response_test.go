package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, "ok", map[string]int{"cooldownSeconds": 60}, http.StatusOK)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["message"])
	assert.Equal(t, map[string]any{"cooldownSeconds": float64(60)}, body["data"])
	assert.NotContains(t, body, "code")
}

func TestRespondErrorWithCode(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithCode(rec, "invalid verification code", CodeInvalidCode, http.StatusUnauthorized)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid verification code", body["message"])
	assert.Equal(t, CodeInvalidCode, body["code"])
	assert.NotContains(t, body, "data")
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, "boom", http.StatusInternalServerError)

	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "boom", body["message"])
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"ipv6 remote addr", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"forwarded for is ignored", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, "10.0.0.1"},
		{"real ip is ignored", "10.0.0.1:80", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "a@b.c", dst.Email)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
}
