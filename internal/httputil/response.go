package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope of every API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondSuccess sends a successful envelope
func RespondSuccess(w http.ResponseWriter, message string, data any, statusCode int) {
	RespondJSON(w, Response{Success: true, Message: message, Data: data}, statusCode)
}

// RespondError sends a failed envelope with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, Response{Success: false, Message: message}, statusCode)
}

// RespondErrorWithCode sends a failed envelope with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, Response{Success: false, Message: message, Code: code}, statusCode)
}
