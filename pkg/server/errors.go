package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
)

// Error codes for transport failures. Domain failures are reported with the
// tplguard result payloads instead.
const (
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeNotFound             = "NOT_FOUND"
)

// ErrorResponse is the body of transport level errors.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

// WriteError writes an ErrorResponse tagged with the request ID.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int,
	code, message string, retryable bool, details map[string]any) {

	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	respondJSON(w, statusCode, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch tgerrors.KindOf(err) {
	case tgerrors.KindTemplateNotFound:
		return http.StatusNotFound
	case tgerrors.KindParse:
		return http.StatusBadRequest
	case tgerrors.KindSchemaValidation, tgerrors.KindMissingDependency, tgerrors.KindCompile, tgerrors.KindRender:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
