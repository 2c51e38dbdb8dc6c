package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode represents machine-readable error codes
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"

	ErrCodeInvalidJSON  ErrorCode = "INVALID_JSON"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"

	ErrCodeCooldownActive ErrorCode = "COOLDOWN_ACTIVE"
	ErrCodeExpiredReward  ErrorCode = "EXPIRED_REWARD"
	ErrCodeWheelEmpty     ErrorCode = "WHEEL_EMPTY"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error          string     `json:"error"`                    // HTTP status text
	Message        string     `json:"message"`                  // Human-readable description
	Code           ErrorCode  `json:"code"`                     // Machine-readable error code
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"` // Set for COOLDOWN_ACTIVE
	RequestID      string     `json:"request_id,omitempty"`     // Request ID for debugging
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string) {
	writeErrorResponse(w, status, &ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeCooldownError(w http.ResponseWriter, r *http.Request, nextEligibleAt time.Time) {
	writeErrorResponse(w, http.StatusConflict, &ErrorResponse{
		Error:          http.StatusText(http.StatusConflict),
		Message:        "cooldown is active for this participant",
		Code:           ErrCodeCooldownActive,
		NextEligibleAt: &nextEligibleAt,
		RequestID:      middleware.GetReqID(r.Context()),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
