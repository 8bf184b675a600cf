package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// CredentialsRequest is the payload of the register and login endpoints. Fields
// are validated by the account service so the user sees its messages.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyOTPRequest is the payload of the verification endpoint.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// RegisterResponse confirms a code was sent.
type RegisterResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// RedirectResponse is returned once a session is established.
type RedirectResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// NeedsOTPResponse tells the client to collect a verification code.
type NeedsOTPResponse struct {
	NeedsOTP bool   `json:"needsOTP"`
	Email    string `json:"email"`
}

// SessionStatusResponse reports whether the caller holds a live session.
type SessionStatusResponse struct {
	LoggedIn bool   `json:"loggedIn"`
	Email    string `json:"email,omitempty"`
}

// WeatherResponse relays the provider documents unchanged.
type WeatherResponse struct {
	Current  json.RawMessage `json:"current"`
	Forecast json.RawMessage `json:"forecast"`
}

// HealthResponse describes liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
