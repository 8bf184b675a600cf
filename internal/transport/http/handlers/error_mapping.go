package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/weather-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// accountErrorCases covers the user-facing outcomes of the account flows.
var accountErrorCases = []ErrorCase{
	{Err: usecase.ErrAlreadyExists, Status: http.StatusBadRequest, Message: "User already exists. Please login."},
	{Err: usecase.ErrNotFound, Status: http.StatusBadRequest, Message: "User not found"},
	{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "OTP expired"},
	{Err: usecase.ErrInvalidOTP, Status: http.StatusBadRequest, Message: "Invalid OTP"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: "Invalid credentials"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Validation errors always answer 400 with their own message.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var validation *usecase.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
