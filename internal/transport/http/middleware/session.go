package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/infra/logger"
	"github.com/arklim/weather-auth/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// SessionReader resolves a session token to its session.
type SessionReader interface {
	Read(ctx context.Context, token string) (*domain.Session, error)
}

// RequireSession admits requests carrying a live session cookie and stores the
// session principal on the context.
func RequireSession(sessions SessionReader, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Please login first"))
			return
		}

		session, err := sessions.Read(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "Please login first"))
				return
			}
			logger.WithContext(c.Request.Context()).Error("session lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "Session check failed"))
			return
		}

		principal := session.Principal()
		c.Set(PrincipalKey, principal)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = principal.AccountID
		}

		c.Next()
	}
}
