package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/infra/logger"
	"github.com/arklim/weather-auth/internal/usecase"
)

const dashboardPath = "/dashboard.html"

// AccountFlows is the account state machine as seen by the HTTP layer.
type AccountFlows interface {
	Register(ctx context.Context, email, password string) (*usecase.RegisterResult, error)
	VerifyOTP(ctx context.Context, email, code string) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*usecase.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// SessionReader resolves session tokens.
type SessionReader interface {
	Read(ctx context.Context, token string) (*domain.Session, error)
}

// CookieSettings controls the session cookie.
type CookieSettings struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler exposes registration, verification, login and session endpoints.
type AuthHandler struct {
	accounts AccountFlows
	sessions SessionReader
	cookie   CookieSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(accounts AccountFlows, sessions SessionReader, cookie CookieSettings) *AuthHandler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = usecase.DefaultSessionTTL
	}
	return &AuthHandler{accounts: accounts, sessions: sessions, cookie: cookie}
}

// RegisterRoutes binds the account endpoints under r.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/verify-otp", h.verifyOTP)
	r.POST("/login", h.login)
	r.GET("/session", h.session)
	r.POST("/logout", h.logout)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email and password required"))
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "Registration failed")
		return
	}

	c.JSON(http.StatusOK, RegisterResponse{
		Message: "OTP sent to your email",
		Email:   result.Email,
	})
}

func (h *AuthHandler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email and OTP required"))
		return
	}

	session, err := h.accounts.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "Verification failed")
		return
	}

	h.setSessionCookie(c, session)
	c.JSON(http.StatusOK, RedirectResponse{Message: "Email verified", Redirect: dashboardPath})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email and password required"))
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, "Login failed")
		return
	}

	if result.VerificationRequired {
		c.JSON(http.StatusOK, NeedsOTPResponse{NeedsOTP: true, Email: result.Email})
		return
	}

	h.setSessionCookie(c, result.Session)
	c.JSON(http.StatusOK, RedirectResponse{Message: "Login successful", Redirect: dashboardPath})
}

// session never fails: store errors are logged and reported as logged out.
func (h *AuthHandler) session(c *gin.Context) {
	token, err := c.Cookie(h.cookie.Name)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, SessionStatusResponse{LoggedIn: false})
		return
	}

	session, err := h.sessions.Read(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, usecase.ErrSessionNotFound) {
			logger.WithContext(c.Request.Context()).Error("session lookup failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, SessionStatusResponse{LoggedIn: false})
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{LoggedIn: true, Email: session.Email})
}

func (h *AuthHandler) logout(c *gin.Context) {
	token, _ := c.Cookie(h.cookie.Name)

	if token != "" {
		if err := h.accounts.Logout(c.Request.Context(), token); err != nil {
			RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "Logout failed")
			return
		}
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, session *domain.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.Token, int(h.cookie.MaxAge.Seconds()), "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
}
