package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/weather"
)

// WeatherHandler proxies city lookups to the weather provider.
type WeatherHandler struct {
	provider port.WeatherProvider
}

func NewWeatherHandler(provider port.WeatherProvider) *WeatherHandler {
	return &WeatherHandler{provider: provider}
}

// Lookup expects the session gate to run first.
func (h *WeatherHandler) Lookup(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "City required"))
		return
	}

	report, err := h.provider.Lookup(c.Request.Context(), city)
	if err != nil {
		var notFound *weather.NotFoundError
		switch {
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, NewErrorResponse(c, notFound.Message))
		case errors.Is(err, weather.ErrNotConfigured):
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Weather API key missing"))
		case errors.Is(err, context.Canceled):
			c.Status(499)
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Weather fetch failed"))
		}
		return
	}

	c.JSON(http.StatusOK, WeatherResponse{Current: report.Current, Forecast: report.Forecast})
}
