package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/config"
)

const maxBodyBytes = 1 << 20

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("weather: api key missing")
	// ErrUpstream covers transport failures and undecodable responses.
	ErrUpstream = errors.New("weather: upstream request failed")
)

// NotFoundError carries the provider's message for a rejected lookup.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return "weather: " + e.Message
}

// Client queries the OpenWeatherMap current conditions and forecast endpoints.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	units   string
	logger  *zap.Logger
}

var _ port.WeatherProvider = (*Client)(nil)

// NewClient returns a client for cfg.BaseURL. Requests carry OpenTelemetry spans and
// time out after cfg.Timeout. A missing API key is reported per lookup, not here.
func NewClient(cfg config.WeatherSettings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	units := cfg.Units
	if units == "" {
		units = "metric"
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   units,
		logger:  logger,
	}
}

// Lookup fetches current conditions first; the forecast is only requested when
// the provider recognises the city.
func (c *Client) Lookup(ctx context.Context, city string) (*port.WeatherReport, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	current, err := c.fetch(ctx, "weather", city)
	if err != nil {
		return nil, err
	}
	if err := checkCode(current); err != nil {
		return nil, err
	}

	forecast, err := c.fetch(ctx, "forecast", city)
	if err != nil {
		return nil, err
	}

	return &port.WeatherReport{Current: current, Forecast: forecast}, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, city string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", c.units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("weather request failed", zap.String("endpoint", endpoint), zap.Error(redact(err)))
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUpstream, endpoint, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned status %d with a non-JSON body", ErrUpstream, endpoint, resp.StatusCode)
	}
	return json.RawMessage(body), nil
}

type statusDocument struct {
	Cod     json.RawMessage `json:"cod"`
	Message json.RawMessage `json:"message"`
}

// checkCode accepts only documents whose cod is 200; the provider sends it as a
// number on success and as a string on errors.
func checkCode(doc json.RawMessage) error {
	var status statusDocument
	if err := json.Unmarshal(doc, &status); err != nil {
		return fmt.Errorf("%w: decode status: %w", ErrUpstream, err)
	}

	if code, ok := parseCode(status.Cod); ok && code == http.StatusOK {
		return nil
	}

	message := "city not found"
	var text string
	if err := json.Unmarshal(status.Message, &text); err == nil && text != "" {
		message = text
	}
	return &NotFoundError{Message: message}
}

func parseCode(raw json.RawMessage) (int, bool) {
	var number int
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		number, err := strconv.Atoi(text)
		return number, err == nil
	}
	return 0, false
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
