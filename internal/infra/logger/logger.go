package logger

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New builds the process-wide logger on first call and returns it on every later one.
// Production gets JSON at info level, other environments a colored console at debug level.
// A non-empty level overrides the environment default.
func New(env, level string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		lg, err = build(env, level)
	})
	return lg, err
}

func build(env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	return cfg.Build(zap.Fields(zap.String("env", env)))
}

// WithContext returns the process logger annotated with the request and trace identifiers
// found on ctx.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base, _ = zap.NewDevelopment()
	}
	if ctx == nil {
		return base
	}

	var fields []zap.Field
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return base.With(fields...)
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// RequestID returns the request identifier stored on ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey{}).(string)
	return id
}

// MaskEmail keeps up to three leading characters of the local part and the domain:
// john.doe@example.com becomes joh***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" || domain == "" {
		return "***@" + domain
	}

	runes := []rune(local)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes) + "***@" + domain
}

// MaskIP reduces an address to its network: /16 for IPv4, /64 for IPv6.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "***"
	}
	addr = addr.Unmap()

	bits := 64
	if addr.Is4() {
		bits = 16
	}
	prefix, err := addr.WithZone("").Prefix(bits)
	if err != nil {
		return "***"
	}
	return prefix.String()
}

// MaskString keeps the first and last two characters of s: secret123 becomes se***23.
func MaskString(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}

// EmailField returns a zap field carrying the masked form of email.
func EmailField(email string) zap.Field {
	return zap.String("email", MaskEmail(email))
}

// TokenField returns a zap field carrying a masked session token.
func TokenField(token string) zap.Field {
	return zap.String("session", MaskString(token))
}
