package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"

	PasswordAlgorithmBcrypt   = "bcrypt"
	PasswordAlgorithmArgon2id = "argon2id"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Session   SessionSettings   `mapstructure:"session"`
	OTP       OTPSettings       `mapstructure:"otp"`
	Password  PasswordSettings  `mapstructure:"password"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Weather   WeatherSettings   `mapstructure:"weather"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogLevel       string   `mapstructure:"log_level"`
}

// IsProduction reports whether the service runs with production settings.
func (s AppSettings) IsProduction() bool {
	return s.Env == "production"
}

// StorageSettings selects the backends for accounts and sessions.
type StorageSettings struct {
	Driver string `mapstructure:"driver"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	PoolSize      int    `mapstructure:"pool_size"`
	SessionPrefix string `mapstructure:"session_prefix"`
}

// SessionSettings configures session lifetime and the cookie carrying the token.
type SessionSettings struct {
	Store        string        `mapstructure:"store"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// OTPSettings configures verification code issuance.
type OTPSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// PasswordSettings configures password hashing and acceptance rules.
type PasswordSettings struct {
	Algorithm        string `mapstructure:"algorithm"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
	MinLength        int    `mapstructure:"min_length"`
	MinStrengthScore int    `mapstructure:"min_strength_score"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SMTPSettings configures outbound mail for verification codes. An empty host selects the
// logging notifier.
type SMTPSettings struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	SSL      bool          `mapstructure:"ssl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// WeatherSettings configures the upstream weather provider.
type WeatherSettings struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Units   string        `mapstructure:"units"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("WEATHER")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.static_dir",
		"app.allowed_origins",
		"app.log_level",
		"storage.driver",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.auto_migrate",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pool_size",
		"redis.session_prefix",
		"session.store",
		"session.ttl",
		"session.cookie_name",
		"session.cookie_domain",
		"session.cookie_secure",
		"otp.ttl",
		"password.algorithm",
		"password.bcrypt_cost",
		"password.min_length",
		"password.min_strength_score",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"smtp.from_name",
		"smtp.ssl",
		"smtp.timeout",
		"kafka.brokers",
		"kafka.topic_prefix",
		"weather.api_key",
		"weather.base_url",
		"weather.units",
		"weather.timeout",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	// Names used by the original deployment environment.
	aliases := map[string]string{
		"smtp.username":   "EMAIL_USER",
		"smtp.password":   "EMAIL_PASS",
		"weather.api_key": "WEATHER_API_KEY",
		"app.port":        "PORT",
	}
	for key, env := range aliases {
		if err := v.BindEnv(key, "WEATHER_"+envName(key), envName(key), env); err != nil {
			return nil, fmt.Errorf("bind env alias for %s: %w", key, err)
		}
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config: unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Session.Store {
	case SessionStoreRedis, SessionStoreMemory:
	default:
		return fmt.Errorf("config: unsupported session store %q", c.Session.Store)
	}
	switch c.Password.Algorithm {
	case PasswordAlgorithmBcrypt, PasswordAlgorithmArgon2id:
	default:
		return fmt.Errorf("config: unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("config: session ttl must be positive")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("config: otp ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("config: session cookie name is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "weather-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.static_dir", "")
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("app.log_level", "")

	v.SetDefault("storage.driver", StorageDriverPostgres)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "weather")
	v.SetDefault("postgres.password", "weather_password")
	v.SetDefault("postgres.database", "weather")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.session_prefix", "weather:session")

	v.SetDefault("session.store", SessionStoreRedis)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.cookie_name", "weather_sid")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("otp.ttl", "10m")

	v.SetDefault("password.algorithm", PasswordAlgorithmBcrypt)
	v.SetDefault("password.bcrypt_cost", 12)
	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.from_name", "Weather App")
	v.SetDefault("smtp.ssl", true)
	v.SetDefault("smtp.timeout", "10s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "weather")

	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("weather.units", "metric")
	v.SetDefault("weather.timeout", "10s")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "weather-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key, "WEATHER_"+envName(key), envName(key)); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
