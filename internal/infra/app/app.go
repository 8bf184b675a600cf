package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/config"
	"github.com/arklim/weather-auth/internal/infra/database"
	kafkainfra "github.com/arklim/weather-auth/internal/infra/kafka"
	"github.com/arklim/weather-auth/internal/infra/logger"
	"github.com/arklim/weather-auth/internal/infra/mail"
	redisinfra "github.com/arklim/weather-auth/internal/infra/redis"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/infra/telemetry"
	"github.com/arklim/weather-auth/internal/infra/weather"
	"github.com/arklim/weather-auth/internal/repository/memory"
	postgresrepo "github.com/arklim/weather-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/weather-auth/internal/repository/redis"
	"github.com/arklim/weather-auth/internal/transport/http/middleware"
	"github.com/arklim/weather-auth/internal/transport/http/routes"
	"github.com/arklim/weather-auth/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tracer

	authMetrics := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	accounts, err := a.accountRepository(ctx)
	if err != nil {
		return err
	}
	sessionStore, err := a.sessionRepository(ctx)
	if err != nil {
		return err
	}

	hasher, err := security.NewPasswordHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost, security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}
	policy := passwordPolicy(cfg.Password)

	notifier, err := a.notifier()
	if err != nil {
		return err
	}

	events := a.eventPublisher(authMetrics)

	sessions := usecase.NewSessionService(sessionStore, events, log, cfg.Session.TTL).WithMetrics(authMetrics)
	accountService := usecase.NewAccountService(
		accounts,
		hasher,
		policy,
		security.NewOTPIssuer(cfg.OTP.TTL),
		notifier,
		sessions,
		events,
		log,
	).WithMetrics(authMetrics)

	deps := routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: httpMetrics,
		Services: routes.ServiceSet{
			Accounts: accountService,
			Sessions: sessions,
			Weather:  weather.NewClient(cfg.Weather, log),
		},
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return nil
}

// passwordPolicy caps password length only when bcrypt writes new digests.
func passwordPolicy(cfg config.PasswordSettings) *security.PasswordPolicy {
	opts := []security.PasswordPolicyOption{security.WithMinStrengthScore(cfg.MinStrengthScore)}
	if cfg.Algorithm == config.PasswordAlgorithmBcrypt {
		opts = append(opts, security.WithBcryptLimit())
	}
	return security.NewPasswordPolicy(cfg.MinLength, opts...)
}

func (a *Application) accountRepository(ctx context.Context) (port.AccountRepository, error) {
	if a.cfg.Storage.Driver == config.StorageDriverMemory {
		a.logger.Warn("using in-memory account storage; accounts are lost on restart")
		return memory.NewAccountRepository(), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	return postgresrepo.NewRepositories(pool).Accounts, nil
}

func (a *Application) sessionRepository(ctx context.Context) (port.SessionRepository, error) {
	if a.cfg.Session.Store == config.SessionStoreMemory {
		return memory.NewSessionRepository(), nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client
	return redisrepo.NewSessionRepository(client.Cmdable(), a.cfg.Redis.SessionPrefix), nil
}

func (a *Application) notifier() (port.Notifier, error) {
	smtp := a.cfg.SMTP
	if smtp.Host == "" {
		a.logger.Warn("smtp host not configured; verification codes are only logged")
		return mail.NewLoggingNotifier(a.logger, !a.cfg.App.IsProduction()), nil
	}

	notifier, err := mail.NewSMTPNotifier(smtp, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init mail: %w", err)
	}
	return mail.WithTimeout(notifier, smtp.Timeout), nil
}

func (a *Application) eventPublisher(metrics *telemetry.AuthMetrics) port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger, metrics.ObserveEventFailure)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting weather auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("session_store", a.cfg.Session.Store),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases whatever init managed to acquire.
func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
}
