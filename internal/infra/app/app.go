package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/otp-auth-service/internal/core/port"
	"github.com/arklim/otp-auth-service/internal/infra/config"
	"github.com/arklim/otp-auth-service/internal/infra/database"
	kafkainfra "github.com/arklim/otp-auth-service/internal/infra/kafka"
	"github.com/arklim/otp-auth-service/internal/infra/logger"
	"github.com/arklim/otp-auth-service/internal/infra/notify"
	redisinfra "github.com/arklim/otp-auth-service/internal/infra/redis"
	"github.com/arklim/otp-auth-service/internal/infra/security"
	"github.com/arklim/otp-auth-service/internal/infra/telemetry"
	memoryrepo "github.com/arklim/otp-auth-service/internal/repository/memory"
	postgresrepo "github.com/arklim/otp-auth-service/internal/repository/postgres"
	redisrepo "github.com/arklim/otp-auth-service/internal/repository/redis"
	transportgrpc "github.com/arklim/otp-auth-service/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/otp-auth-service/internal/transport/grpc/interceptors"
	"github.com/arklim/otp-auth-service/internal/transport/http/handlers"
	"github.com/arklim/otp-auth-service/internal/transport/http/middleware"
	"github.com/arklim/otp-auth-service/internal/transport/http/routes"
	"github.com/arklim/otp-auth-service/internal/usecase"
)

// Version is reported in traces. Overridden at build time with -ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	sweeper    *memoryrepo.ChallengeStore
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// New builds every dependency. Resources acquired before a failing step are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, Version, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := postgresrepo.Migrate(ctx, a.pool, cfg.Postgres.Schema); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("database migrations applied")
	}
	users := postgresrepo.NewUserRepository(a.pool, cfg.Postgres.Schema)

	challenges, err := a.challengeStore(ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	notifier, err := notify.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	events := a.eventPublisher()

	adminPolicy, err := security.NewAdminPolicy(cfg.Admin.Token, cfg.Admin.JWTSecret, cfg.Admin.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("init admin policy: %w", err)
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer, "auth")
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	issuer := usecase.NewOTPIssuer(security.NewOTPGenerator(), notifier, cfg.OTP.TTL, log)
	registration := usecase.NewRegistrationService(users, challenges, hasher, issuer, events, authMetrics, usecase.RegistrationConfig{
		CommitWindow: cfg.OTP.CommitWindow,
		MaxAttempts:  cfg.OTP.MaxAttempts,
	}, log)
	auth := usecase.NewAuthService(users, hasher, events, authMetrics, log)
	admin := usecase.NewUserService(users, events, log)

	health := a.healthHandler()

	a.engine = routes.Register(routes.Dependencies{
		Config: cfg,
		Logger: log,
		Services: routes.ServiceSet{
			Registration: registration,
			Auth:         auth,
			Users:        admin,
		},
		AdminPolicy: adminPolicy,
		Health:      health,
		HTTPMetrics: httpMetrics,
	})

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Logger:           log,
			Metrics:          grpcMetrics,
			Readiness:        health.Check,
			EnableReflection: !cfg.IsProduction(),
		})
		a.grpcAddr = net.JoinHostPort(cfg.GRPC.Host, strconv.Itoa(cfg.GRPC.Port))
	}

	return a, nil
}

func (a *Application) challengeStore(ctx context.Context) (port.ChallengeStore, error) {
	switch a.cfg.Challenge.Backend {
	case config.ChallengeBackendRedis:
		client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = client
		a.logger.Info("using redis challenge store")
		return redisrepo.NewChallengeStore(client.Client(), a.cfg.Challenge.KeyPrefix, a.cfg.Challenge.Retention), nil
	default:
		store := memoryrepo.NewChallengeStore(a.logger).WithRetention(a.cfg.Challenge.Retention)
		a.sweeper = store
		a.logger.Info("using in-memory challenge store", zap.Duration("sweep_interval", a.cfg.OTP.SweepInterval))
		return store, nil
	}
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) healthHandler() *handlers.HealthHandler {
	opts := []handlers.HealthOption{
		handlers.WithReadinessCheck("database", a.pool.Ping),
	}
	if a.redis != nil {
		opts = append(opts, handlers.WithReadinessCheck("redis", a.redis.HealthCheck))
	}
	return handlers.NewHealthHandler(opts...)
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails, then
// shuts everything down within shutdownTimeout.
func (a *Application) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var background sync.WaitGroup
	defer func() {
		cancel()
		background.Wait()

		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer releaseCancel()
		a.release(releaseCtx)
	}()

	if a.sweeper != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			a.sweeper.Run(runCtx, a.cfg.OTP.SweepInterval)
		}()
	}

	errCh := make(chan error, 2)

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC health server", zap.String("address", a.grpcAddr))

		background.Add(1)
		go func() {
			defer background.Done()
			a.grpcServer.WatchHealth(runCtx, 0)
		}()

		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, strconv.Itoa(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}

	return runErr
}

// release closes acquired resources in reverse order of acquisition.
func (a *Application) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
	_ = a.logger.Sync()
}
