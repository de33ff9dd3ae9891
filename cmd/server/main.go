// @title                       Task Manager API
// @version                     1.0
// @description                 Task management API with JWT authentication and per-owner access control.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/esig/task-manager/internal/api"
	"github.com/esig/task-manager/internal/api/handler"
	"github.com/esig/task-manager/internal/core/ports"
	"github.com/esig/task-manager/internal/core/service"
	"github.com/esig/task-manager/internal/infrastructure/db/memory"
	"github.com/esig/task-manager/internal/infrastructure/db/mongo"
	"github.com/esig/task-manager/internal/infrastructure/db/postgres"
	"github.com/esig/task-manager/internal/infrastructure/db/redis"
	"github.com/esig/task-manager/internal/infrastructure/queue"
	"github.com/esig/task-manager/internal/observability/tracing"
	"github.com/esig/task-manager/internal/pkg/config"
	"github.com/esig/task-manager/pkg/logger"
)

const serviceName = "task-manager"

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	seedAdmin := pflag.Bool("seed-admin", true, "create the bootstrap admin account when it does not exist")
	workers := pflag.Int("workers", 0, "audit dispatcher workers (overrides AUDIT_WORKERS when > 0)")
	pflag.Parse()

	if err := run(*envFile, *seedAdmin, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(envFile string, seedAdmin bool, workers int) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Audit.Workers = workers
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})
	log.Info().Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("starting")

	shutdownTracing, err := tracing.Init(ctx, logger.Component(log, "tracing"), cfg.Telemetry.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// --- Audit trail ---
	audit := queue.NewDispatcher(cfg.Audit.Workers, st.audit, logger.Component(log, "audit"))
	audit.Start(context.WithoutCancel(ctx))
	defer audit.Close()

	// --- Core services ---
	key, err := cfg.JWT.Key()
	if err != nil {
		return err
	}
	codec, err := service.NewTokenCodec(key, cfg.JWT.TokenTTL())
	if err != nil {
		return err
	}

	authOpts := []service.AuthOption{service.WithAuditRecorder(audit)}
	if st.throttle != nil {
		authOpts = append(authOpts, service.WithLoginThrottle(st.throttle))
	} else {
		log.Info().Msg("login throttling disabled: REDIS_ADDR not set")
	}
	authService := service.NewAuthService(st.accounts, codec, logger.Component(log, "auth"), authOpts...)

	if seedAdmin {
		if _, err := authService.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	policy := service.NewAccessPolicy(st.accounts)
	taskService := service.NewTaskService(st.tasks, st.accounts, policy, logger.Component(log, "tasks"),
		service.WithTaskAudit(audit))

	e := api.NewRouter(api.Deps{
		Auth:       authService,
		Tasks:      taskService,
		Tokens:     codec,
		Identities: service.NewIdentityResolver(st.accounts),
		Health:     st.checks,
		Logger:     logger.Component(log, "http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           tracing.Handler(e, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

// stores holds the repositories selected by STORE_DRIVER plus the optional
// Redis-backed login throttle, together with the readiness checks for each.
type stores struct {
	accounts ports.AccountRepository
	tasks    ports.TaskRepository
	audit    ports.AuditRepository
	throttle *redis.LoginThrottle
	checks   map[string]handler.Check
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	st := &stores{checks: make(map[string]handler.Check)}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })
		repos, err := mongo.Open(ctx, db)
		if err != nil {
			st.close()
			return nil, err
		}
		st.accounts, st.tasks, st.audit = repos.Accounts, repos.Tasks, repos.Audit
		st.checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		st.accounts = postgres.NewAccountStore(pool)
		st.tasks = postgres.NewTaskStore(pool)
		st.audit = postgres.NewAuditStore(pool)
		st.checks["postgres"] = pingPool(pool)

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store: data is lost on restart")
		st.accounts = memory.NewStore()
		st.tasks = memory.NewTaskStore()
		st.audit = memory.NewAuditLog()
	}

	if cfg.Redis.Addr != "" {
		throttle, rdb, err := redis.OpenThrottle(ctx, redis.ThrottleConfig{
			Addr:        cfg.Redis.Addr,
			DB:          cfg.Redis.DB,
			MaxFailures: cfg.Throttle.MaxFailures,
			Window:      cfg.Throttle.Window,
		})
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = rdb.Close() })
		st.throttle = throttle
		st.checks["redis"] = throttle.Ping
	}

	log.Info().Str("driver", cfg.StoreDriver).Bool("login_throttle", st.throttle != nil).Msg("stores ready")
	return st, nil
}

func pingPool(pool *pgxpool.Pool) handler.Check {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}
