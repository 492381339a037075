package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/adapter/handler"
	"github.com/johnquangdev/meetbot/internal/adapter/repository"
	"github.com/johnquangdev/meetbot/internal/domain/ports"
	"github.com/johnquangdev/meetbot/internal/domain/repositories"
	"github.com/johnquangdev/meetbot/internal/infrastructure/cache"
	"github.com/johnquangdev/meetbot/internal/infrastructure/database"
	"github.com/johnquangdev/meetbot/internal/infrastructure/external/google"
	"github.com/johnquangdev/meetbot/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meetbot/internal/infrastructure/external/staticcal"
	authmw "github.com/johnquangdev/meetbot/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meetbot/internal/infrastructure/storage"
	"github.com/johnquangdev/meetbot/internal/usecase/scheduler"
	"github.com/johnquangdev/meetbot/pkg/config"
	pkgvalidator "github.com/johnquangdev/meetbot/pkg/validator"
)

const historyPurgeEvery = time.Hour

// outputStore is what both storage backends provide
type outputStore interface {
	ports.OutputStorage
	handler.OutputLinker
}

// app owns every collaborator of one process run
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
	server    *echo.Echo
	records   repositories.SessionRecordRepository
	closers   []func() error
}

// newApp initializes collaborators, retrying each a few times before giving up
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	logger.Info("🔧 Initializing collaborators...")

	var outputs outputStore
	if err := a.initWithRetry(ctx, "storage", func() (err error) {
		outputs, err = newOutputStore(ctx, cfg)
		return err
	}); err != nil {
		return nil, err
	}

	var calendar ports.CalendarSource
	if err := a.initWithRetry(ctx, "calendar", func() (err error) {
		calendar, err = newCalendar(ctx, cfg, logger)
		return err
	}); err != nil {
		return nil, err
	}

	drivers := livekit.NewDriverFactory(cfg.LiveKit, cfg.Storage, logger.Named("livekit"))

	opts := []scheduler.Option{}
	tracker, err := a.initFailureTracker(ctx)
	if err != nil {
		return nil, err
	}
	if tracker != nil {
		opts = append(opts, scheduler.WithFailureTracker(tracker))
	}

	if cfg.Database.Enabled {
		if err := a.initHistory(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, scheduler.WithRecordRepository(a.records))
	} else {
		logger.Info("📭 Session history disabled (DB_ENABLED=false)")
	}

	a.scheduler, err = scheduler.New(
		scheduler.ConfigFrom(cfg),
		calendar,
		drivers,
		outputs,
		logger.Named("scheduler"),
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	a.server = newServer(cfg, logger, handler.NewSession(a.scheduler, a.records, outputs, logger.Named("http")))
	ok = true
	logger.Info("✅ Collaborators initialized")
	return a, nil
}

// initWithRetry runs fn up to InitAttempts times with InitDelay between attempts
func (a *app) initWithRetry(ctx context.Context, name string, fn func() error) error {
	attempts := a.cfg.Server.InitAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.cfg.Server.InitDelay), uint64(attempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(fn, policy, func(err error, next time.Duration) {
		a.logger.Warn("⚠️ Initialization failed, retrying",
			zap.String("component", name),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize %s: %w", name, err)
	}
	return nil
}

func newOutputStore(ctx context.Context, cfg *config.Config) (outputStore, error) {
	if cfg.Storage.Type == "local" {
		return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.Extension)
	}
	return storage.NewMinIOStorage(ctx, &cfg.Storage)
}

func newCalendar(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.CalendarSource, error) {
	if cfg.Calendar.Source == "static" {
		logger.Warn("⚠️ Using static calendar file", zap.String("path", cfg.Calendar.StaticFile))
		return staticcal.NewCalendar(cfg.Calendar.StaticFile, logger.Named("calendar")), nil
	}
	return google.NewCalendar(ctx, cfg.Calendar, logger.Named("calendar"))
}

// initFailureTracker returns nil when suppression is disabled
func (a *app) initFailureTracker(ctx context.Context) (*scheduler.FailureTracker, error) {
	policy := scheduler.FailurePolicy{
		Cooldown:    a.cfg.Failure.Cooldown,
		MaxFailures: a.cfg.Failure.MaxFailures,
		Window:      a.cfg.Failure.Window,
	}
	if !policy.Enabled() {
		a.logger.Info("📭 Failed-meeting suppression disabled")
		return nil, nil
	}

	var store scheduler.CounterStore
	switch a.cfg.Failure.Backend {
	case "redis":
		var client *cache.RedisStore
		if err := a.initWithRetry(ctx, "redis", func() error {
			rc, err := cache.NewRedisClient(ctx, a.cfg)
			if err != nil {
				return err
			}
			client = cache.NewRedisStore(rc)
			return nil
		}); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		store = client
	default:
		mem := cache.NewMemoryStore(time.Minute)
		a.closers = append(a.closers, mem.Close)
		store = mem
	}

	a.logger.Info("🧯 Failed-meeting suppression enabled",
		zap.String("backend", a.cfg.Failure.Backend),
		zap.Duration("cooldown", policy.Cooldown),
		zap.Int("max_failures", policy.MaxFailures),
	)
	return scheduler.NewFailureTracker(store, policy), nil
}

func (a *app) initHistory(ctx context.Context) error {
	log := a.logger.Named("database")
	return a.initWithRetry(ctx, "database", func() error {
		db, err := database.NewPostgresDB(a.cfg, log)
		if err != nil {
			return err
		}
		if a.cfg.Database.AutoMigrate {
			if _, err := database.Migrate(db, migrate.Up, 0, log); err != nil {
				_ = database.CloseDB(db, log)
				return backoff.Permanent(err)
			}
		}
		a.records = repository.NewSessionRecordRepository(db)
		a.closers = append(a.closers, func() error { return database.CloseDB(db, log) })
		return nil
	})
}

func newServer(cfg *config.Config, logger *zap.Logger, sessions *handler.Session) *echo.Echo {
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = true

	httpLog := logger.Named("http")
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			httpLog.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	auth := authmw.NewTokenAuth(cfg.Server.APIToken, httpLog)
	if !auth.Enabled() {
		logger.Warn("⚠️ Status API is unauthenticated (STATUS_API_TOKEN not set)")
	}
	handler.NewRouter(cfg, sessions, auth.Authenticate).Setup(e)
	return e
}

// run serves the status API and drives the scheduler until ctx is cancelled.
// A scheduler or server fault returns an error so the process can restart.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		addr := a.cfg.GetServerAddr()
		a.logger.Info("🚀 Starting status API", zap.String("addr", addr))
		if err := a.server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			cancel()
		}
	}()

	if a.records != nil && a.cfg.Database.Retention > 0 {
		go a.purgeHistory(ctx)
	}

	runErr := a.scheduler.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("❌ Status API forced to shutdown", zap.Error(err))
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("status API failed: %w", err)
	default:
	}
	return runErr
}

// purgeHistory deletes finished records older than the retention period
func (a *app) purgeHistory(ctx context.Context) {
	ticker := time.NewTicker(historyPurgeEvery)
	defer ticker.Stop()

	for {
		cutoff := time.Now().Add(-a.cfg.Database.Retention)
		n, err := a.records.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			a.logger.Warn("⚠️ Failed to purge session history", zap.Error(err))
		} else if n > 0 {
			a.logger.Info("🧹 Purged session history", zap.Int64("deleted", n), zap.Time("before", cutoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// close releases collaborators in reverse order of creation
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("⚠️ Failed to close collaborator", zap.Error(err))
		}
	}
	a.closers = nil
}
