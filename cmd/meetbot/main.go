package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/pkg/config"
	"github.com/johnquangdev/meetbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, cfg, zl); err != nil && ctx.Err() == nil {
		zl.Error("❌ Giving up after repeated failures",
			zap.Int("attempts", cfg.Server.StartAttempts),
			zap.Error(err),
		)
		_ = zl.Sync()
		os.Exit(1)
	}
	zl.Info("✅ Stopped gracefully")
}

// start runs the process body, restarting it after a fault up to
// StartAttempts times in total. A signal ends the loop without error.
func start(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Server.RestartDelay), uint64(cfg.Server.StartAttempts-1)),
		ctx,
	)

	return backoff.RetryNotify(func() error {
		attempt++
		zl.Info("🚀 Starting meetbot",
			zap.Int("attempt", attempt),
			zap.String("environment", cfg.Server.Environment),
		)

		a, err := newApp(ctx, cfg, zl)
		if err != nil {
			return err
		}
		defer a.close()

		err = a.run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}, policy, func(err error, next time.Duration) {
		zl.Error("💥 Meetbot failed, restarting",
			zap.Int("attempt", attempt),
			zap.Duration("restart_in", next),
			zap.Error(err),
		)
	})
}
