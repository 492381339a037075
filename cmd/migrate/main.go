package main

import (
	"flag"
	"log"
	"os"

	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"

	"github.com/johnquangdev/meetbot/internal/infrastructure/database"
	"github.com/johnquangdev/meetbot/pkg/config"
	"github.com/johnquangdev/meetbot/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "roll migrations back instead of applying them")
	steps := flag.Int("steps", 0, "maximum number of migrations to run, 0 runs all")
	status := flag.Bool("status", false, "list applied migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.NewPostgresDB(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.CloseDB(db, zl) }()

	if *status {
		sqlDB, err := db.DB()
		if err != nil {
			zl.Fatal("Failed to get database connection", zap.Error(err))
		}
		records, err := migrate.GetMigrationRecords(sqlDB, "postgres")
		if err != nil {
			zl.Fatal("Failed to read migration records", zap.Error(err))
		}
		for _, r := range records {
			zl.Info("📜 Applied migration", zap.String("id", r.Id), zap.Time("applied_at", r.AppliedAt))
		}
		return
	}

	direction := migrate.Up
	if *down {
		direction = migrate.Down
		if *steps == 0 {
			*steps = 1
		}
	}

	zl.Info("🔄 Applying embedded migrations", zap.Bool("down", *down), zap.Int("steps", *steps))
	if _, err := database.Migrate(db, direction, *steps, zl); err != nil {
		zl.Error("❌ Migration failed", zap.Error(err))
		_ = database.CloseDB(db, zl)
		os.Exit(1)
	}
}
