package integrations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/config"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/models"
)

// InitDB opens the Postgres connection, configures the pool and verifies
// connectivity with a ping.
func InitDB(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeMin) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeMin) * time.Minute)

	// simple connection check
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := db.AutoMigrate(&models.Reminder{}, &models.Profile{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	log.Info("DB connected successfully")
	return db, nil
}
