package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"fooddelivery/internal/config"
	"fooddelivery/internal/models"
	"fooddelivery/pkg/logger"
)

// Open connects to the configured database.
func Open(cfg config.DatabaseConfig, logg *logger.Logger) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return open(cfg, &gorm.Config{Logger: gormLog, TranslateError: true}, logg)
}

func open(cfg config.DatabaseConfig, gormCfg *gorm.Config, logg *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	if dialector.Name() == "sqlite" {
		// SQLite has one writer; a single pooled connection turns lock errors into waits.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if logg != nil {
		logg.Info("Database connection established", "driver", dialector.Name())
	}
	return db, nil
}

// Migrate creates or updates every table and the invariant-carrying indexes.
func Migrate(db *gorm.DB, logg *logger.Logger) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Food{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return EnsureOrderIndexes(db, logg)
}

// EnsureOrderIndexes creates the partial unique index that allows one pending order per user.
func EnsureOrderIndexes(db *gorm.DB, logg *logger.Logger) error {
	const stmt = `CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_one_pending_per_user ON orders (user_id) WHERE status = 'pending'`
	if err := db.Exec(stmt).Error; err != nil {
		if logg != nil {
			logg.Error("EnsureOrderIndexes: pending order index failed", "error", err)
		}
		return fmt.Errorf("failed to create pending order index: %w", err)
	}
	if logg != nil {
		logg.Debug("EnsureOrderIndexes: idx_orders_one_pending_per_user ready")
	}
	return nil
}
