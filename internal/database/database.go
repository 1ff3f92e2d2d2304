package database

import (
	"fmt"
	"strings"

	"github.com/Baaaki/imf-gadgets/internal/models"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to PostgreSQL for postgres DSNs and to SQLite for anything
// else (a file path or a "file:" URI). TranslateError makes unique index
// violations surface as gorm.ErrDuplicatedKey on both drivers.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var dialector gorm.Dialector
	driver := "sqlite"
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
		driver = "postgres"
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Log.Info("Database connected successfully", zap.String("driver", driver))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Gadget{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Log.Info("Database migration completed")
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
