// Package sqlitestore opens a pure-Go SQLite database, used for local runs and tests.
package sqlitestore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// New opens (or creates) the sqlite file at path and migrates the schema.
func New(path string, logger *logger.Logger) *gorm.DB {
	db, err := Open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		logger.Fatal("failed to open sqlite", map[string]string{
			"error": err.Error(),
			"path":  path,
		})
	}
	if err := Migrate(db); err != nil {
		logger.Fatal("failed to migrate sqlite", map[string]string{
			"error": err.Error(),
		})
	}

	logger.Info("database connected", map[string]string{
		"driver": "sqlite",
		"path":   path,
	})
	return db
}

func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; one connection keeps writes serialized
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}
