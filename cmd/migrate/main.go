package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	pgstore "github.com/dwarvesf/icy-funding-backend/internal/store/postgres"
	"github.com/dwarvesf/icy-funding-backend/internal/store/sqlitestore"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

func newMigrator(db *gorm.DB, dir string) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database connection")
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres driver")
	}

	return migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
}

func run(m *migrate.Migrate, direction string, steps int) error {
	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		if steps <= 0 {
			return errors.New("down needs -steps > 0")
		}
		err = m.Steps(-steps)
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

func main() {
	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 0, "number of migrations to roll back with -direction=down")
	dir := flag.String("dir", filepath.Join("migrations", "schema"), "migration files")
	flag.Parse()

	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	if appConfig.Database.Driver == "sqlite" {
		db := sqlitestore.New(appConfig.Database.SQLitePath, logger)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		logger.Info("[main] sqlite schema migrated", nil)
		return
	}

	db := pgstore.New(appConfig, logger)
	m, err := newMigrator(db, *dir)
	if err != nil {
		logger.Error("[main][newMigrator] failed to create migrator", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	if err := run(m, *direction, *steps); err != nil {
		logger.Error("[main][run] failed to run migrations", map[string]string{
			"error":     err.Error(),
			"direction": *direction,
		})
		os.Exit(1)
	}

	version, dirty, _ := m.Version()
	logger.Info("[main] migrations completed", map[string]string{
		"version": fmt.Sprint(version),
		"dirty":   fmt.Sprint(dirty),
	})
}
