package server

import (
	"gorm.io/gorm"

	pgstore "github.com/dwarvesf/icy-funding-backend/internal/store/postgres"
	"github.com/dwarvesf/icy-funding-backend/internal/store/sqlitestore"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// openDB picks the database from DB_DRIVER. Postgres schema is owned by cmd/migrate;
// sqlite is migrated in place.
func openDB(appConfig *config.AppConfig, logger *logger.Logger) *gorm.DB {
	switch appConfig.Database.Driver {
	case "sqlite":
		return sqlitestore.New(appConfig.Database.SQLitePath, logger)
	case "postgres", "":
		return pgstore.New(appConfig, logger)
	default:
		logger.Fatal("[openDB] unknown DB_DRIVER", map[string]string{
			"driver": appConfig.Database.Driver,
		})
		return nil
	}
}
