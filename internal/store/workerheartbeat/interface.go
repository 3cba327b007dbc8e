package workerheartbeat

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IStore interface {
	// Upsert records a finished run and bumps run_count
	Upsert(tx *gorm.DB, heartbeat *model.WorkerHeartbeat) error
	All(tx *gorm.DB) ([]*model.WorkerHeartbeat, error)
}
