package workerheartbeat

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Upsert(tx *gorm.DB, heartbeat *model.WorkerHeartbeat) error {
	heartbeat.RunCount = 1
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"instance_id": heartbeat.InstanceID,
			"last_run_at": heartbeat.LastRunAt,
			"last_status": heartbeat.LastStatus,
			"last_error":  heartbeat.LastError,
			"run_count":   gorm.Expr("worker_heartbeats.run_count + 1"),
			"updated_at":  heartbeat.LastRunAt,
		}),
	}).Create(heartbeat).Error
}

func (s *store) All(tx *gorm.DB) ([]*model.WorkerHeartbeat, error) {
	var heartbeats []*model.WorkerHeartbeat
	err := tx.Order("worker_name ASC").Find(&heartbeats).Error
	return heartbeats, err
}
