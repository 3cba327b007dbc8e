package model

import "time"

type WorkerHeartbeat struct {
	WorkerName string    `json:"worker_name" gorm:"column:worker_name;type:varchar(64);primaryKey"`
	InstanceID string    `json:"instance_id" gorm:"column:instance_id;type:varchar(64);not null"`
	LastRunAt  time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastStatus string    `json:"last_status" gorm:"column:last_status;type:varchar(20)"`
	LastError  string    `json:"last_error" gorm:"column:last_error;type:text"`
	RunCount   int64     `json:"run_count" gorm:"column:run_count;not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (WorkerHeartbeat) TableName() string {
	return "worker_heartbeats"
}
