package actionlog

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, log *model.ActionLog) (*model.ActionLog, error) {
	return log, tx.Create(log).Error
}

func (s *store) ListByFundingRecordID(tx *gorm.DB, fundingRecordID string) ([]*model.ActionLog, error) {
	var logs []*model.ActionLog
	err := tx.Where("funding_record_id = ?", fundingRecordID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

func (s *store) DeleteOlderThan(tx *gorm.DB, cutoff time.Time) (int64, error) {
	result := tx.Where("created_at < ?", cutoff).Delete(&model.ActionLog{})
	return result.RowsAffected, result.Error
}
