package actionlog

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, log *model.ActionLog) (*model.ActionLog, error)
	ListByFundingRecordID(tx *gorm.DB, fundingRecordID string) ([]*model.ActionLog, error)
	DeleteOlderThan(tx *gorm.DB, cutoff time.Time) (int64, error)
}
