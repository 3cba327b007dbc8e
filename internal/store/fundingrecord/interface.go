package fundingrecord

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, record *model.FundingRecord) (*model.FundingRecord, error)
	GetByID(tx *gorm.DB, id string) (*model.FundingRecord, error)

	// GetByFundingTxHash returns gorm.ErrRecordNotFound when no record claimed the hash
	GetByFundingTxHash(tx *gorm.DB, hash string) (*model.FundingRecord, error)

	// ListPending returns pending records that have not expired yet, oldest first
	ListPending(tx *gorm.DB, now time.Time, limit int) ([]*model.FundingRecord, error)

	// UpdateConfirmations records progress on a record that is still pending
	UpdateConfirmations(tx *gorm.DB, id string, confirmations int) error

	// Confirm moves pending -> confirmed. Returns false if the record was not pending anymore
	Confirm(tx *gorm.DB, id string, fundedAmount decimal.Decimal, fundingTxHash string, confirmations int) (bool, error)

	// MarkRewardSent moves confirmed -> reward_sent, only while no reward hash is attached
	MarkRewardSent(tx *gorm.DB, id string, rewardTxHash string) (bool, error)

	// MarkFailed moves confirmed -> failed
	MarkFailed(tx *gorm.DB, id string) (bool, error)

	// ExpirePending moves every pending record with expires_at before now to expired and returns their ids
	ExpirePending(tx *gorm.DB, now time.Time) ([]string, error)

	CountByStatus(tx *gorm.DB) (map[model.FundingStatus]int64, error)
}
