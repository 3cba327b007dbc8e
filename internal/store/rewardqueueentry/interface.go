package rewardqueueentry

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IStore interface {
	// Create inserts the entry unless one already exists for the funding record.
	// The bool reports whether a row was inserted.
	Create(tx *gorm.DB, entry *model.RewardQueueEntry) (bool, error)

	GetByID(tx *gorm.DB, id int64) (*model.RewardQueueEntry, error)
	GetByFundingRecordID(tx *gorm.DB, fundingRecordID string) (*model.RewardQueueEntry, error)

	// GetNextPending orders by priority desc, then oldest first
	GetNextPending(tx *gorm.DB) (*model.RewardQueueEntry, error)

	// Claim moves pending -> processing. Returns false when the entry was not pending
	Claim(tx *gorm.DB, id int64) (bool, error)

	// RecordSubmission attaches a broadcast transfer to a processing entry
	RecordSubmission(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal) (bool, error)

	// Park moves processing -> submitted, keeping the transfer for reconciliation
	Park(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal, errorMessage string) (bool, error)

	// ListSubmitted returns submitted entries, least recently checked first
	ListSubmitted(tx *gorm.DB, limit int) ([]*model.RewardQueueEntry, error)

	// ClaimSubmitted moves submitted -> processing
	ClaimSubmitted(tx *gorm.DB, id int64) (bool, error)

	Complete(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal) (bool, error)

	// Fail moves processing -> failed and forgets any transfer, which must be known not to have paid
	Fail(tx *gorm.DB, id int64, errorMessage string, retryCount int) (bool, error)

	ListFailedUnderRetries(tx *gorm.DB, maxRetries int) ([]*model.RewardQueueEntry, error)

	// Requeue moves failed -> pending, bumping retry_count, while under maxRetries
	Requeue(tx *gorm.DB, id int64, maxRetries int) (bool, error)

	// DeleteExhausted removes failed entries at or over maxRetries last touched before cutoff
	DeleteExhausted(tx *gorm.DB, maxRetries int, cutoff time.Time) (int64, error)

	Stats(tx *gorm.DB) (*model.RewardQueueStats, error)
}
