package rewardqueue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type IRewardQueue interface {
	// AddToQueue returns nil when the funding already has an entry.
	AddToQueue(ctx context.Context, fundingID, requesterAddress string, fundedAmount decimal.Decimal, chain model.Chain, priority int) (*int64, error)
	AddToQueueTx(tx *gorm.DB, fundingID, requesterAddress string, fundedAmount decimal.Decimal, chain model.Chain, priority int) (*int64, error)

	GetNextPendingReward(ctx context.Context) (*model.RewardQueueEntry, error)

	// MarkAsProcessing returns nil when another processor claimed the entry first.
	MarkAsProcessing(ctx context.Context, id int64) (*model.RewardQueueEntry, error)

	// RecordSubmission stores a broadcast transfer on the processing entry before its receipt is awaited.
	RecordSubmission(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal) error

	// MarkAsSubmitted parks a processing entry whose transfer outcome is unknown.
	MarkAsSubmitted(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal, reason string) error

	GetSubmittedRewards(ctx context.Context, limit int) ([]*model.RewardQueueEntry, error)

	// ClaimSubmitted returns nil when another processor is reconciling the entry.
	ClaimSubmitted(ctx context.Context, id int64) (*model.RewardQueueEntry, error)

	MarkAsCompleted(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal) error
	MarkAsCompletedTx(tx *gorm.DB, id int64, txHash string, rewardAmount decimal.Decimal) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string, retryCount int) error

	GetFailedRewards(ctx context.Context, maxRetries int) ([]*model.RewardQueueEntry, error)
	RetryFailedReward(ctx context.Context, id int64) (bool, error)
	RetryAllFailed(ctx context.Context, maxRetries int) (int, error)

	Stats(ctx context.Context) (*model.RewardQueueStats, error)
	PruneExhausted(ctx context.Context, maxRetries int, olderThan time.Duration) (int64, error)
}
