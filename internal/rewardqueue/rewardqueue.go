package rewardqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrInvalidTransition = errors.New("reward queue entry is not in the expected status")

type RewardQueue struct {
	db         *gorm.DB
	store      *store.Store
	logger     *logger.Logger
	maxRetries int
}

func New(db *gorm.DB, store *store.Store, logger *logger.Logger, maxRetries int) *RewardQueue {
	return &RewardQueue{
		db:         db,
		store:      store,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

func (q *RewardQueue) AddToQueue(ctx context.Context, fundingID, requesterAddress string, fundedAmount decimal.Decimal, chain model.Chain, priority int) (*int64, error) {
	return q.AddToQueueTx(q.db.WithContext(ctx), fundingID, requesterAddress, fundedAmount, chain, priority)
}

func (q *RewardQueue) AddToQueueTx(tx *gorm.DB, fundingID, requesterAddress string, fundedAmount decimal.Decimal, chain model.Chain, priority int) (*int64, error) {
	entry := &model.RewardQueueEntry{
		FundingRecordID:  fundingID,
		RequesterAddress: requesterAddress,
		FundedAmount:     fundedAmount,
		Chain:            chain,
		Priority:         priority,
		Status:           model.RewardQueueStatusPending,
	}
	inserted, err := q.store.RewardQueueEntry.Create(tx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		q.logger.Debug("[AddToQueue] funding already queued", map[string]string{
			"funding_id": fundingID,
		})
		return nil, nil
	}
	return &entry.ID, nil
}

func (q *RewardQueue) GetNextPendingReward(ctx context.Context) (*model.RewardQueueEntry, error) {
	return q.store.RewardQueueEntry.GetNextPending(q.db.WithContext(ctx))
}

func (q *RewardQueue) MarkAsProcessing(ctx context.Context, id int64) (*model.RewardQueueEntry, error) {
	db := q.db.WithContext(ctx)
	claimed, err := q.store.RewardQueueEntry.Claim(db, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		q.logger.Debug("[MarkAsProcessing] lost claim", map[string]string{
			"queue_id": fmt.Sprint(id),
		})
		return nil, nil
	}
	return q.store.RewardQueueEntry.GetByID(db, id)
}

func (q *RewardQueue) RecordSubmission(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal) error {
	ok, err := q.store.RewardQueueEntry.RecordSubmission(q.db.WithContext(ctx), id, txHash, rewardAmount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("record submission on queue entry %d", id))
	}
	return nil
}

func (q *RewardQueue) MarkAsSubmitted(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal, reason string) error {
	ok, err := q.store.RewardQueueEntry.Park(q.db.WithContext(ctx), id, txHash, rewardAmount, reason)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("park queue entry %d", id))
	}
	return nil
}

func (q *RewardQueue) GetSubmittedRewards(ctx context.Context, limit int) ([]*model.RewardQueueEntry, error) {
	return q.store.RewardQueueEntry.ListSubmitted(q.db.WithContext(ctx), limit)
}

func (q *RewardQueue) ClaimSubmitted(ctx context.Context, id int64) (*model.RewardQueueEntry, error) {
	db := q.db.WithContext(ctx)
	claimed, err := q.store.RewardQueueEntry.ClaimSubmitted(db, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		q.logger.Debug("[ClaimSubmitted] lost claim", map[string]string{
			"queue_id": fmt.Sprint(id),
		})
		return nil, nil
	}
	return q.store.RewardQueueEntry.GetByID(db, id)
}

func (q *RewardQueue) MarkAsCompleted(ctx context.Context, id int64, txHash string, rewardAmount decimal.Decimal) error {
	return q.MarkAsCompletedTx(q.db.WithContext(ctx), id, txHash, rewardAmount)
}

func (q *RewardQueue) MarkAsCompletedTx(tx *gorm.DB, id int64, txHash string, rewardAmount decimal.Decimal) error {
	ok, err := q.store.RewardQueueEntry.Complete(tx, id, txHash, rewardAmount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("complete queue entry %d", id))
	}
	return nil
}

func (q *RewardQueue) MarkAsFailed(ctx context.Context, id int64, errorMessage string, retryCount int) error {
	ok, err := q.store.RewardQueueEntry.Fail(q.db.WithContext(ctx), id, errorMessage, retryCount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrInvalidTransition, fmt.Sprintf("fail queue entry %d", id))
	}
	return nil
}

func (q *RewardQueue) GetFailedRewards(ctx context.Context, maxRetries int) ([]*model.RewardQueueEntry, error) {
	return q.store.RewardQueueEntry.ListFailedUnderRetries(q.db.WithContext(ctx), maxRetries)
}

func (q *RewardQueue) RetryFailedReward(ctx context.Context, id int64) (bool, error) {
	return q.store.RewardQueueEntry.Requeue(q.db.WithContext(ctx), id, q.maxRetries)
}

func (q *RewardQueue) RetryAllFailed(ctx context.Context, maxRetries int) (int, error) {
	entries, err := q.GetFailedRewards(ctx, maxRetries)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, entry := range entries {
		ok, err := q.store.RewardQueueEntry.Requeue(q.db.WithContext(ctx), entry.ID, maxRetries)
		if err != nil {
			q.logger.Error("[RetryAllFailed][Requeue]", map[string]string{
				"error":    err.Error(),
				"queue_id": fmt.Sprint(entry.ID),
			})
			continue
		}
		if ok {
			requeued++
		}
	}

	q.logger.Info("[RetryAllFailed] requeued failed rewards", map[string]string{
		"requeued": fmt.Sprint(requeued),
		"failed":   fmt.Sprint(len(entries)),
	})
	return requeued, nil
}

func (q *RewardQueue) Stats(ctx context.Context) (*model.RewardQueueStats, error) {
	return q.store.RewardQueueEntry.Stats(q.db.WithContext(ctx))
}

func (q *RewardQueue) PruneExhausted(ctx context.Context, maxRetries int, olderThan time.Duration) (int64, error) {
	return q.store.RewardQueueEntry.DeleteExhausted(q.db.WithContext(ctx), maxRetries, time.Now().Add(-olderThan))
}
