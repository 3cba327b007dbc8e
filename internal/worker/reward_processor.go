package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/reward"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrProcessorBusy = errors.New("reward processor already in progress")

const defaultRewardBatchSize = 5

type ProcessResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Submitted int `json:"submitted"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeSubmitted
)

var errNotPayable = errors.New("funding record is not payable")

// RewardProcessor drains the reward queue, paying one entry at a time.
type RewardProcessor struct {
	db        *gorm.DB
	store     *store.Store
	queue     rewardqueue.IRewardQueue
	rewards   reward.IRewardService
	appConfig *config.AppConfig
	logger    *logger.Logger
	metrics   *monitoring.PipelineMetrics

	running atomic.Bool
}

func NewRewardProcessor(
	db *gorm.DB,
	store *store.Store,
	queue rewardqueue.IRewardQueue,
	rewards reward.IRewardService,
	appConfig *config.AppConfig,
	logger *logger.Logger,
	metrics *monitoring.PipelineMetrics,
) *RewardProcessor {
	return &RewardProcessor{
		db:        db,
		store:     store,
		queue:     queue,
		rewards:   rewards,
		appConfig: appConfig,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunCycle first reconciles transfers whose receipt was not seen, then processes up to
// REWARD_BATCH_SIZE queue entries. ctx is checked between entries; an entry already handed
// to the reward service is always settled.
func (p *RewardProcessor) RunCycle(ctx context.Context) (*ProcessResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrProcessorBusy
	}
	defer p.running.Store(false)

	batchSize := p.appConfig.Reward.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRewardBatchSize
	}

	result := &ProcessResult{}
	p.reconcileSubmitted(ctx, batchSize, result)

	for i := 0; i < batchSize; i++ {
		if ctx.Err() != nil {
			break
		}

		entry, err := p.queue.GetNextPendingReward(ctx)
		if err != nil {
			p.logger.Error("[RewardProcessor][GetNextPendingReward]", map[string]string{
				"error": err.Error(),
			})
			return result, err
		}
		if entry == nil {
			break
		}

		claimed, err := p.queue.MarkAsProcessing(ctx, entry.ID)
		if err != nil {
			p.logger.Error("[RewardProcessor][MarkAsProcessing]", map[string]string{
				"error":    err.Error(),
				"queue_id": fmt.Sprint(entry.ID),
			})
			return result, err
		}
		result.Processed++
		if claimed == nil {
			result.Skipped++
			continue
		}

		result.add(p.processEntry(ctx, claimed))
	}

	if result.Processed > 0 {
		p.logger.Info("[RewardProcessor] reward cycle done", map[string]string{
			"processed": fmt.Sprint(result.Processed),
			"succeeded": fmt.Sprint(result.Succeeded),
			"failed":    fmt.Sprint(result.Failed),
			"skipped":   fmt.Sprint(result.Skipped),
			"submitted": fmt.Sprint(result.Submitted),
		})
	}
	return result, nil
}

func (r *ProcessResult) add(o outcome) {
	switch o {
	case outcomeSucceeded:
		r.Succeeded++
	case outcomeFailed:
		r.Failed++
	case outcomeSubmitted:
		r.Submitted++
	default:
		r.Skipped++
	}
}

// reconcileSubmitted settles entries parked with a broadcast transfer. They are never resent;
// only a transfer that provably paid nothing goes back to the retry path.
func (p *RewardProcessor) reconcileSubmitted(ctx context.Context, limit int, result *ProcessResult) {
	entries, err := p.queue.GetSubmittedRewards(ctx, limit)
	if err != nil {
		p.logger.Error("[RewardProcessor][GetSubmittedRewards]", map[string]string{
			"error": err.Error(),
		})
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		claimed, err := p.queue.ClaimSubmitted(ctx, entry.ID)
		if err != nil {
			p.logger.Error("[RewardProcessor][ClaimSubmitted]", map[string]string{
				"error":    err.Error(),
				"queue_id": fmt.Sprint(entry.ID),
			})
			continue
		}
		if claimed == nil {
			continue
		}
		result.Processed++
		result.add(p.reconcileEntry(ctx, claimed))
	}
}

func (p *RewardProcessor) reconcileEntry(ctx context.Context, entry *model.RewardQueueEntry) outcome {
	settle := context.WithoutCancel(ctx)
	if entry.RewardTxHash == nil {
		p.fail(settle, entry, nil, errors.New("submitted entry carries no transfer"))
		return outcomeFailed
	}
	txHash := *entry.RewardTxHash
	rewardAmount := entry.RewardAmount.Decimal

	record, err := p.store.FundingRecord.GetByID(p.db.WithContext(settle), entry.FundingRecordID)
	if err != nil {
		p.park(settle, entry, txHash, rewardAmount, errors.Wrap(err, "load funding record"))
		return outcomeSubmitted
	}

	sent, err := p.rewards.ReconcileReward(settle, txHash, rewardAmount)
	return p.settleTransfer(settle, entry, record, txHash, rewardAmount, sent, err)
}

func (p *RewardProcessor) processEntry(ctx context.Context, entry *model.RewardQueueEntry) outcome {
	// a claimed entry is settled even when the cycle is cancelled; a submitted transfer is never abandoned.
	// AwaitReward bounds itself by REWARD_TX_TIMEOUT.
	settle := context.WithoutCancel(ctx)

	record, err := p.store.FundingRecord.GetByID(p.db.WithContext(settle), entry.FundingRecordID)
	if err != nil {
		p.fail(settle, entry, nil, errors.Wrap(err, "load funding record"))
		return outcomeFailed
	}

	if record.Status == model.FundingStatusRewardSent && record.RewardTxHash != nil {
		rewardAmount := entry.RewardAmount.Decimal
		if err := p.queue.MarkAsCompleted(settle, entry.ID, *record.RewardTxHash, rewardAmount); err != nil {
			p.logger.Error("[RewardProcessor][MarkAsCompleted] already paid", map[string]string{
				"error":      err.Error(),
				"funding_id": record.ID,
			})
		}
		return outcomeSkipped
	}

	if record.Status != model.FundingStatusConfirmed {
		p.fail(settle, entry, record, errors.Wrap(errNotPayable, string(record.Status)))
		return outcomeFailed
	}

	submitted, err := p.rewards.SubmitReward(settle, record.RewardAddress, entry.FundedAmount, entry.Chain, record.ID)
	if err != nil {
		p.fail(settle, entry, record, err)
		return outcomeFailed
	}

	// from here on the transfer may pay out, so the entry must never reach the retry path
	// unless the chain proves otherwise
	if err := p.queue.RecordSubmission(settle, entry.ID, submitted.TxHash, submitted.RewardAmount); err != nil {
		p.logger.Error("[RewardProcessor][RecordSubmission]", map[string]string{
			"error":    err.Error(),
			"queue_id": fmt.Sprint(entry.ID),
			"tx_hash":  submitted.TxHash,
		})
	}

	sent, err := p.rewards.AwaitReward(settle, submitted)
	return p.settleTransfer(settle, entry, record, submitted.TxHash, submitted.RewardAmount, sent, err)
}

// settleTransfer resolves a broadcast transfer. A dropped transfer's nonce is taken by the
// next one, so at most one of them can ever mine.
func (p *RewardProcessor) settleTransfer(ctx context.Context, entry *model.RewardQueueEntry, record *model.FundingRecord, txHash string, rewardAmount decimal.Decimal, sent *reward.RewardResult, err error) outcome {
	switch {
	case err == nil:
		return p.complete(ctx, entry, record, sent)
	case errors.Is(err, reward.ErrRewardTxReverted), errors.Is(err, reward.ErrRewardTxDropped):
		p.fail(ctx, entry, record, err)
		return outcomeFailed
	default:
		p.park(ctx, entry, txHash, rewardAmount, err)
		return outcomeSubmitted
	}
}

func (p *RewardProcessor) park(ctx context.Context, entry *model.RewardQueueEntry, txHash string, rewardAmount decimal.Decimal, cause error) {
	p.logger.Warn("[RewardProcessor] reward outcome unknown, parked for reconciliation", map[string]string{
		"error":      cause.Error(),
		"funding_id": entry.FundingRecordID,
		"queue_id":   fmt.Sprint(entry.ID),
		"tx_hash":    txHash,
	})
	if err := p.queue.MarkAsSubmitted(ctx, entry.ID, txHash, rewardAmount, cause.Error()); err != nil {
		// still processing, so nothing will resend it
		p.logger.Error("[RewardProcessor][MarkAsSubmitted]", map[string]string{
			"error":    err.Error(),
			"queue_id": fmt.Sprint(entry.ID),
			"tx_hash":  txHash,
		})
	}
}

func (p *RewardProcessor) complete(ctx context.Context, entry *model.RewardQueueEntry, record *model.FundingRecord, sent *reward.RewardResult) outcome {
	err := store.DoInTx(p.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := p.queue.MarkAsCompletedTx(tx, entry.ID, sent.TxHash, sent.RewardAmount); err != nil {
			return err
		}

		ok, err := p.store.FundingRecord.MarkRewardSent(tx, record.ID, sent.TxHash)
		if err != nil {
			return err
		}
		if !ok {
			p.logger.Warn("[RewardProcessor][MarkRewardSent] record no longer confirmed", map[string]string{
				"funding_id": record.ID,
				"tx_hash":    sent.TxHash,
			})
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"tx_hash":       sent.TxHash,
			"block_number":  sent.BlockNumber,
			"gas_used":      sent.GasUsed,
			"reward_amount": sent.RewardAmount.String(),
			"usd_value":     sent.USDValue.String(),
			"explorer_url":  consts.BASE_EXPLORER_TX_URL + sent.TxHash,
		})
		_, err = p.store.ActionLog.Create(tx, &model.ActionLog{
			FundingRecordID: record.ID,
			Action:          model.ActionRewardSent,
			Message:         fmt.Sprintf("%s ICY sent to %s", sent.RewardAmount, record.RewardAddress),
			Metadata:        string(metadata),
		})
		return err
	})
	if err != nil {
		// tokens left the treasury; the entry stays in processing for an operator to reconcile
		p.logger.Error("[RewardProcessor][DoInTx] reward sent but not recorded", map[string]string{
			"error":      err.Error(),
			"funding_id": record.ID,
			"queue_id":   fmt.Sprint(entry.ID),
			"tx_hash":    sent.TxHash,
		})
		return outcomeFailed
	}

	rewardAmount, _ := sent.RewardAmount.Float64()
	p.metrics.RewardSent(string(entry.Chain), rewardAmount)
	p.logger.Info("[RewardProcessor] reward sent", map[string]string{
		"funding_id":    record.ID,
		"queue_id":      fmt.Sprint(entry.ID),
		"chain":         string(entry.Chain),
		"reward_amount": sent.RewardAmount.String(),
		"tx_hash":       sent.TxHash,
	})
	return outcomeSucceeded
}

// fail records an attempt that paid nothing. record is nil when the funding could not be loaded.
// A terminal failure exhausts the entry so RetryAllFailed leaves it alone.
func (p *RewardProcessor) fail(ctx context.Context, entry *model.RewardQueueEntry, record *model.FundingRecord, cause error) {
	maxRetries := maxRewardRetries(p.appConfig)
	permanent := reward.IsPermanent(cause) || errors.Is(cause, errNotPayable)
	terminal := permanent || entry.RetryCount >= maxRetries

	fields := map[string]string{
		"error":       cause.Error(),
		"funding_id":  entry.FundingRecordID,
		"queue_id":    fmt.Sprint(entry.ID),
		"retry_count": fmt.Sprint(entry.RetryCount),
		"permanent":   fmt.Sprint(permanent),
	}
	if errors.Is(cause, reward.ErrInsufficientTreasuryBalance) {
		p.logger.Error("[RewardProcessor][SubmitReward] treasury needs a top up", fields)
	} else {
		p.logger.Warn("[RewardProcessor] reward attempt failed", fields)
	}
	p.metrics.RewardFailed(string(entry.Chain), permanent)

	retryCount := entry.RetryCount
	if terminal && retryCount < maxRetries {
		retryCount = maxRetries
	}
	if err := p.queue.MarkAsFailed(ctx, entry.ID, cause.Error(), retryCount); err != nil {
		p.logger.Error("[RewardProcessor][MarkAsFailed]", map[string]string{
			"error":    err.Error(),
			"queue_id": fmt.Sprint(entry.ID),
		})
	}

	if record == nil || !terminal {
		return
	}

	moved := false
	err := store.DoInTx(p.db.WithContext(ctx), func(tx *gorm.DB) error {
		ok, err := p.store.FundingRecord.MarkFailed(tx, record.ID)
		if err != nil || !ok {
			return err
		}
		moved = true
		metadata, _ := json.Marshal(map[string]interface{}{
			"queue_id":    entry.ID,
			"retry_count": entry.RetryCount,
			"permanent":   permanent,
		})
		_, err = p.store.ActionLog.Create(tx, &model.ActionLog{
			FundingRecordID: record.ID,
			Action:          model.ActionRewardFailed,
			Message:         cause.Error(),
			Metadata:        string(metadata),
		})
		return err
	})
	if err != nil {
		p.logger.Error("[RewardProcessor][MarkFailed]", map[string]string{
			"error":      err.Error(),
			"funding_id": record.ID,
		})
		return
	}
	if moved {
		p.logger.Warn("[RewardProcessor] funding moved to failed", map[string]string{
			"funding_id":  record.ID,
			"retry_count": fmt.Sprint(entry.RetryCount),
		})
	}
}

func maxRewardRetries(appConfig *config.AppConfig) int {
	if appConfig.Reward.MaxRetries <= 0 {
		return 3
	}
	return appConfig.Reward.MaxRetries
}
