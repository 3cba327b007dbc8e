package chainmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrCycleInProgress = errors.New("chain monitor cycle already in progress")

type ChainMonitor struct {
	db        *gorm.DB
	store     *store.Store
	adapters  *chainadapter.Registry
	queue     rewardqueue.IRewardQueue
	priceFeed pricefeed.IPriceFeed
	appConfig *config.AppConfig
	logger    *logger.Logger
	metrics   *monitoring.PipelineMetrics

	running atomic.Bool
}

// New builds the monitor. priceFeed and metrics may be nil.
func New(
	db *gorm.DB,
	store *store.Store,
	adapters *chainadapter.Registry,
	queue rewardqueue.IRewardQueue,
	priceFeed pricefeed.IPriceFeed,
	appConfig *config.AppConfig,
	logger *logger.Logger,
	metrics *monitoring.PipelineMetrics,
) *ChainMonitor {
	return &ChainMonitor{
		db:        db,
		store:     store,
		adapters:  adapters,
		queue:     queue,
		priceFeed: priceFeed,
		appConfig: appConfig,
		logger:    logger,
		metrics:   metrics,
	}
}

func (m *ChainMonitor) CheckFundingStatus(ctx context.Context, record *model.FundingRecord) *chainadapter.ConfirmationResult {
	adapter, err := m.adapters.Get(record.Chain)
	if err != nil {
		return chainadapter.NotConfirmed(err)
	}

	timeout := m.appConfig.Funding.ChainCallTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	minConfirmations := record.MinConfirmations
	if minConfirmations <= 0 {
		minConfirmations = adapter.MinConfirmations()
	}

	result := adapter.CheckTransactions(callCtx, chainadapter.Deposit{
		Address:          record.DepositAddress,
		MinConfirmations: minConfirmations,
		Since:            record.CreatedAt,
		Baseline:         record.BaselineBalance,
	})
	if result == nil {
		return chainadapter.NotConfirmed(errors.New("adapter returned no result"))
	}
	if !result.Confirmed && result.Err == nil && callCtx.Err() != nil {
		result.Err = errors.Wrap(callCtx.Err(), fmt.Sprintf("check %s deposit", record.Chain))
	}
	return result
}

func (m *ChainMonitor) BatchCheckFundings(ctx context.Context, records []*model.FundingRecord) []*FundingCheckResult {
	batchSize := m.appConfig.Monitor.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	results := make([]*FundingCheckResult, 0, len(records))
	for start := 0; start < len(records); start += batchSize {
		if start > 0 && !m.pause(ctx) {
			break
		}

		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		out := make([]*FundingCheckResult, len(batch))

		var wg sync.WaitGroup
		for i, record := range batch {
			wg.Add(1)
			go func(i int, record *model.FundingRecord) {
				defer wg.Done()
				out[i] = newCheckResult(record, m.CheckFundingStatus(ctx, record))
			}(i, record)
		}
		wg.Wait()

		results = append(results, out...)
	}
	return results
}

// pause waits between batches and reports false when ctx ends first.
func (m *ChainMonitor) pause(ctx context.Context) bool {
	delay := m.appConfig.Monitor.BatchDelay
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *ChainMonitor) ConfirmFunding(ctx context.Context, record *model.FundingRecord, result *chainadapter.ConfirmationResult) (bool, error) {
	if result == nil || !result.Confirmed {
		return false, nil
	}

	priority := m.priorityFor(ctx, record.Chain, result)

	won := false
	claimedBy := ""
	err := store.DoInTx(m.db.WithContext(ctx), func(tx *gorm.DB) error {
		if result.TxHash != "" {
			other, err := m.store.FundingRecord.GetByFundingTxHash(tx, result.TxHash)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if other != nil && other.ID != record.ID {
				claimedBy = other.ID
				return nil
			}
		}

		ok, err := m.store.FundingRecord.Confirm(tx, record.ID, result.Amount, result.TxHash, result.Confirmations)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true

		queueID, err := m.queue.AddToQueueTx(tx, record.ID, record.RewardAddress, result.Amount, record.Chain, priority)
		if err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"amount":        result.Amount.String(),
			"tx_hash":       result.TxHash,
			"confirmations": result.Confirmations,
			"queue_id":      queueID,
		})
		_, err = m.store.ActionLog.Create(tx, &model.ActionLog{
			FundingRecordID: record.ID,
			Action:          model.ActionFundingConfirmed,
			Message:         fmt.Sprintf("%s %s deposit confirmed", result.Amount, record.Chain),
			Metadata:        string(metadata),
		})
		return err
	})
	if err != nil {
		m.logger.Error("[ConfirmFunding][DoInTx]", map[string]string{
			"error":      err.Error(),
			"funding_id": record.ID,
		})
		return false, err
	}

	if claimedBy != "" {
		m.logger.Warn("[ConfirmFunding] deposit tx already funds another record", map[string]string{
			"funding_id": record.ID,
			"claimed_by": claimedBy,
			"tx_hash":    result.TxHash,
		})
		return false, nil
	}

	if !won {
		m.logger.Debug("[ConfirmFunding] already confirmed", map[string]string{
			"funding_id": record.ID,
		})
		return false, nil
	}

	m.metrics.FundingConfirmed(string(record.Chain))
	m.logger.Info("[ConfirmFunding] funding confirmed", map[string]string{
		"funding_id":    record.ID,
		"chain":         string(record.Chain),
		"amount":        result.Amount.String(),
		"tx_hash":       result.TxHash,
		"confirmations": fmt.Sprint(result.Confirmations),
	})
	return true, nil
}

func (m *ChainMonitor) Refresh(ctx context.Context, record *model.FundingRecord) (*chainadapter.ConfirmationResult, error) {
	result := m.CheckFundingStatus(ctx, record)
	if result.Confirmed {
		_, err := m.ConfirmFunding(ctx, record, result)
		return result, err
	}
	if result.Err == nil && result.Confirmations > record.Confirmations {
		if err := m.store.FundingRecord.UpdateConfirmations(m.db.WithContext(ctx), record.ID, result.Confirmations); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (m *ChainMonitor) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer m.running.Store(false)

	records, err := m.store.FundingRecord.ListPending(m.db.WithContext(ctx), time.Now(), m.appConfig.Monitor.MaxRecords)
	if err != nil {
		m.logger.Error("[RunCycle][ListPending]", map[string]string{
			"error": err.Error(),
		})
		return nil, err
	}

	cycle := &CycleResult{Results: []*FundingCheckResult{}}
	if len(records) == 0 {
		return cycle, nil
	}

	for _, check := range m.BatchCheckFundings(ctx, records) {
		cycle.Checked++
		cycle.Results = append(cycle.Results, check)

		if check.Result.Err != nil {
			cycle.Errors++
			m.logger.Warn("[RunCycle][CheckFundingStatus]", map[string]string{
				"error":      check.Result.Err.Error(),
				"funding_id": check.FundingID,
				"chain":      string(check.Chain),
			})
		}

		if !check.Confirmed {
			cycle.Pending++
			if check.Result.Err == nil && check.Result.Confirmations != check.Record.Confirmations {
				if err := m.store.FundingRecord.UpdateConfirmations(m.db.WithContext(ctx), check.FundingID, check.Result.Confirmations); err != nil {
					m.logger.Error("[RunCycle][UpdateConfirmations]", map[string]string{
						"error":      err.Error(),
						"funding_id": check.FundingID,
					})
				}
			}
			continue
		}

		won, err := m.ConfirmFunding(ctx, check.Record, check.Result)
		if err != nil {
			cycle.Errors++
			check.Error = err.Error()
			continue
		}
		if won {
			cycle.Confirmed++
		}
	}

	m.logger.Info("[RunCycle] chain monitor cycle done", map[string]string{
		"checked":   fmt.Sprint(cycle.Checked),
		"confirmed": fmt.Sprint(cycle.Confirmed),
		"pending":   fmt.Sprint(cycle.Pending),
		"errors":    fmt.Sprint(cycle.Errors),
	})
	return cycle, nil
}

// priorityFor bumps large deposits ahead in the reward queue.
func (m *ChainMonitor) priorityFor(ctx context.Context, chain model.Chain, result *chainadapter.ConfirmationResult) int {
	threshold := m.appConfig.Reward.PriorityByUSD
	if m.priceFeed == nil || !threshold.IsPositive() {
		return model.RewardPriorityNormal
	}
	price, err := m.priceFeed.GetUSDPrice(ctx, chain)
	if err != nil {
		return model.RewardPriorityNormal
	}
	if result.Amount.Mul(price.USD).GreaterThanOrEqual(threshold) {
		return model.RewardPriorityHigh
	}
	return model.RewardPriorityNormal
}

func newCheckResult(record *model.FundingRecord, result *chainadapter.ConfirmationResult) *FundingCheckResult {
	out := &FundingCheckResult{
		FundingID: record.ID,
		Chain:     record.Chain,
		Result:    result,
		Confirmed: result.Confirmed,
		Amount:    result.Amount.String(),
		TxHash:    result.TxHash,
		Record:    record,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out
}
