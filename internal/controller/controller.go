package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/addresspool"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/reward"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

var (
	ErrDepositNotFound = errors.New("deposit not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

const defaultFundingExpiry = time.Hour

type Controller struct {
	db        *gorm.DB
	store     *store.Store
	adapters  *chainadapter.Registry
	pool      addresspool.IAddressPool
	monitor   chainmonitor.IChainMonitor
	queue     rewardqueue.IRewardQueue
	rewards   reward.IRewardService
	processor RewardCycleRunner
	workers   Workers
	config    *config.AppConfig
	logger    *logger.Logger
	metrics   *monitoring.PipelineMetrics

	now func() time.Time
}

func New(
	db *gorm.DB,
	store *store.Store,
	adapters *chainadapter.Registry,
	pool addresspool.IAddressPool,
	monitor chainmonitor.IChainMonitor,
	queue rewardqueue.IRewardQueue,
	rewards reward.IRewardService,
	processor RewardCycleRunner,
	workers Workers,
	config *config.AppConfig,
	logger *logger.Logger,
	metrics *monitoring.PipelineMetrics,
) *Controller {
	return &Controller{
		db:        db,
		store:     store,
		adapters:  adapters,
		pool:      pool,
		monitor:   monitor,
		queue:     queue,
		rewards:   rewards,
		processor: processor,
		workers:   workers,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (c *Controller) RequestDeposit(ctx context.Context, input DepositInput) (*DepositResponse, error) {
	chain := model.Chain(strings.ToUpper(string(input.Chain)))
	adapter, err := c.adapters.Get(chain)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	if err := adapter.ValidateAddress(input.UserAddress); err != nil {
		return nil, errors.Wrapf(ErrInvalidRequest, "userAddress is not a valid %s address: %v", chain, err)
	}

	rewardAddress := input.RewardAddress
	if rewardAddress == "" {
		if chain != model.ChainETH {
			return nil, errors.Wrapf(ErrInvalidRequest, "rewardAddress is required for %s deposits", chain)
		}
		rewardAddress = input.UserAddress
	}
	if !reward.IsValidRecipient(rewardAddress) {
		return nil, errors.Wrap(ErrInvalidRequest, "rewardAddress must be an EVM address")
	}

	amount := decimal.Zero
	if input.Amount != "" {
		amount, err = decimal.NewFromString(input.Amount)
		if err != nil || amount.IsNegative() {
			return nil, errors.Wrap(ErrInvalidRequest, "amount must be a non-negative decimal")
		}
	}

	entry, err := c.pool.AssignAddress(ctx, chain)
	if err != nil {
		c.logger.Error("[RequestDeposit][AssignAddress]", map[string]string{
			"chain": string(chain),
			"error": err.Error(),
		})
		return nil, err
	}

	// funds already sitting on a reused address must not count toward this deposit
	baseline := decimal.Zero
	if reader, ok := adapter.(chainadapter.BalanceReader); ok {
		baseline, err = reader.Balance(ctx, entry.Address)
		if err != nil {
			c.logger.Error("[RequestDeposit][Balance] address claimed but baseline unknown", map[string]string{
				"chain":   string(chain),
				"address": entry.Address,
				"error":   err.Error(),
			})
			return nil, errors.Wrap(err, "read deposit address balance")
		}
	}

	expiry := c.config.Funding.Expiry
	if expiry <= 0 {
		expiry = defaultFundingExpiry
	}
	now := c.now()
	record := &model.FundingRecord{
		ID:               uuid.NewString(),
		RequesterAddress: input.UserAddress,
		RewardAddress:    rewardAddress,
		Chain:            chain,
		DepositAddress:   entry.Address,
		RequestedAmount:  amount,
		Status:           model.FundingStatusPending,
		MinConfirmations: adapter.MinConfirmations(),
		BaselineBalance:  baseline,
		CreatedAt:        now,
		ExpiresAt:        now.Add(expiry),
	}

	err = store.DoInTx(c.db.WithContext(ctx), func(tx *gorm.DB) error {
		if _, err := c.store.FundingRecord.Create(tx, record); err != nil {
			return err
		}
		if err := c.pool.BindFunding(tx, entry.Address, record.ID); err != nil {
			return err
		}
		metadata, _ := json.Marshal(map[string]interface{}{
			"deposit_address":  entry.Address,
			"derivation_index": entry.DerivationIndex,
			"requested_amount": amount.String(),
			"reward_address":   rewardAddress,
		})
		_, err := c.store.ActionLog.Create(tx, &model.ActionLog{
			FundingRecordID: record.ID,
			Action:          model.ActionDepositRequested,
			Message:         fmt.Sprintf("%s deposit requested by %s", chain, input.UserAddress),
			Metadata:        string(metadata),
		})
		return err
	})
	if err != nil {
		// the address stays claimed without an owner; it needs a manual release
		c.logger.Error("[RequestDeposit][DoInTx] address claimed but funding not stored", map[string]string{
			"chain":   string(chain),
			"address": entry.Address,
			"error":   err.Error(),
		})
		return nil, err
	}

	c.metrics.DepositRequested(string(chain))
	c.logger.Info("[RequestDeposit] deposit address assigned", map[string]string{
		"deposit_id": record.ID,
		"chain":      string(chain),
		"address":    entry.Address,
	})

	return &DepositResponse{
		DepositID:        record.ID,
		DepositAddress:   entry.Address,
		QRData:           paymentURI(chain, entry.Address, amount),
		ExpiresAt:        record.ExpiresAt,
		Chain:            chain,
		MinConfirmations: record.MinConfirmations,
		RewardAddress:    rewardAddress,
	}, nil
}

func (c *Controller) CheckStatus(ctx context.Context, depositID string) (*StatusResponse, error) {
	record, err := c.getRecord(ctx, depositID)
	if err != nil {
		return nil, err
	}

	if record.Status == model.FundingStatusPending && !record.IsExpiredAt(c.now()) {
		if _, err := c.monitor.Refresh(ctx, record); err != nil {
			c.logger.Warn("[CheckStatus][Refresh]", map[string]string{
				"deposit_id": record.ID,
				"error":      err.Error(),
			})
		}
		if record, err = c.getRecord(ctx, depositID); err != nil {
			return nil, err
		}
	}

	if record.Status == model.FundingStatusConfirmed {
		c.nudgeRewards()
	}

	return c.statusResponse(record), nil
}

func (c *Controller) BatchCheckFundings(ctx context.Context) (*chainmonitor.CycleResult, error) {
	return c.monitor.RunCycle(ctx)
}

func (c *Controller) ProcessRewardQueue(ctx context.Context) (*ProcessQueueResponse, error) {
	result, err := c.processor.RunCycle(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &ProcessQueueResponse{
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Submitted: result.Submitted,
		Queue:     stats,
	}, nil
}

func (c *Controller) RetryFailedRewards(ctx context.Context) (int, error) {
	requeued, err := c.queue.RetryAllFailed(ctx, c.config.Reward.MaxRetries)
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		c.nudgeRewards()
	}
	return requeued, nil
}

func (c *Controller) RewardInfo(ctx context.Context) (*RewardInfoResponse, error) {
	res := &RewardInfoResponse{}

	info, err := c.rewards.Info(ctx)
	if err != nil {
		c.logger.Warn("[RewardInfo][Info]", map[string]string{
			"error": err.Error(),
		})
		res.RewardError = err.Error()
	}
	res.Reward = info

	if res.Queue, err = c.queue.Stats(ctx); err != nil {
		return nil, err
	}
	if res.Pool, err = c.pool.Stats(ctx); err != nil {
		return nil, err
	}
	if res.Fundings, err = c.store.FundingRecord.CountByStatus(c.db.WithContext(ctx)); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Controller) WorkerStatus(ctx context.Context) (*worker.Status, error) {
	return c.workers.Status(ctx)
}

func (c *Controller) getRecord(ctx context.Context, id string) (*model.FundingRecord, error) {
	record, err := c.store.FundingRecord.GetByID(c.db.WithContext(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(ErrDepositNotFound, id)
	}
	return record, err
}

// nudgeRewards starts a reward cycle without waiting for it.
func (c *Controller) nudgeRewards() {
	if c.processor == nil || c.workers == nil {
		return
	}
	c.workers.Go(consts.JOB_REWARD_PROCESSOR, func(ctx context.Context) error {
		_, err := c.processor.RunCycle(ctx)
		return err
	})
}

func (c *Controller) statusResponse(record *model.FundingRecord) *StatusResponse {
	res := &StatusResponse{
		DepositID:        record.ID,
		Status:           record.Status,
		Message:          record.Status.UserMessage(),
		Chain:            record.Chain,
		DepositAddress:   record.DepositAddress,
		Confirmations:    record.Confirmations,
		MinConfirmations: record.MinConfirmations,
		FundingTxHash:    record.FundingTxHash,
		RewardTxHash:     record.RewardTxHash,
		ExpiresAt:        record.ExpiresAt,
	}
	if record.FundedAmount.Valid {
		funded := record.FundedAmount.Decimal.String()
		res.FundedAmount = &funded
	}

	switch {
	case record.RewardTxHash != nil:
		res.ExplorerURL = consts.BASE_EXPLORER_TX_URL + *record.RewardTxHash
	case record.FundingTxHash != nil && *record.FundingTxHash != "":
		if adapter, err := c.adapters.Get(record.Chain); err == nil {
			res.ExplorerURL = adapter.ExplorerTxURL(*record.FundingTxHash)
		}
	}
	return res
}
