package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/reward"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/store/storetest"
	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const rewardAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type mockRewardService struct {
	mock.Mock
}

func (m *mockRewardService) CalculateRewardAmount(ctx context.Context, fundedAmount decimal.Decimal, chain model.Chain) (*reward.RewardCalculation, error) {
	args := m.Called(fundedAmount, chain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.RewardCalculation), args.Error(1)
}

func (m *mockRewardService) SendRewardTokens(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*reward.RewardResult, error) {
	args := m.Called(toAddress, fundedAmount, chain, fundingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.RewardResult), args.Error(1)
}

func (m *mockRewardService) SubmitReward(ctx context.Context, toAddress string, fundedAmount decimal.Decimal, chain model.Chain, fundingID string) (*reward.SubmittedReward, error) {
	args := m.Called(toAddress, fundedAmount, chain, fundingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.SubmittedReward), args.Error(1)
}

func (m *mockRewardService) AwaitReward(ctx context.Context, submitted *reward.SubmittedReward) (*reward.RewardResult, error) {
	args := m.Called(submitted.TxHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.RewardResult), args.Error(1)
}

func (m *mockRewardService) ReconcileReward(ctx context.Context, txHash string, rewardAmount decimal.Decimal) (*reward.RewardResult, error) {
	args := m.Called(txHash, rewardAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.RewardResult), args.Error(1)
}

func (m *mockRewardService) Info(ctx context.Context) (*reward.Info, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.Info), args.Error(1)
}

type pipeline struct {
	db      *gorm.DB
	store   *store.Store
	cfg     *config.AppConfig
	log     *logger.Logger
	queue   *rewardqueue.RewardQueue
	rewards *mockRewardService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := storetest.NewDB(t)
	s := store.New()
	log := logger.New(environments.Test)
	cfg := &config.AppConfig{
		Reward: config.RewardConfig{MaxRetries: 3, BatchSize: 5},
		Cleanup: config.CleanupConfig{
			LogRetention:    30 * 24 * time.Hour,
			QueueRetention:  7 * 24 * time.Hour,
			AddressCooldown: time.Hour,
		},
	}

	return &pipeline{
		db:      db,
		store:   s,
		cfg:     cfg,
		log:     log,
		queue:   rewardqueue.New(db, s, log, cfg.Reward.MaxRetries),
		rewards: &mockRewardService{},
	}
}

func (p *pipeline) processor() *RewardProcessor {
	return NewRewardProcessor(p.db, p.store, p.queue, p.rewards, p.cfg, p.log, nil)
}

// seedPending creates a pending funding record expiring at expiresAt.
func (p *pipeline) seedPending(t *testing.T, chain model.Chain, depositAddress string, expiresAt time.Time) *model.FundingRecord {
	t.Helper()
	record, err := p.store.FundingRecord.Create(p.db, &model.FundingRecord{
		ID:               uuid.NewString(),
		RequesterAddress: rewardAddress,
		RewardAddress:    rewardAddress,
		Chain:            chain,
		DepositAddress:   depositAddress,
		RequestedAmount:  decimal.Zero,
		MinConfirmations: 1,
		ExpiresAt:        expiresAt,
	})
	require.NoError(t, err)
	return record
}

// seedConfirmed creates a confirmed funding record with its queue entry.
func (p *pipeline) seedConfirmed(t *testing.T, amount string, priority int) (*model.FundingRecord, int64) {
	t.Helper()
	record := p.seedPending(t, model.ChainETH, "deposit-"+uuid.NewString(), time.Now().Add(time.Hour))

	funded := decimal.RequireFromString(amount)
	ok, err := p.store.FundingRecord.Confirm(p.db, record.ID, funded, "0xfunding-"+record.ID[:8], 1)
	require.NoError(t, err)
	require.True(t, ok)

	id, err := p.queue.AddToQueue(context.Background(), record.ID, record.RewardAddress, funded, record.Chain, priority)
	require.NoError(t, err)
	require.NotNil(t, id)
	return p.reload(t, record.ID), *id
}

func (p *pipeline) reload(t *testing.T, id string) *model.FundingRecord {
	t.Helper()
	record, err := p.store.FundingRecord.GetByID(p.db, id)
	require.NoError(t, err)
	return record
}

func (p *pipeline) entry(t *testing.T, id int64) *model.RewardQueueEntry {
	t.Helper()
	entry, err := p.store.RewardQueueEntry.GetByID(p.db, id)
	require.NoError(t, err)
	return entry
}

func (p *pipeline) actions(t *testing.T, fundingID string, action model.ActionType) []model.ActionLog {
	t.Helper()
	var logs []model.ActionLog
	require.NoError(t, p.db.Where("funding_record_id = ? AND action = ?", fundingID, action).Find(&logs).Error)
	return logs
}
