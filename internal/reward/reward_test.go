package reward

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

var treasury = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type mockBaseRPC struct {
	mock.Mock
}

func (m *mockBaseRPC) TreasuryAddress() common.Address {
	return treasury
}

func (m *mockBaseRPC) TokenDecimals(ctx context.Context) (uint8, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *mockBaseRPC) TokenBalanceOf(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Web3BigInt), args.Error(1)
}

func (m *mockBaseRPC) EstimateTransferGas(ctx context.Context, to common.Address, amount *big.Int) (uint64, error) {
	args := m.Called(ctx, to, amount)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBaseRPC) Transfer(ctx context.Context, to common.Address, amount *big.Int, gasLimit uint64) (*types.Transaction, error) {
	args := m.Called(ctx, to, amount, gasLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *mockBaseRPC) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *mockBaseRPC) TransferReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*types.Receipt), args.Bool(1), args.Error(2)
}

type staticPrices map[model.Chain]decimal.Decimal

func (p staticPrices) GetUSDPrice(_ context.Context, chain model.Chain) (*pricefeed.Price, error) {
	usd, ok := p[chain]
	if !ok {
		return nil, errors.New("unknown chain")
	}
	return &pricefeed.Price{Chain: chain, USD: usd, Source: pricefeed.SourceFallback, FetchedAt: time.Now()}, nil
}

func (p staticPrices) GetAllUSDPrices(ctx context.Context) map[model.Chain]*pricefeed.Price {
	out := map[model.Chain]*pricefeed.Price{}
	for chain := range p {
		out[chain], _ = p.GetUSDPrice(ctx, chain)
	}
	return out
}

func newTestService(rpc *mockBaseRPC) *RewardService {
	cfg := &config.AppConfig{Reward: config.RewardConfig{
		Multiplier:     decimal.NewFromInt(1),
		MinFundingUSD:  decimal.NewFromInt(1),
		TxTimeout:      time.Second,
		GasBufferRatio: decimal.RequireFromString("1.2"),
	}}
	prices := staticPrices{
		model.ChainBTC: decimal.NewFromInt(60000),
		model.ChainETH: decimal.NewFromInt(3000),
		model.ChainSOL: decimal.NewFromInt(150),
	}
	return New(rpc, prices, cfg, logger.New(environments.Test))
}

func icy(whole int64) *model.Web3BigInt {
	return model.Web3BigIntFromDecimal(decimal.NewFromInt(whole), 18)
}

func rewardTx() *types.Transaction {
	to := common.HexToAddress(recipient)
	return types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Value: big.NewInt(0), Gas: 60000, GasPrice: big.NewInt(1)})
}

func TestCalculateRewardAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		chain     model.Chain
		wantUSD   string
		wantICY   string
		wantRaw   string
		wantError error
	}{
		{
			name:    "btc deposit",
			amount:  "0.01",
			chain:   model.ChainBTC,
			wantUSD: "600",
			wantICY: "600",
			wantRaw: "600" + strings.Repeat("0", 18),
		},
		{
			name:    "fractional sol deposit",
			amount:  "0.123",
			chain:   model.ChainSOL,
			wantUSD: "18.45",
			wantICY: "18.45",
			wantRaw: "1845" + strings.Repeat("0", 16),
		},
		{
			name:      "below minimum",
			amount:    "0.0002",
			chain:     model.ChainETH,
			wantError: ErrBelowMinimumFunding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &mockBaseRPC{}
			rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil).Maybe()
			svc := newTestService(rpc)

			calc, err := svc.CalculateRewardAmount(context.Background(), decimal.RequireFromString(tt.amount), tt.chain)
			if tt.wantError != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantError))
				assert.True(t, IsPermanent(err))
				return
			}

			require.NoError(t, err)
			assert.True(t, calc.USDValue.Equal(decimal.RequireFromString(tt.wantUSD)), calc.USDValue.String())
			assert.True(t, calc.RewardAmount.Equal(decimal.RequireFromString(tt.wantICY)), calc.RewardAmount.String())
			assert.Equal(t, tt.wantRaw, calc.RewardTokensRaw)
			assert.Equal(t, uint8(18), calc.TokenDecimals)
		})
	}
}

func TestSubmitAndAwaitReward_Success(t *testing.T) {
	rpc := &mockBaseRPC{}
	svc := newTestService(rpc)
	tx := rewardTx()
	want, _ := new(big.Int).SetString("600"+strings.Repeat("0", 18), 10)

	rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil)
	rpc.On("TokenBalanceOf", mock.Anything, treasury).Return(icy(10000), nil)
	rpc.On("EstimateTransferGas", mock.Anything, common.HexToAddress(recipient), want).Return(uint64(50000), nil)
	rpc.On("Transfer", mock.Anything, common.HexToAddress(recipient), want, uint64(60000)).Return(tx, nil)
	rpc.On("WaitMined", mock.Anything, tx).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		GasUsed:     42000,
		BlockNumber: big.NewInt(1234),
	}, nil)

	submitted, err := svc.SubmitReward(context.Background(), recipient, decimal.RequireFromString("0.01"), model.ChainBTC, "funding-1")
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().Hex(), submitted.TxHash)
	assert.True(t, submitted.RewardAmount.Equal(decimal.NewFromInt(600)))
	rpc.AssertNotCalled(t, "WaitMined", mock.Anything, mock.Anything)

	res, err := svc.AwaitReward(context.Background(), submitted)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().Hex(), res.TxHash)
	assert.Equal(t, uint64(1234), res.BlockNumber)
	assert.Equal(t, uint64(42000), res.GasUsed)
	assert.True(t, res.RewardAmount.Equal(decimal.NewFromInt(600)))
	assert.True(t, res.USDValue.Equal(decimal.NewFromInt(600)))
	rpc.AssertExpectations(t)
}

func TestSendRewardTokens_WaitsForReceipt(t *testing.T) {
	rpc := &mockBaseRPC{}
	svc := newTestService(rpc)
	tx := rewardTx()

	rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil)
	rpc.On("TokenBalanceOf", mock.Anything, treasury).Return(icy(10000), nil)
	rpc.On("EstimateTransferGas", mock.Anything, mock.Anything, mock.Anything).Return(uint64(50000), nil)
	rpc.On("Transfer", mock.Anything, mock.Anything, mock.Anything, uint64(60000)).Return(tx, nil)
	rpc.On("WaitMined", mock.Anything, tx).Return(nil, context.DeadlineExceeded)

	_, err := svc.SendRewardTokens(context.Background(), recipient, decimal.NewFromInt(1), model.ChainETH, "funding-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRewardTxPending))
	rpc.AssertNumberOfCalls(t, "Transfer", 1)
}

func TestSubmitReward_InvalidRecipient(t *testing.T) {
	for _, addr := range []string{"", "not-an-address", "0x0000000000000000000000000000000000000000", "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"} {
		rpc := &mockBaseRPC{}
		svc := newTestService(rpc)

		_, err := svc.SubmitReward(context.Background(), addr, decimal.NewFromInt(1), model.ChainETH, "funding-1")
		require.Error(t, err, addr)
		assert.True(t, errors.Is(err, ErrInvalidRecipient))
		assert.True(t, IsPermanent(err))
		rpc.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestSubmitReward_InsufficientTreasury(t *testing.T) {
	rpc := &mockBaseRPC{}
	svc := newTestService(rpc)

	rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil)
	rpc.On("TokenBalanceOf", mock.Anything, treasury).Return(icy(100), nil)

	_, err := svc.SubmitReward(context.Background(), recipient, decimal.RequireFromString("0.01"), model.ChainBTC, "funding-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientTreasuryBalance))
	assert.False(t, IsPermanent(err))
	rpc.AssertNotCalled(t, "EstimateTransferGas", mock.Anything, mock.Anything, mock.Anything)
	rpc.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitReward_TransferError(t *testing.T) {
	rpc := &mockBaseRPC{}
	svc := newTestService(rpc)

	rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil)
	rpc.On("TokenBalanceOf", mock.Anything, treasury).Return(icy(10000), nil)
	rpc.On("EstimateTransferGas", mock.Anything, mock.Anything, mock.Anything).Return(uint64(100000), nil)
	rpc.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("nonce too low"))

	_, err := svc.SubmitReward(context.Background(), recipient, decimal.NewFromInt(1), model.ChainETH, "funding-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
	assert.False(t, errors.Is(err, ErrRewardTxPending))
	rpc.AssertNotCalled(t, "WaitMined", mock.Anything, mock.Anything)
}

func TestAwaitReward(t *testing.T) {
	tests := []struct {
		name    string
		receipt *types.Receipt
		err     error
		want    error
	}{
		{"reverted", &types.Receipt{Status: types.ReceiptStatusFailed}, nil, ErrRewardTxReverted},
		{"wait times out", nil, context.DeadlineExceeded, ErrRewardTxPending},
		{"node error", nil, errors.New("connection reset"), ErrRewardTxPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &mockBaseRPC{}
			svc := newTestService(rpc)
			tx := rewardTx()
			rpc.On("WaitMined", mock.Anything, tx).Return(tt.receipt, tt.err)

			_, err := svc.AwaitReward(context.Background(), &SubmittedReward{Tx: tx, TxHash: tx.Hash().Hex(), RewardAmount: decimal.NewFromInt(5)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.Contains(t, err.Error(), tx.Hash().Hex())
			assert.False(t, IsPermanent(err))
		})
	}
}

func TestReconcileReward(t *testing.T) {
	hash := rewardTx().Hash()
	tests := []struct {
		name    string
		receipt *types.Receipt
		known   bool
		err     error
		want    error
	}{
		{"mined", &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000, BlockNumber: big.NewInt(7)}, true, nil, nil},
		{"reverted", &types.Receipt{Status: types.ReceiptStatusFailed}, true, nil, ErrRewardTxReverted},
		{"still in mempool", nil, true, nil, ErrRewardTxPending},
		{"unknown to node", nil, false, nil, ErrRewardTxDropped},
		{"node error", nil, false, errors.New("503"), ErrRewardTxPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := &mockBaseRPC{}
			svc := newTestService(rpc)
			rpc.On("TransferReceipt", mock.Anything, hash).Return(tt.receipt, tt.known, tt.err)

			res, err := svc.ReconcileReward(context.Background(), hash.Hex(), decimal.NewFromInt(5))
			if tt.want != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, hash.Hex(), res.TxHash)
			assert.Equal(t, uint64(7), res.BlockNumber)
			assert.True(t, res.RewardAmount.Equal(decimal.NewFromInt(5)))
			rpc.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBufferedGas(t *testing.T) {
	svc := newTestService(&mockBaseRPC{})
	assert.Equal(t, uint64(60000), svc.bufferedGas(50000))
	assert.Equal(t, uint64(25102), svc.bufferedGas(20918))

	svc.appConfig.Reward.GasBufferRatio = decimal.Zero
	assert.Equal(t, uint64(120000), svc.bufferedGas(100000))
}

func TestInfo(t *testing.T) {
	rpc := &mockBaseRPC{}
	svc := newTestService(rpc)
	rpc.On("TokenDecimals", mock.Anything).Return(uint8(18), nil)
	rpc.On("TokenBalanceOf", mock.Anything, treasury).Return(icy(2500), nil)

	info, err := svc.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, treasury.Hex(), info.TreasuryAddress)
	assert.True(t, info.TreasuryBalance.Equal(decimal.NewFromInt(2500)))
	assert.Len(t, info.Prices, 3)
}
