package monitoring

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter/chainadaptertest"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type MockBaseRPC struct {
	mock.Mock
}

func (m *MockBaseRPC) TreasuryAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa")
}

func (m *MockBaseRPC) TokenDecimals(ctx context.Context) (uint8, error) {
	args := m.Called()
	return args.Get(0).(uint8), args.Error(1)
}

func (m *MockBaseRPC) TokenBalanceOf(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	args := m.Called(address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Web3BigInt), args.Error(1)
}

func (m *MockBaseRPC) EstimateTransferGas(ctx context.Context, to common.Address, amount *big.Int) (uint64, error) {
	args := m.Called(to, amount)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBaseRPC) Transfer(ctx context.Context, to common.Address, amount *big.Int, gasLimit uint64) (*types.Transaction, error) {
	args := m.Called(to, amount, gasLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockBaseRPC) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *MockBaseRPC) TransferReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	args := m.Called(hash)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*types.Receipt), args.Bool(1), args.Error(2)
}

func setupTestLogger() *logger.Logger {
	return logger.New("test")
}

func testBreakerConfig(threshold int) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:                 1,
		Interval:                    30 * time.Second,
		Timeout:                     60 * time.Second,
		ConsecutiveFailureThreshold: threshold,
	}
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	cb := NewCircuitBreakerAdapter(chainadaptertest.New(model.ChainBTC, 3), testBreakerConfig(3), metrics, setupTestLogger())

	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, "btc_adapter", cb.Name())
	assert.Equal(t, model.ChainBTC, cb.Chain())
	assert.Equal(t, 3, cb.MinConfirmations())
}

func TestCircuitBreakerAdapter_PassesResultThrough(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	fake := chainadaptertest.New(model.ChainETH, 1)
	fake.SetResult("addr-1", chainadapter.Observed(decimal.RequireFromString("0.5"), "0xabc", 4, 1))
	cb := NewCircuitBreakerAdapter(fake, testBreakerConfig(3), metrics, setupTestLogger())

	result := cb.CheckTransactions(context.Background(), chainadapter.Deposit{Address: "addr-1", MinConfirmations: 1})
	require.NoError(t, result.Err)
	assert.True(t, result.Confirmed)
	assert.Equal(t, "0xabc", result.TxHash)
	assert.Equal(t, 1, fake.CheckCalls("addr-1"))

	families, err := registry.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() != "icy_funding_external_call_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if getLabelValue(m.GetLabel(), "service") == "eth_adapter" && getLabelValue(m.GetLabel(), "outcome") == "success" {
				found = true
				assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.True(t, found)
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	fake := chainadaptertest.New(model.ChainSOL, 1)
	fake.SetResult("addr-1", chainadapter.NotConfirmed(errors.New("HTTP 503 service unavailable")))
	cb := NewCircuitBreakerAdapter(fake, testBreakerConfig(2), metrics, setupTestLogger())

	for i := 0; i < 2; i++ {
		result := cb.CheckTransactions(context.Background(), chainadapter.Deposit{Address: "addr-1", MinConfirmations: 1})
		assert.Error(t, result.Err)
		assert.False(t, result.Confirmed)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	result := cb.CheckTransactions(context.Background(), chainadapter.Deposit{Address: "addr-1", MinConfirmations: 1})
	assert.ErrorIs(t, result.Err, gobreaker.ErrOpenState)
	assert.True(t, result.Amount.IsZero())
	// the open breaker never reached the adapter
	assert.Equal(t, 2, fake.CheckCalls("addr-1"))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.calls.WithLabelValues("sol_adapter", outcomeError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues("sol_adapter", outcomeRejected)))
	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.failures.WithLabelValues("sol_adapter", "check_transactions", string(ErrorTypeServerError))))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.breakerState.WithLabelValues("sol_adapter")))
}

func TestCircuitBreaker_NotFoundIsNotAFailure(t *testing.T) {
	metrics := NewExternalAPIMetrics()
	fake := chainadaptertest.New(model.ChainBTC, 3)
	cb := NewCircuitBreakerAdapter(fake, testBreakerConfig(1), metrics, setupTestLogger())

	for i := 0; i < 3; i++ {
		result := cb.CheckTransactions(context.Background(), chainadapter.Deposit{Address: "empty", MinConfirmations: 3})
		assert.NoError(t, result.Err)
		assert.False(t, result.Confirmed)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestWrapAdapters(t *testing.T) {
	registry := chainadapter.NewRegistry(chainadaptertest.New(model.ChainBTC, 3), chainadaptertest.New(model.ChainETH, 1))
	registry.Wrap(WrapAdapters(NewExternalAPIMetrics(), setupTestLogger()))

	for _, chain := range []model.Chain{model.ChainBTC, model.ChainETH} {
		adapter, err := registry.Get(chain)
		require.NoError(t, err)
		_, ok := adapter.(*CircuitBreakerAdapter)
		assert.True(t, ok, "chain %s should be wrapped", chain)
	}
}

func TestCircuitBreakerBaseRPC_TransferCircuitOpen(t *testing.T) {
	mockRPC := &MockBaseRPC{}
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(1000)
	mockRPC.On("Transfer", to, amount, uint64(60000)).Return(nil, errors.New("connection refused"))

	cb := NewCircuitBreakerBaseRPC(mockRPC, testBreakerConfig(2), NewExternalAPIMetrics(), setupTestLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.Transfer(context.Background(), to, amount, 60000)
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	tx, err := cb.Transfer(context.Background(), to, amount, 60000)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Nil(t, tx)
	mockRPC.AssertNumberOfCalls(t, "Transfer", 2)
}

func TestCircuitBreakerBaseRPC_WaitMinedBypassesBreaker(t *testing.T) {
	mockRPC := &MockBaseRPC{}
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mockRPC.On("EstimateTransferGas", to, mock.Anything).Return(uint64(0), errors.New("network unreachable"))
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	mockRPC.On("WaitMined", mock.Anything).Return(receipt, nil)

	cb := NewCircuitBreakerBaseRPC(mockRPC, testBreakerConfig(1), NewExternalAPIMetrics(), setupTestLogger())

	_, err := cb.EstimateTransferGas(context.Background(), to, big.NewInt(1))
	assert.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	got, err := cb.WaitMined(context.Background(), types.NewTx(&types.LegacyTx{}))
	require.NoError(t, err)
	assert.Equal(t, receipt, got)

	hash := common.HexToHash("0x01")
	mockRPC.On("TransferReceipt", hash).Return(nil, true, nil)
	got, known, err := cb.TransferReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, known)
}

func TestCircuitBreakerBaseRPC_Success(t *testing.T) {
	mockRPC := &MockBaseRPC{}
	balance := &model.Web3BigInt{Value: "5000", Decimal: 18}
	mockRPC.On("TokenBalanceOf", mock.Anything).Return(balance, nil)
	mockRPC.On("TokenDecimals").Return(uint8(18), nil)

	cb := NewCircuitBreakerBaseRPC(mockRPC, testBreakerConfig(3), NewExternalAPIMetrics(), setupTestLogger())

	got, err := cb.TokenBalanceOf(context.Background(), cb.TreasuryAddress())
	require.NoError(t, err)
	assert.Equal(t, balance, got)

	decimals, err := cb.TokenDecimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)
}

func TestErrorClassification_NetworkErrors(t *testing.T) {
	tests := []struct {
		name         string
		error        error
		expectedType APIErrorType
	}{
		{
			name:         "Timeout error",
			error:        errors.New("request timeout after 5s"),
			expectedType: ErrorTypeTimeout,
		},
		{
			name:         "Deadline",
			error:        context.DeadlineExceeded,
			expectedType: ErrorTypeTimeout,
		},
		{
			name:         "Network error",
			error:        errors.New("network unreachable"),
			expectedType: ErrorTypeNetworkError,
		},
		{
			name:         "Server error",
			error:        errors.New("HTTP 500 Internal Server Error"),
			expectedType: ErrorTypeServerError,
		},
		{
			name:         "Client error",
			error:        errors.New("HTTP 400 Bad Request"),
			expectedType: ErrorTypeClientError,
		},
		{
			name:         "Unknown error",
			error:        errors.New("unexpected error occurred"),
			expectedType: ErrorTypeUnknown,
		},
		{
			name:         "Nil error",
			error:        nil,
			expectedType: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedType, classifyError(tt.error))
		})
	}
}

func TestCircuitBreakerConfig_Validation(t *testing.T) {
	tests := []struct {
		name      string
		config    CircuitBreakerConfig
		shouldErr bool
	}{
		{
			name:      "Valid configuration",
			config:    testBreakerConfig(3),
			shouldErr: false,
		},
		{
			name: "Zero max requests",
			config: CircuitBreakerConfig{
				Interval:                    30 * time.Second,
				Timeout:                     60 * time.Second,
				ConsecutiveFailureThreshold: 3,
			},
			shouldErr: true,
		},
		{
			name:      "Zero failure threshold",
			config:    testBreakerConfig(0),
			shouldErr: true,
		},
		{
			name: "Negative timeout",
			config: CircuitBreakerConfig{
				MaxRequests:                 5,
				Interval:                    30 * time.Second,
				Timeout:                     -1 * time.Second,
				ConsecutiveFailureThreshold: 3,
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCircuitBreakerConfig(tt.config)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCircuitBreakerConfig_DefaultValues(t *testing.T) {
	for name, config := range CircuitBreakerConfigs {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, validateCircuitBreakerConfig(config))
			assert.True(t, config.Interval > 0, "Interval should be positive")
			assert.True(t, config.Timeout > 0, "Timeout should be positive")
		})
	}

	assert.Equal(t, CircuitBreakerConfigs["base_rpc"], BreakerConfigFor("base_rpc"))
	assert.Equal(t, defaultAdapterBreaker, BreakerConfigFor("doge_adapter"))
}

// Helper function to get label value from Prometheus metric labels
func getLabelValue(labels []*dto.LabelPair, name string) string {
	for _, label := range labels {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
