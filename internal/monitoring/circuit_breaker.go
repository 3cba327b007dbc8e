package monitoring

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/dwarvesf/icy-funding-backend/internal/baserpc"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// CircuitBreakerAdapter wraps a chain adapter. An open breaker answers CheckTransactions
// with a not-confirmed result carrying gobreaker.ErrOpenState.
type CircuitBreakerAdapter struct {
	chainadapter.IAdapter
	name           string
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
}

// CircuitBreakerBaseRPC wraps the treasury client.
type CircuitBreakerBaseRPC struct {
	wrapped        baserpc.IBaseRPC
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
}

func newBreaker(name string, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(name, to)
		},
	})
}

func NewCircuitBreakerAdapter(wrapped chainadapter.IAdapter, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	name := strings.ToLower(string(wrapped.Chain())) + "_adapter"
	return &CircuitBreakerAdapter{
		IAdapter:       wrapped,
		name:           name,
		circuitBreaker: newBreaker(name, config, metrics, logger),
		metrics:        metrics,
		logger:         logger,
	}
}

// WrapAdapters returns a chainadapter.Registry wrapper that puts a breaker in front of every chain.
func WrapAdapters(metrics *ExternalAPIMetrics, logger *logger.Logger) func(chainadapter.IAdapter) chainadapter.IAdapter {
	return func(a chainadapter.IAdapter) chainadapter.IAdapter {
		name := strings.ToLower(string(a.Chain())) + "_adapter"
		return NewCircuitBreakerAdapter(a, BreakerConfigFor(name), metrics, logger)
	}
}

func (cb *CircuitBreakerAdapter) Name() string {
	return cb.name
}

func (cb *CircuitBreakerAdapter) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

func (cb *CircuitBreakerAdapter) CheckTransactions(ctx context.Context, deposit chainadapter.Deposit) *chainadapter.ConfirmationResult {
	start := time.Now()
	out, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		result := cb.IAdapter.CheckTransactions(ctx, deposit)
		if result == nil {
			return nil, errors.New("adapter returned no result")
		}
		// the error rides inside the result so the breaker can count it
		return result, result.Err
	})
	cb.record("check_transactions", start, err)

	if result, ok := out.(*chainadapter.ConfirmationResult); ok && result != nil {
		return result
	}
	return chainadapter.NotConfirmed(err)
}

// Balance goes through the breaker when the wrapped adapter can read balances. Other
// adapters report zero, as no balance check ever runs for them.
func (cb *CircuitBreakerAdapter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	reader, ok := cb.IAdapter.(chainadapter.BalanceReader)
	if !ok {
		return decimal.Zero, nil
	}
	start := time.Now()
	out, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		return reader.Balance(ctx, address)
	})
	cb.record("balance", start, err)
	if err != nil {
		return decimal.Zero, err
	}
	return out.(decimal.Decimal), nil
}

func (cb *CircuitBreakerAdapter) GenerateAddress(ctx context.Context, index uint32) (*chainadapter.GeneratedAddress, error) {
	// derivation is local; only observe it
	start := time.Now()
	generated, err := cb.IAdapter.GenerateAddress(ctx, index)
	cb.metrics.RecordAPICall(cb.name, "generate_address", err, time.Since(start).Seconds())
	return generated, err
}

func (cb *CircuitBreakerAdapter) record(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	cb.metrics.RecordAPICall(cb.name, operation, err, duration)
	if err == nil {
		return
	}
	logAPIError(cb.logger, cb.name, operation, duration, err, cb.circuitBreaker.State())
}

func NewCircuitBreakerBaseRPC(wrapped baserpc.IBaseRPC, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerBaseRPC {
	return &CircuitBreakerBaseRPC{
		wrapped:        wrapped,
		circuitBreaker: newBreaker("base_rpc", config, metrics, logger),
		metrics:        metrics,
		logger:         logger,
	}
}

func (cb *CircuitBreakerBaseRPC) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

func (cb *CircuitBreakerBaseRPC) execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := cb.circuitBreaker.Execute(fn)

	duration := time.Since(start).Seconds()
	cb.metrics.RecordAPICall("base_rpc", operation, err, duration)
	if err != nil {
		logAPIError(cb.logger, "base_rpc", operation, duration, err, cb.circuitBreaker.State())
	}
	return result, err
}

func (cb *CircuitBreakerBaseRPC) TreasuryAddress() common.Address {
	return cb.wrapped.TreasuryAddress()
}

func (cb *CircuitBreakerBaseRPC) TokenDecimals(ctx context.Context) (uint8, error) {
	result, err := cb.execute("token_decimals", func() (interface{}, error) {
		return cb.wrapped.TokenDecimals(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint8), nil
}

func (cb *CircuitBreakerBaseRPC) TokenBalanceOf(ctx context.Context, address common.Address) (*model.Web3BigInt, error) {
	result, err := cb.execute("token_balance_of", func() (interface{}, error) {
		return cb.wrapped.TokenBalanceOf(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Web3BigInt), nil
}

func (cb *CircuitBreakerBaseRPC) EstimateTransferGas(ctx context.Context, to common.Address, amount *big.Int) (uint64, error) {
	result, err := cb.execute("estimate_gas", func() (interface{}, error) {
		return cb.wrapped.EstimateTransferGas(ctx, to, amount)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

func (cb *CircuitBreakerBaseRPC) Transfer(ctx context.Context, to common.Address, amount *big.Int, gasLimit uint64) (*types.Transaction, error) {
	result, err := cb.execute("transfer", func() (interface{}, error) {
		return cb.wrapped.Transfer(ctx, to, amount, gasLimit)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.Transaction), nil
}

// WaitMined bypasses the breaker: once a transfer is submitted its receipt must be awaited.
func (cb *CircuitBreakerBaseRPC) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := cb.wrapped.WaitMined(ctx, tx)
	cb.metrics.RecordAPICall("base_rpc", "wait_mined", err, time.Since(start).Seconds())
	return receipt, err
}

// TransferReceipt bypasses the breaker for the same reason as WaitMined.
func (cb *CircuitBreakerBaseRPC) TransferReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	start := time.Now()
	receipt, known, err := cb.wrapped.TransferReceipt(ctx, hash)
	cb.metrics.RecordAPICall("base_rpc", "transfer_receipt", err, time.Since(start).Seconds())
	return receipt, known, err
}

func logAPIError(logger *logger.Logger, service, operation string, duration float64, err error, state gobreaker.State) {
	logger.Warn("[CircuitBreaker] external API call failed", map[string]string{
		"service":    service,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   state.String(),
	})
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case containsAny(errMsg, "timeout", "deadline exceeded", "context canceled"):
		return ErrorTypeTimeout
	case containsAny(errMsg, "network", "connection", "unreachable", "dns"):
		return ErrorTypeNetworkError
	case containsAny(errMsg, "500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"):
		return ErrorTypeServerError
	case containsAny(errMsg, "400", "401", "403", "404", "429", "bad request", "unauthorized", "forbidden", "not found", "rate limit"):
		return ErrorTypeClientError
	}
	return ErrorTypeUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// validateCircuitBreakerConfig validates circuit breaker configuration
func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	return nil
}
