package health

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter/chainadaptertest"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/store/storetest"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type stubBaseRPC struct {
	decimals uint8
	err      error
}

func (s *stubBaseRPC) TreasuryAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa")
}

func (s *stubBaseRPC) TokenDecimals(context.Context) (uint8, error) {
	return s.decimals, s.err
}

func (s *stubBaseRPC) TokenBalanceOf(context.Context, common.Address) (*model.Web3BigInt, error) {
	return nil, errors.New("not used")
}

func (s *stubBaseRPC) EstimateTransferGas(context.Context, common.Address, *big.Int) (uint64, error) {
	return 0, errors.New("not used")
}

func (s *stubBaseRPC) Transfer(context.Context, common.Address, *big.Int, uint64) (*types.Transaction, error) {
	return nil, errors.New("not used")
}

func (s *stubBaseRPC) WaitMined(context.Context, *types.Transaction) (*types.Receipt, error) {
	return nil, errors.New("not used")
}

func (s *stubBaseRPC) TransferReceipt(context.Context, common.Hash) (*types.Receipt, bool, error) {
	return nil, false, errors.New("not used")
}

func serve(t *testing.T, path string, h gin.HandlerFunc) (*httptest.ResponseRecorder, time.Duration) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET(path, h)

	w := httptest.NewRecorder()
	start := time.Now()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w, time.Since(start)
}

func TestHealthHandler_Basic(t *testing.T) {
	handler := &HealthHandler{}
	w, duration := serve(t, "/healthz", handler.Basic)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, duration < 200*time.Millisecond, "basic health check exceeded SLA: %v", duration)

	var response BasicHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Message)
}

func TestHealthHandler_Database_NilDB(t *testing.T) {
	handler := &HealthHandler{logger: logger.New("test")}
	w, _ := serve(t, "/health/db", handler.Database)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, statusUnhealthy, response.Status)
	assert.Contains(t, response.Checks["database"].Error, "database connection not available")
}

func TestHealthHandler_Database_Healthy(t *testing.T) {
	handler := &HealthHandler{db: storetest.NewDB(t), logger: logger.New("test")}
	w, _ := serve(t, "/health/db", handler.Database)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	for _, field := range []string{"status", "timestamp", "checks", "duration_ms"} {
		assert.Contains(t, response, field, "missing required field: %s", field)
	}

	check := response["checks"].(map[string]interface{})["database"].(map[string]interface{})
	assert.Equal(t, statusHealthy, check["status"])
	assert.Equal(t, "sqlite", check["metadata"].(map[string]interface{})["driver"])
}

func TestHealthHandler_External(t *testing.T) {
	log := logger.New("test")
	eth := chainadaptertest.New(model.ChainETH, 1)
	btc := chainadaptertest.New(model.ChainBTC, 3)
	adapters := chainadapter.NewRegistry(btc, eth)
	adapters.Wrap(monitoring.WrapAdapters(monitoring.NewExternalAPIMetrics(), log))

	handler := &HealthHandler{
		logger:   log,
		adapters: adapters,
		baseRPC:  &stubBaseRPC{decimals: 18},
	}

	w, _ := serve(t, "/health/external", handler.External)
	require.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, statusHealthy, response.Status)
	assert.Contains(t, response.Checks, "btc_adapter")
	assert.Contains(t, response.Checks, "eth_adapter")
	assert.Equal(t, "closed", response.Checks["eth_adapter"].Metadata["circuit_breaker"])
	assert.Equal(t, float64(18), response.Checks["base_rpc"].Metadata["token_decimals"])
}

func TestHealthHandler_External_OpenBreaker(t *testing.T) {
	log := logger.New("test")
	eth := chainadaptertest.New(model.ChainETH, 1)
	eth.SetResult("0xdeposit", chainadapter.NotConfirmed(errors.New("connection refused")))

	breaker := monitoring.NewCircuitBreakerAdapter(eth, monitoring.CircuitBreakerConfig{
		MaxRequests:                 1,
		Interval:                    time.Minute,
		Timeout:                     time.Minute,
		ConsecutiveFailureThreshold: 1,
	}, monitoring.NewExternalAPIMetrics(), log)
	breaker.CheckTransactions(context.Background(), chainadapter.Deposit{Address: "0xdeposit", MinConfirmations: 1})

	handler := &HealthHandler{
		logger:   log,
		adapters: chainadapter.NewRegistry(breaker),
		baseRPC:  &stubBaseRPC{err: errors.New("dial tcp: connection refused")},
	}

	w, _ := serve(t, "/health/external", handler.External)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, statusUnhealthy, response.Status)
	assert.Equal(t, "circuit breaker open", response.Checks["eth_adapter"].Error)
	assert.Contains(t, response.Checks["base_rpc"].Error, "connection refused")
}

func TestHealthHandler_External_NilBaseRPC(t *testing.T) {
	handler := &HealthHandler{logger: logger.New("test")}
	w, _ := serve(t, "/health/external", handler.External)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Checks["base_rpc"].Error, "base rpc not available")
}

func TestHealthHandler_Jobs(t *testing.T) {
	log := logger.New("test")

	t.Run("no manager", func(t *testing.T) {
		handler := &HealthHandler{logger: log}
		w, _ := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("healthy", func(t *testing.T) {
		jsm := monitoring.NewJobStatusManager(log, monitoring.NewBackgroundJobMetrics())
		defer jsm.Stop()
		jsm.StartJob(consts.JOB_CHAIN_MONITOR)
		jsm.CompleteJob(consts.JOB_CHAIN_MONITOR, nil, nil)

		handler := &HealthHandler{logger: log, jobStatusManager: jsm}
		w, _ := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failing cleanup degrades", func(t *testing.T) {
		jsm := monitoring.NewJobStatusManager(log, monitoring.NewBackgroundJobMetrics())
		defer jsm.Stop()
		for i := 0; i < 3; i++ {
			jsm.StartJob(consts.JOB_CLEANUP)
			jsm.CompleteJob(consts.JOB_CLEANUP, errors.New("table locked"), nil)
		}

		handler := &HealthHandler{logger: log, jobStatusManager: jsm}
		w, _ := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusPartialContent, w.Code)
	})

	t.Run("failing reward processor is unhealthy", func(t *testing.T) {
		jsm := monitoring.NewJobStatusManager(log, monitoring.NewBackgroundJobMetrics())
		defer jsm.Stop()
		for i := 0; i < 3; i++ {
			jsm.StartJob(consts.JOB_REWARD_PROCESSOR)
			jsm.CompleteJob(consts.JOB_REWARD_PROCESSOR, errors.New("base rpc down"), nil)
		}

		handler := &HealthHandler{logger: log, jobStatusManager: jsm}
		w, _ := serve(t, "/health/jobs", handler.Jobs)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response JobsHealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, statusUnhealthy, response.Status)
		assert.Equal(t, int64(3), response.Jobs[consts.JOB_REWARD_PROCESSOR].ConsecutiveFailures)
	})
}
