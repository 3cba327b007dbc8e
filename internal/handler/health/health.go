package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/baserpc"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// breakerState is implemented by clients wrapped in a circuit breaker.
type breakerState interface {
	State() gobreaker.State
}

type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	adapters         *chainadapter.Registry
	baseRPC          baserpc.IBaseRPC
	jobStatusManager *monitoring.JobStatusManager
}

func New(config *config.AppConfig, logger *logger.Logger, db *gorm.DB, adapters *chainadapter.Registry, baseRPC baserpc.IBaseRPC, jobStatusManager *monitoring.JobStatusManager) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		adapters:         adapters,
		baseRPC:          baseRPC,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Pings the database and reports pool usage
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()
	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	ctx := context.Background()
	if c.Request != nil {
		ctx = c.Request.Context()
	}

	dbCheck := h.checkDatabase(ctx)
	response.Checks["database"] = dbCheck
	response.DurationMs = time.Since(start).Milliseconds()

	if dbCheck.Status == statusHealthy {
		response.Status = statusHealthy
		c.JSON(http.StatusOK, response)
		return
	}
	response.Status = statusUnhealthy
	c.JSON(http.StatusServiceUnavailable, response)
}

// External handles the external dependencies health check endpoint
// @Summary External dependencies health check
// @Description Reports chain adapter breaker states and checks the Base RPC
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()
	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	baseCtx := context.Background()
	if c.Request != nil {
		baseCtx = c.Request.Context()
	}
	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	defer cancel()

	if h.adapters != nil {
		for _, chain := range h.adapters.Chains() {
			adapter, err := h.adapters.Get(chain)
			if err != nil {
				continue
			}
			response.Checks[strings.ToLower(string(chain))+"_adapter"] = breakerCheck(adapter)
		}
	}

	response.Checks["base_rpc"] = h.checkBaseRPC(ctx)

	response.DurationMs = time.Since(start).Milliseconds()
	response.Status = overall(response.Checks)
	code := http.StatusOK
	if response.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Metadata: make(map[string]interface{})}

	if h.db == nil {
		check.Status = statusUnhealthy
		check.Error = "database connection not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		check.Status = statusUnhealthy
		check.Error = fmt.Sprintf("failed to get underlying database: %v", err)
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		check.Status = statusUnhealthy
		if pingCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = err.Error()
		}
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	stats := sqlDB.Stats()
	check.Status = statusHealthy
	check.Latency = time.Since(start).Milliseconds()
	check.Metadata["driver"] = h.db.Dialector.Name()
	check.Metadata["connection_pool"] = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
	}
	return check
}

// checkBaseRPC reads the token decimals as a cheap round trip to the Base node.
func (h *HealthHandler) checkBaseRPC(ctx context.Context) HealthCheck {
	start := time.Now()
	check := HealthCheck{Metadata: make(map[string]interface{})}

	if h.baseRPC == nil {
		check.Status = statusUnhealthy
		check.Error = "base rpc not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}
	if b, ok := h.baseRPC.(breakerState); ok {
		check.Metadata["circuit_breaker"] = b.State().String()
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	decimals, err := h.baseRPC.TokenDecimals(checkCtx)
	switch {
	case checkCtx.Err() == context.DeadlineExceeded:
		check.Status = statusUnhealthy
		check.Error = "timeout"
	case err != nil:
		check.Status = statusUnhealthy
		check.Error = err.Error()
	default:
		check.Status = statusHealthy
		check.Metadata["token_decimals"] = decimals
		check.Metadata["treasury"] = h.baseRPC.TreasuryAddress().Hex()
	}
	check.Latency = time.Since(start).Milliseconds()
	return check
}

// breakerCheck reports a chain adapter by its breaker state, without calling the chain.
func breakerCheck(adapter chainadapter.IAdapter) HealthCheck {
	check := HealthCheck{
		Status:   statusHealthy,
		Metadata: map[string]interface{}{"min_confirmations": adapter.MinConfirmations()},
	}
	b, ok := adapter.(breakerState)
	if !ok {
		return check
	}

	state := b.State()
	check.Metadata["circuit_breaker"] = state.String()
	switch state {
	case gobreaker.StateOpen:
		check.Status = statusUnhealthy
		check.Error = "circuit breaker open"
	case gobreaker.StateHalfOpen:
		check.Status = statusDegraded
	}
	return check
}

func overall(checks map[string]HealthCheck) string {
	result := statusHealthy
	for _, check := range checks {
		switch check.Status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
