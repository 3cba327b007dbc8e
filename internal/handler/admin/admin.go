package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/controller"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
	"github.com/dwarvesf/icy-funding-backend/internal/view"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

type handler struct {
	controller controller.IController
	logger     *logger.Logger
	metrics    *monitoring.BusinessMetricsRecorder
}

func New(controller controller.IController, logger *logger.Logger, metrics *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		controller: controller,
		logger:     logger,
		metrics:    metrics,
	}
}

// BatchCheckFundings godoc
// @Summary Check every pending funding now
// @id batchCheckFundings
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Success 200 {object} view.Response[chainmonitor.CycleResult]
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/batch-check-fundings [post]
func (h *handler) BatchCheckFundings(c *gin.Context) {
	start := time.Now()
	res, err := h.controller.BatchCheckFundings(c.Request.Context())
	if err != nil {
		h.fail(c, "batch_check_fundings", start, err)
		return
	}
	h.metrics.RecordAdminOperation("batch_check_fundings", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, "fundings checked"))
}

// ProcessRewardQueue godoc
// @Summary Run one reward processor cycle now
// @id processRewardQueue
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Success 200 {object} view.Response[controller.ProcessQueueResponse]
// @Failure 409 {object} view.ErrorResponse
// @Router /admin/process-reward-queue [post]
func (h *handler) ProcessRewardQueue(c *gin.Context) {
	start := time.Now()
	res, err := h.controller.ProcessRewardQueue(c.Request.Context())
	if err != nil {
		h.fail(c, "process_reward_queue", start, err)
		return
	}
	h.metrics.RecordAdminOperation("process_reward_queue", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, "reward queue processed"))
}

// RetryFailedRewards godoc
// @Summary Requeue failed rewards that have retries left
// @id retryFailedRewards
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Success 200 {object} view.Response[RetryResponse]
// @Router /admin/retry-failed-rewards [post]
func (h *handler) RetryFailedRewards(c *gin.Context) {
	start := time.Now()
	requeued, err := h.controller.RetryFailedRewards(c.Request.Context())
	if err != nil {
		h.fail(c, "retry_failed_rewards", start, err)
		return
	}
	h.metrics.RecordAdminOperation("retry_failed_rewards", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](RetryResponse{Requeued: requeued}, nil, nil, "failed rewards requeued"))
}

// RewardInfo godoc
// @Summary Reward treasury, queue and address pool state
// @id rewardInfo
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Success 200 {object} view.Response[controller.RewardInfoResponse]
// @Router /admin/reward-info [get]
func (h *handler) RewardInfo(c *gin.Context) {
	start := time.Now()
	res, err := h.controller.RewardInfo(c.Request.Context())
	if err != nil {
		h.fail(c, "reward_info", start, err)
		return
	}
	h.metrics.RecordAdminOperation("reward_info", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, ""))
}

// WorkerStatus godoc
// @Summary Background worker status and heartbeats
// @id workerStatus
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Admin API key"
// @Success 200 {object} view.Response[worker.Status]
// @Router /admin/worker-status [get]
func (h *handler) WorkerStatus(c *gin.Context) {
	start := time.Now()
	res, err := h.controller.WorkerStatus(c.Request.Context())
	if err != nil {
		h.fail(c, "worker_status", start, err)
		return
	}
	h.metrics.RecordAdminOperation("worker_status", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, ""))
}

type RetryResponse struct {
	Requeued int `json:"requeued"`
}

func (h *handler) fail(c *gin.Context, operation string, start time.Time, err error) {
	h.metrics.RecordAdminOperation(operation, "error", time.Since(start).Seconds())

	code := http.StatusInternalServerError
	if errors.Is(err, chainmonitor.ErrCycleInProgress) || errors.Is(err, worker.ErrProcessorBusy) {
		code = http.StatusConflict
	} else {
		h.logger.Error("[Admin]["+operation+"]", map[string]string{
			"error": err.Error(),
		})
	}
	c.JSON(code, view.CreateResponse[any](nil, err, nil, "failed to "+strings.ReplaceAll(operation, "_", " ")))
}
