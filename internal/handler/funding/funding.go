package funding

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/dwarvesf/icy-funding-backend/internal/addresspool"
	"github.com/dwarvesf/icy-funding-backend/internal/controller"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
	"github.com/dwarvesf/icy-funding-backend/internal/view"
)

type handler struct {
	controller controller.IController
	logger     *logger.Logger
	metrics    *monitoring.BusinessMetricsRecorder
	validate   *validator.Validate
}

func New(controller controller.IController, logger *logger.Logger, metrics *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		controller: controller,
		logger:     logger,
		metrics:    metrics,
		validate:   newValidator(),
	}
}

// RequestDeposit godoc
// @Summary Request a deposit address
// @Description Assigns a deposit address on the requested chain and opens a pending funding
// @id requestDeposit
// @Tags Funding
// @Accept json
// @Produce json
// @Param request body DepositRequest true "Deposit request"
// @Success 200 {object} view.Response[controller.DepositResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 429 {object} view.ErrorResponse
// @Failure 503 {object} view.ErrorResponse
// @Router /request-deposit [post]
func (h *handler) RequestDeposit(c *gin.Context) {
	start := time.Now()
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Info("[RequestDeposit][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Info("[RequestDeposit][Validator]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	res, err := h.controller.RequestDeposit(c.Request.Context(), controller.DepositInput{
		UserAddress:   req.UserAddress,
		Chain:         model.Chain(req.Chain),
		Amount:        req.Amount,
		RewardAddress: req.RewardAddress,
	})
	if err != nil {
		h.metrics.RecordDepositRequest(req.Chain, "error", time.Since(start).Seconds())
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("[RequestDeposit][RequestDeposit]", map[string]string{
				"chain": req.Chain,
				"error": err.Error(),
			})
		}
		c.JSON(code, view.CreateResponse[any](nil, err, req, "failed to request deposit"))
		return
	}

	h.metrics.RecordDepositRequest(string(res.Chain), "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, "deposit address assigned"))
}

// CheckStatus godoc
// @Summary Check funding status
// @Description Returns the funding status, checking the chain for a pending deposit first
// @id checkStatus
// @Tags Funding
// @Produce json
// @Param depositId query string true "Deposit ID"
// @Success 200 {object} view.Response[controller.StatusResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /check-status [get]
func (h *handler) CheckStatus(c *gin.Context) {
	start := time.Now()
	var req CheckStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	res, err := h.controller.CheckStatus(c.Request.Context(), req.DepositID)
	if err != nil {
		h.metrics.RecordStatusCheck("api", "error", time.Since(start).Seconds())
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("[CheckStatus][CheckStatus]", map[string]string{
				"deposit_id": req.DepositID,
				"error":      err.Error(),
			})
		}
		c.JSON(code, view.CreateResponse[any](nil, err, req, "failed to check status"))
		return
	}

	h.metrics.RecordStatusCheck("api", string(res.Status), time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](res, nil, nil, res.Message))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrDepositNotFound):
		return http.StatusNotFound
	case errors.Is(err, addresspool.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
