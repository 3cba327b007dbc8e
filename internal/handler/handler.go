package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/baserpc"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/controller"
	"github.com/dwarvesf/icy-funding-backend/internal/handler/admin"
	"github.com/dwarvesf/icy-funding-backend/internal/handler/funding"
	"github.com/dwarvesf/icy-funding-backend/internal/handler/health"
	"github.com/dwarvesf/icy-funding-backend/internal/handler/metrics"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type Handler struct {
	FundingHandler funding.IHandler
	AdminHandler   admin.IHandler
	HealthHandler  health.IHealthHandler
	MetricsHandler *metrics.MetricsHandler
}

func New(appConfig *config.AppConfig, logger *logger.Logger,
	controller controller.IController,
	adapters *chainadapter.Registry,
	baseRPC baserpc.IBaseRPC,
	db *gorm.DB,
	metricsRegistry *prometheus.Registry,
	businessMetrics *monitoring.BusinessMetricsRecorder,
	jobStatusManager *monitoring.JobStatusManager) *Handler {
	return &Handler{
		FundingHandler: funding.New(controller, logger, businessMetrics),
		AdminHandler:   admin.New(controller, logger, businessMetrics),
		HealthHandler:  health.New(appConfig, logger, db, adapters, baseRPC, jobStatusManager),
		MetricsHandler: metrics.NewMetricsHandler(metricsRegistry),
	}
}
