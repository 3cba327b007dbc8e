package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/icy-funding-backend/internal/handler"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger, httpMetrics *monitoring.HTTPMetrics) {
	limiter := newIPRateLimiter(appConfig.ApiServer.RateLimitMax, appConfig.ApiServer.RateLimitWindow)

	api := r.Group("/api")
	{
		api.POST("/request-deposit", rateLimit(limiter, logger, httpMetrics), h.FundingHandler.RequestDeposit)
		api.GET("/check-status", rateLimit(limiter, logger, httpMetrics), h.FundingHandler.CheckStatus)
		api.GET("/health", h.HealthHandler.Database)
	}

	admin := api.Group("/admin", adminAuth(appConfig.ApiServer.AdminAPIKey, logger))
	{
		admin.POST("/batch-check-fundings", h.AdminHandler.BatchCheckFundings)
		admin.POST("/process-reward-queue", h.AdminHandler.ProcessRewardQueue)
		admin.POST("/retry-failed-rewards", h.AdminHandler.RetryFailedRewards)
		admin.GET("/reward-info", h.AdminHandler.RewardInfo)
		admin.GET("/worker-status", h.AdminHandler.WorkerStatus)
	}

	health := r.Group("/api/v1/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}

	r.GET("/healthz", h.HealthHandler.Basic)
	if h.MetricsHandler != nil {
		r.GET("/metrics", h.MetricsHandler.Handler())
	}
}
