package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
)

// jobs whose repeated failure stalls the pipeline
var criticalJobs = []string{
	consts.JOB_CHAIN_MONITOR,
	consts.JOB_REWARD_PROCESSOR,
}

// Jobs handles the background jobs health check endpoint
// @Summary Background jobs health check
// @Description Reports worker run status, failures and stalls
// @Tags health
// @Produce json
// @Success 200 {object} JobsHealthResponse
// @Success 206 {object} JobsHealthResponse
// @Failure 503 {object} JobsHealthResponse
// @Router /api/v1/health/jobs [get]
func (h *HealthHandler) Jobs(c *gin.Context) {
	start := time.Now()

	if h.jobStatusManager == nil {
		c.JSON(http.StatusServiceUnavailable, JobsHealthResponse{
			Status:     statusUnhealthy,
			Timestamp:  time.Now(),
			Jobs:       make(map[string]monitoring.JobStatus),
			DurationMs: time.Since(start).Milliseconds(),
		})
		return
	}

	jobs := h.jobStatusManager.GetAllJobStatuses()
	summary := h.jobStatusManager.GetJobsSummary()

	overallStatus := statusHealthy
	if summary.StalledJobs > 0 {
		overallStatus = statusUnhealthy
	} else if summary.UnhealthyJobs > 0 {
		overallStatus = statusDegraded
		for _, name := range criticalJobs {
			job, ok := jobs[name]
			if ok && job.Status == monitoring.JobStatusFailed && job.ConsecutiveFailures > 2 {
				overallStatus = statusUnhealthy
				break
			}
		}
	}

	response := JobsHealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Jobs:       jobs,
		Summary:    summary,
		DurationMs: time.Since(start).Milliseconds(),
	}

	statusCode := http.StatusOK
	switch overallStatus {
	case statusUnhealthy:
		statusCode = http.StatusServiceUnavailable
	case statusDegraded:
		statusCode = http.StatusPartialContent
	}

	h.logger.Debug("[Jobs] health check completed", map[string]string{
		"overall_status": overallStatus,
		"duration":       fmt.Sprintf("%dms", response.DurationMs),
		"total_jobs":     fmt.Sprint(summary.TotalJobs),
		"unhealthy_jobs": fmt.Sprint(summary.UnhealthyJobs),
		"stalled_jobs":   fmt.Sprint(summary.StalledJobs),
	})

	c.JSON(statusCode, response)
}
