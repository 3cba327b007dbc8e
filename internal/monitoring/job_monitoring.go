package monitoring

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// JobExecutionStatus represents different job execution states
type JobExecutionStatus string

const (
	JobStatusPending JobExecutionStatus = "pending"
	JobStatusRunning JobExecutionStatus = "running"
	JobStatusSuccess JobExecutionStatus = "success"
	JobStatusFailed  JobExecutionStatus = "failed"
	JobStatusStalled JobExecutionStatus = "stalled"
)

// JobStatus contains complete status information for a background job
type JobStatus struct {
	JobName             string                 `json:"job_name"`
	Status              JobExecutionStatus     `json:"status"`
	LastRunTime         time.Time              `json:"last_run_time"`
	LastDuration        time.Duration          `json:"last_duration_ms"`
	SuccessCount        int64                  `json:"success_count"`
	FailureCount        int64                  `json:"failure_count"`
	ConsecutiveFailures int64                  `json:"consecutive_failures"`
	LastError           string                 `json:"last_error,omitempty"`
	AverageExecution    time.Duration          `json:"average_execution_ms"`
	MaxExecutionTime    time.Duration          `json:"max_execution_ms"`
	MinExecutionTime    time.Duration          `json:"min_execution_ms"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// JobsSummary provides an overview of all job statuses
type JobsSummary struct {
	TotalJobs      int       `json:"total_jobs"`
	RunningJobs    int       `json:"running_jobs"`
	HealthyJobs    int       `json:"healthy_jobs"`
	UnhealthyJobs  int       `json:"unhealthy_jobs"`
	StalledJobs    int       `json:"stalled_jobs"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// JobStatusManager tracks worker runs. Stop must be called to end its background loops.
type JobStatusManager struct {
	mu               sync.RWMutex
	statuses         map[string]*JobStatus
	logger           *logger.Logger
	metrics          *BackgroundJobMetrics
	stalledThreshold time.Duration
	detectInterval   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJobStatusManager(logger *logger.Logger, metrics *BackgroundJobMetrics) *JobStatusManager {
	jsm := &JobStatusManager{
		statuses:         make(map[string]*JobStatus),
		logger:           logger,
		metrics:          metrics,
		stalledThreshold: 5 * time.Minute,
		detectInterval:   time.Minute,
		stop:             make(chan struct{}),
	}

	jsm.wg.Add(1)
	go jsm.runStalledJobDetection()

	return jsm
}

func (jsm *JobStatusManager) Stop() {
	jsm.stopOnce.Do(func() {
		close(jsm.stop)
	})
	jsm.wg.Wait()
}

// RegisterJob registers a new job for monitoring
func (jsm *JobStatusManager) RegisterJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	if _, exists := jsm.statuses[jobName]; !exists {
		jsm.statuses[jobName] = newJobStatus(jobName, JobStatusPending)
		jsm.logger.Info("[RegisterJob] job registered for monitoring", map[string]string{
			"job_name": jobName,
		})
	}
}

// StartJob marks a job as running
func (jsm *JobStatusManager) StartJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	status, exists := jsm.statuses[jobName]
	if !exists {
		status = newJobStatus(jobName, JobStatusRunning)
		jsm.statuses[jobName] = status
	}
	status.Status = JobStatusRunning
	status.LastRunTime = time.Now()
	status.UpdatedAt = status.LastRunTime

	jsm.metrics.activeJobs.Inc()

	jsm.logger.Debug("[StartJob] job started", map[string]string{
		"job_name": jobName,
	})
}

// CompleteJob records the outcome of a run started with StartJob
func (jsm *JobStatusManager) CompleteJob(jobName string, err error, metadata map[string]interface{}) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	status, exists := jsm.statuses[jobName]
	if !exists {
		jsm.logger.Error("[CompleteJob] unregistered job", map[string]string{
			"job_name": jobName,
		})
		return
	}

	duration := time.Since(status.LastRunTime)
	status.LastDuration = duration
	status.UpdatedAt = time.Now()

	if duration < status.MinExecutionTime {
		status.MinExecutionTime = duration
	}
	if duration > status.MaxExecutionTime {
		status.MaxExecutionTime = duration
	}

	totalRuns := status.SuccessCount + status.FailureCount
	status.AverageExecution = (status.AverageExecution*time.Duration(totalRuns) + duration) / time.Duration(totalRuns+1)

	for key, value := range metadata {
		status.Metadata[key] = value
	}

	if err != nil {
		status.Status = JobStatusFailed
		status.FailureCount++
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		status.Metadata["error_type"] = classifyJobError(err)

		jsm.metrics.jobRuns.WithLabelValues(jobName, "error").Inc()
		jsm.metrics.jobDuration.WithLabelValues(jobName, "failed").Observe(duration.Seconds())

		jsm.logger.Error("[CompleteJob] job failed", map[string]string{
			"job_name":             jobName,
			"duration":             duration.String(),
			"error":                err.Error(),
			"consecutive_failures": fmt.Sprintf("%d", status.ConsecutiveFailures),
		})
	} else {
		status.Status = JobStatusSuccess
		status.SuccessCount++
		status.ConsecutiveFailures = 0
		status.LastError = ""

		jsm.metrics.jobRuns.WithLabelValues(jobName, "success").Inc()
		jsm.metrics.jobDuration.WithLabelValues(jobName, "success").Observe(duration.Seconds())

		jsm.logger.Debug("[CompleteJob] job completed", map[string]string{
			"job_name": jobName,
			"duration": duration.String(),
		})
	}

	jsm.metrics.activeJobs.Dec()
}

// GetJobStatus returns a copy of the job status
func (jsm *JobStatusManager) GetJobStatus(jobName string) (*JobStatus, bool) {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	status, exists := jsm.statuses[jobName]
	if !exists {
		return nil, false
	}
	statusCopy := copyStatus(status)
	return &statusCopy, true
}

// GetAllJobStatuses returns a copy of every job status, flagging long runs as stalled
func (jsm *JobStatusManager) GetAllJobStatuses() map[string]JobStatus {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	result := make(map[string]JobStatus, len(jsm.statuses))
	now := time.Now()
	for name, status := range jsm.statuses {
		statusCopy := copyStatus(status)
		if status.Status == JobStatusRunning && now.Sub(status.LastRunTime) > jsm.stalledThreshold {
			statusCopy.Status = JobStatusStalled
		}
		result[name] = statusCopy
	}
	return result
}

func (jsm *JobStatusManager) GetJobsSummary() JobsSummary {
	statuses := jsm.GetAllJobStatuses()

	summary := JobsSummary{
		TotalJobs:      len(statuses),
		LastUpdateTime: time.Now(),
	}
	for _, status := range statuses {
		switch status.Status {
		case JobStatusRunning:
			summary.RunningJobs++
		case JobStatusSuccess:
			if status.ConsecutiveFailures == 0 {
				summary.HealthyJobs++
			} else {
				summary.UnhealthyJobs++
			}
		case JobStatusFailed:
			summary.UnhealthyJobs++
		case JobStatusStalled:
			summary.StalledJobs++
		}
	}
	return summary
}

func (jsm *JobStatusManager) runStalledJobDetection() {
	defer jsm.wg.Done()

	ticker := time.NewTicker(jsm.detectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-jsm.stop:
			return
		case <-ticker.C:
			jsm.detectStalledJobs()
		}
	}
}

func (jsm *JobStatusManager) detectStalledJobs() {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	now := time.Now()
	stalledCount := 0
	for jobName, status := range jsm.statuses {
		if status.Status == JobStatusStalled {
			stalledCount++
			continue
		}
		if status.Status == JobStatusRunning && now.Sub(status.LastRunTime) > jsm.stalledThreshold {
			status.Status = JobStatusStalled
			status.UpdatedAt = now
			stalledCount++

			jsm.logger.Error("[detectStalledJobs] job stalled", map[string]string{
				"job_name":      jobName,
				"last_run_time": status.LastRunTime.Format(time.RFC3339),
			})
		}
	}

	jsm.metrics.stalledJobs.Set(float64(stalledCount))
}

func newJobStatus(jobName string, status JobExecutionStatus) *JobStatus {
	now := time.Now()
	return &JobStatus{
		JobName:          jobName,
		Status:           status,
		Metadata:         make(map[string]interface{}),
		CreatedAt:        now,
		UpdatedAt:        now,
		MinExecutionTime: time.Duration(math.MaxInt64),
	}
}

func copyStatus(status *JobStatus) JobStatus {
	statusCopy := *status
	statusCopy.Metadata = make(map[string]interface{}, len(status.Metadata))
	for k, v := range status.Metadata {
		statusCopy.Metadata[k] = v
	}
	return statusCopy
}

// UptimePinger is called after every successful run.
type UptimePinger interface {
	CallUptimeWebhook(ctx context.Context, webhookURL string)
}

// InstrumentedJob wraps a worker cycle with status tracking, a deadline and panic recovery.
type InstrumentedJob struct {
	jobName       string
	jobFunc       func(ctx context.Context) error
	statusManager *JobStatusManager
	logger        *logger.Logger
	timeout       time.Duration

	pinger     UptimePinger
	webhookURL string
}

func NewInstrumentedJob(
	jobName string,
	jobFunc func(ctx context.Context) error,
	statusManager *JobStatusManager,
	logger *logger.Logger,
	timeout time.Duration,
) *InstrumentedJob {
	statusManager.RegisterJob(jobName)

	return &InstrumentedJob{
		jobName:       jobName,
		jobFunc:       jobFunc,
		statusManager: statusManager,
		logger:        logger,
		timeout:       timeout,
	}
}

// WithUptimeWebhook pings url after each successful run. An empty url disables it.
func (ij *InstrumentedJob) WithUptimeWebhook(pinger UptimePinger, url string) *InstrumentedJob {
	ij.pinger = pinger
	ij.webhookURL = url
	return ij
}

func (ij *InstrumentedJob) Name() string {
	return ij.jobName
}

// Execute runs the job synchronously under ctx and returns its error.
// The job is expected to honour ctx; a run that ends past the deadline counts as a timeout.
func (ij *InstrumentedJob) Execute(ctx context.Context) error {
	ij.statusManager.StartJob(ij.jobName)

	runCtx, cancel := context.WithTimeout(ctx, ij.timeout)
	defer cancel()

	var metadata map[string]interface{}
	err := ij.call(runCtx, &metadata)

	if err != nil && metadata == nil {
		metadata = map[string]interface{}{"error_type": classifyJobError(err)}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if err == nil {
			err = fmt.Errorf("job timeout after %v", ij.timeout)
		}
		metadata = map[string]interface{}{
			"error_type": "timeout",
			"timeout":    ij.timeout.String(),
		}
		ij.statusManager.metrics.jobTimeouts.WithLabelValues(ij.jobName).Inc()
	}

	ij.statusManager.CompleteJob(ij.jobName, err, metadata)

	if err == nil && ij.pinger != nil && ij.webhookURL != "" {
		ij.pinger.CallUptimeWebhook(ctx, ij.webhookURL)
	}
	return err
}

func (ij *InstrumentedJob) call(ctx context.Context, metadata *map[string]interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			*metadata = map[string]interface{}{
				"panic":       fmt.Sprintf("%v", r),
				"stack_trace": string(debug.Stack()),
				"error_type":  "panic",
			}
			ij.logger.Error("[InstrumentedJob][Execute] job panicked", map[string]string{
				"job_name": ij.jobName,
				"panic":    fmt.Sprintf("%v", r),
			})
		}
	}()
	return ij.jobFunc(ctx)
}

// BackgroundJobMetrics contains all Prometheus metrics for background job monitoring
type BackgroundJobMetrics struct {
	jobDuration *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
	activeJobs  prometheus.Gauge
	stalledJobs prometheus.Gauge
	backlog     *prometheus.GaugeVec
	jobTimeouts *prometheus.CounterVec
}

func NewBackgroundJobMetrics() *BackgroundJobMetrics {
	return &BackgroundJobMetrics{
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "icy_funding_background_job_duration_seconds",
				Help:    "Background job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job_name", "status"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_background_job_runs_total",
				Help: "Total number of background job runs",
			},
			[]string{"job_name", "status"},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "icy_funding_background_jobs_active",
				Help: "Number of currently running background jobs",
			},
		),
		stalledJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "icy_funding_background_jobs_stalled",
				Help: "Number of stalled background jobs",
			},
		),
		backlog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icy_funding_backlog",
				Help: "Work waiting for the pipeline by kind",
			},
			[]string{"kind"}, // "pending_fundings", "pending_rewards", "failed_rewards"
		),
		jobTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icy_funding_job_timeouts_total",
				Help: "Total job timeouts",
			},
			[]string{"job_name"},
		),
	}
}

func (m *BackgroundJobMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.jobDuration,
		m.jobRuns,
		m.activeJobs,
		m.stalledJobs,
		m.backlog,
		m.jobTimeouts,
	)
}

func (m *BackgroundJobMetrics) SetBacklog(kind string, count int64) {
	m.backlog.WithLabelValues(kind).Set(float64(count))
}

// classifyJobError classifies errors into different types for better monitoring
func classifyJobError(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "sql"):
		return "database"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return "network"
	case strings.Contains(errStr, "external"), strings.Contains(errStr, "api"), strings.Contains(errStr, "rpc"):
		return "external_api"
	case strings.Contains(errStr, "panic"):
		return "panic"
	case strings.Contains(errStr, "already in progress"):
		return "overlap"
	default:
		return "unknown"
	}
}
