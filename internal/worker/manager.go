package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var ErrManagerStarted = errors.New("worker manager already started")

const defaultJobTimeout = 5 * time.Minute

// Job is one scheduled worker loop.
type Job struct {
	Name      string
	Schedule  string
	Timeout   time.Duration
	UptimeURL string
	Run       func(ctx context.Context) error
}

type ScheduledJob struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	PrevRun  time.Time `json:"prev_run"`
}

type Status struct {
	InstanceID string                          `json:"instance_id"`
	Running    bool                            `json:"running"`
	Summary    monitoring.JobsSummary          `json:"summary"`
	Jobs       map[string]monitoring.JobStatus `json:"jobs"`
	Schedule   []ScheduledJob                  `json:"schedule"`
	Heartbeats []*model.WorkerHeartbeat        `json:"heartbeats"`
}

// Manager owns the worker loops. Each job runs on its own cron entry and never overlaps itself.
type Manager struct {
	db         *gorm.DB
	store      *store.Store
	jobStatus  *monitoring.JobStatusManager
	pinger     monitoring.UptimePinger
	logger     *logger.Logger
	instanceID string

	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	// background runs started through Go
	wg sync.WaitGroup

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
}

func NewManager(db *gorm.DB, store *store.Store, jobStatus *monitoring.JobStatusManager, pinger monitoring.UptimePinger, logger *logger.Logger) *Manager {
	cronLogger := &cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		db:         db,
		store:      store,
		jobStatus:  jobStatus,
		pinger:     pinger,
		logger:     logger,
		instanceID: uuid.NewString(),
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]cron.EntryID{},
		specs:   map[string]string{},
	}
}

func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Register schedules job. It must be called before Start.
func (m *Manager) Register(job Job) error {
	if m.started.Load() {
		return ErrManagerStarted
	}
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run func")
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}

	instrumented := monitoring.NewInstrumentedJob(job.Name, job.Run, m.jobStatus, m.logger, job.Timeout).
		WithUptimeWebhook(m.pinger, job.UptimeURL)

	id, err := m.cron.AddFunc(job.Schedule, func() {
		m.runJob(instrumented)
	})
	if err != nil {
		return errors.Wrapf(err, "schedule %s", job.Name)
	}

	m.mu.Lock()
	m.entries[job.Name] = id
	m.specs[job.Name] = job.Schedule
	m.mu.Unlock()
	return nil
}

func (m *Manager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.cron.Start()
	m.logger.Info("[WorkerManager] workers started", map[string]string{
		"instance_id": m.instanceID,
		"jobs":        fmt.Sprint(len(m.entries)),
	})
}

// Go runs fn in the background under the workers' context, e.g. a cycle nudged by an API call.
// Stop waits for it like any scheduled run.
func (m *Manager) Go(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("[WorkerManager][Go] background run panicked", map[string]string{
					"job_name": name,
					"panic":    fmt.Sprint(r),
				})
			}
		}()
		if err := fn(m.ctx); err != nil {
			m.logger.Debug("[WorkerManager][Go] background run", map[string]string{
				"job_name": name,
				"error":    err.Error(),
			})
		}
	}()
}

// Stop cancels in-flight cycles and waits for them to return, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	cronDone := m.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("[WorkerManager] workers stopped", map[string]string{
			"instance_id": m.instanceID,
		})
		return nil
	case <-ctx.Done():
		m.logger.Warn("[WorkerManager] stop deadline reached with jobs still running", map[string]string{
			"instance_id": m.instanceID,
		})
		return ctx.Err()
	}
}

func (m *Manager) Status(ctx context.Context) (*Status, error) {
	heartbeats, err := m.store.WorkerHeartbeat.All(m.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	status := &Status{
		InstanceID: m.instanceID,
		Running:    m.started.Load() && m.ctx.Err() == nil,
		Summary:    m.jobStatus.GetJobsSummary(),
		Jobs:       m.jobStatus.GetAllJobStatuses(),
		Heartbeats: heartbeats,
	}

	m.mu.Lock()
	for name, id := range m.entries {
		entry := m.cron.Entry(id)
		status.Schedule = append(status.Schedule, ScheduledJob{
			Name:     name,
			Schedule: m.specs[name],
			NextRun:  entry.Next,
			PrevRun:  entry.Prev,
		})
	}
	m.mu.Unlock()
	return status, nil
}

func (m *Manager) runJob(job *monitoring.InstrumentedJob) {
	if m.ctx.Err() != nil {
		return
	}

	err := job.Execute(m.ctx)

	heartbeat := &model.WorkerHeartbeat{
		WorkerName: job.Name(),
		InstanceID: m.instanceID,
		LastRunAt:  time.Now(),
		LastStatus: string(monitoring.JobStatusSuccess),
	}
	if err != nil {
		heartbeat.LastStatus = string(monitoring.JobStatusFailed)
		heartbeat.LastError = err.Error()
	}
	if err := m.store.WorkerHeartbeat.Upsert(m.db.WithContext(context.WithoutCancel(m.ctx)), heartbeat); err != nil {
		m.logger.Error("[WorkerManager][Upsert] heartbeat", map[string]string{
			"job_name": job.Name(),
			"error":    err.Error(),
		})
	}
}

// cronLogger routes robfig/cron's own logging into our logger.
type cronLogger struct {
	logger *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("[cron] "+msg, kvFields(keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	l.logger.Error("[cron] "+msg, fields)
}

func kvFields(keysAndValues []interface{}) map[string]string {
	fields := make(map[string]string, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = fmt.Sprint(keysAndValues[i+1])
	}
	return fields
}
