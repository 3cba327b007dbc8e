package server

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

type (
	monitorCycle interface {
		RunCycle(ctx context.Context) (*chainmonitor.CycleResult, error)
	}
	rewardCycle interface {
		RunCycle(ctx context.Context) (*worker.ProcessResult, error)
	}
	cleanupCycle interface {
		RunCycle(ctx context.Context) (*worker.CleanupResult, error)
	}
	jobRegistry interface {
		Register(job worker.Job) error
	}
)

// registerJobs puts the three worker loops on the manager's cron. A tick that finds
// its cycle already running (an admin call got there first) is not a failure.
func registerJobs(m jobRegistry, appConfig *config.AppConfig, monitor monitorCycle, processor rewardCycle, cleanup cleanupCycle) error {
	rewardTimeout := appConfig.Reward.TxTimeout * time.Duration(max(appConfig.Reward.BatchSize, 1))
	if rewardTimeout > 0 {
		rewardTimeout += time.Minute
	}

	jobs := []worker.Job{
		{
			Name:      consts.JOB_CHAIN_MONITOR,
			Schedule:  appConfig.Schedule.ChainMonitor,
			UptimeURL: appConfig.UptimeWebhooks.ChainMonitorURL,
			Run: func(ctx context.Context) error {
				_, err := monitor.RunCycle(ctx)
				if errors.Is(err, chainmonitor.ErrCycleInProgress) {
					return nil
				}
				return err
			},
		},
		{
			Name:      consts.JOB_REWARD_PROCESSOR,
			Schedule:  appConfig.Schedule.RewardProcessor,
			Timeout:   rewardTimeout,
			UptimeURL: appConfig.UptimeWebhooks.RewardProcessorURL,
			Run: func(ctx context.Context) error {
				_, err := processor.RunCycle(ctx)
				if errors.Is(err, worker.ErrProcessorBusy) {
					return nil
				}
				return err
			},
		},
		{
			Name:      consts.JOB_CLEANUP,
			Schedule:  appConfig.Schedule.Cleanup,
			UptimeURL: appConfig.UptimeWebhooks.CleanupURL,
			Run: func(ctx context.Context) error {
				_, err := cleanup.RunCycle(ctx)
				return err
			},
		},
	}

	for _, job := range jobs {
		if err := m.Register(job); err != nil {
			return err
		}
	}
	return nil
}
