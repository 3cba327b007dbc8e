package controller

import (
	"context"

	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

type IController interface {
	// RequestDeposit assigns a deposit address and opens a pending funding record
	RequestDeposit(ctx context.Context, input DepositInput) (*DepositResponse, error)

	// CheckStatus returns the funding state, refreshing a pending record from its chain first
	CheckStatus(ctx context.Context, depositID string) (*StatusResponse, error)

	// BatchCheckFundings runs one chain monitor cycle now
	BatchCheckFundings(ctx context.Context) (*chainmonitor.CycleResult, error)

	// ProcessRewardQueue runs one reward processor cycle now
	ProcessRewardQueue(ctx context.Context) (*ProcessQueueResponse, error)

	// RetryFailedRewards requeues every failed reward that still has retries left
	RetryFailedRewards(ctx context.Context) (int, error)

	RewardInfo(ctx context.Context) (*RewardInfoResponse, error)
	WorkerStatus(ctx context.Context) (*worker.Status, error)
}

// RewardCycleRunner is the part of the reward processor the API can trigger.
type RewardCycleRunner interface {
	RunCycle(ctx context.Context) (*worker.ProcessResult, error)
}

// Workers runs nudged cycles in the background and reports worker state.
type Workers interface {
	Go(name string, fn func(ctx context.Context) error)
	Status(ctx context.Context) (*worker.Status, error)
}
