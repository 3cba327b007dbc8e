// Package controllertest provides a testify mock of the funding controller for handler tests.
package controllertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/controller"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

type MockController struct {
	mock.Mock
}

var _ controller.IController = (*MockController)(nil)

func (m *MockController) RequestDeposit(ctx context.Context, input controller.DepositInput) (*controller.DepositResponse, error) {
	args := m.Called(input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controller.DepositResponse), args.Error(1)
}

func (m *MockController) CheckStatus(ctx context.Context, depositID string) (*controller.StatusResponse, error) {
	args := m.Called(depositID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controller.StatusResponse), args.Error(1)
}

func (m *MockController) BatchCheckFundings(ctx context.Context) (*chainmonitor.CycleResult, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainmonitor.CycleResult), args.Error(1)
}

func (m *MockController) ProcessRewardQueue(ctx context.Context) (*controller.ProcessQueueResponse, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controller.ProcessQueueResponse), args.Error(1)
}

func (m *MockController) RetryFailedRewards(ctx context.Context) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockController) RewardInfo(ctx context.Context) (*controller.RewardInfoResponse, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*controller.RewardInfoResponse), args.Error(1)
}

func (m *MockController) WorkerStatus(ctx context.Context) (*worker.Status, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*worker.Status), args.Error(1)
}
