package store

import (
	"github.com/dwarvesf/icy-funding-backend/internal/store/actionlog"
	"github.com/dwarvesf/icy-funding-backend/internal/store/addresspoolentry"
	"github.com/dwarvesf/icy-funding-backend/internal/store/fundingrecord"
	"github.com/dwarvesf/icy-funding-backend/internal/store/rewardqueueentry"
	"github.com/dwarvesf/icy-funding-backend/internal/store/workerheartbeat"
)

type Store struct {
	FundingRecord    fundingrecord.IStore
	AddressPoolEntry addresspoolentry.IStore
	RewardQueueEntry rewardqueueentry.IStore
	ActionLog        actionlog.IStore
	WorkerHeartbeat  workerheartbeat.IStore
}

func New() *Store {
	return &Store{
		FundingRecord:    fundingrecord.New(),
		AddressPoolEntry: addresspoolentry.New(),
		RewardQueueEntry: rewardqueueentry.New(),
		ActionLog:        actionlog.New(),
		WorkerHeartbeat:  workerheartbeat.New(),
	}
}
