package controller

import (
	"time"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/reward"
	"github.com/dwarvesf/icy-funding-backend/internal/store/addresspoolentry"
)

type DepositInput struct {
	UserAddress   string
	Chain         model.Chain
	Amount        string
	RewardAddress string
}

type DepositResponse struct {
	DepositID        string      `json:"depositId"`
	DepositAddress   string      `json:"depositAddress"`
	QRData           string      `json:"qrData"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	Chain            model.Chain `json:"chain"`
	MinConfirmations int         `json:"minConfirmations"`
	RewardAddress    string      `json:"rewardAddress"`
}

type StatusResponse struct {
	DepositID        string              `json:"depositId"`
	Status           model.FundingStatus `json:"status"`
	Message          string              `json:"message"`
	Chain            model.Chain         `json:"chain"`
	DepositAddress   string              `json:"depositAddress"`
	Confirmations    int                 `json:"confirmations"`
	MinConfirmations int                 `json:"minConfirmations"`
	FundedAmount     *string             `json:"fundedAmount"`
	FundingTxHash    *string             `json:"fundingTxHash"`
	RewardTxHash     *string             `json:"rewardTxHash"`
	ExplorerURL      string              `json:"explorerUrl,omitempty"`
	ExpiresAt        time.Time           `json:"expiresAt"`
}

type ProcessQueueResponse struct {
	Processed int                     `json:"processed"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Skipped   int                     `json:"skipped"`
	Submitted int                     `json:"submitted"`
	Queue     *model.RewardQueueStats `json:"queue"`
}

type RewardInfoResponse struct {
	Reward      *reward.Info                  `json:"reward,omitempty"`
	RewardError string                        `json:"reward_error,omitempty"`
	Queue       *model.RewardQueueStats       `json:"queue"`
	Pool        []addresspoolentry.ChainCount `json:"address_pool"`
	Fundings    map[model.FundingStatus]int64 `json:"fundings"`
}
