package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FundingStatus string

const (
	FundingStatusPending    FundingStatus = "pending"
	FundingStatusConfirmed  FundingStatus = "confirmed"
	FundingStatusRewardSent FundingStatus = "reward_sent"
	FundingStatusExpired    FundingStatus = "expired"
	FundingStatusFailed     FundingStatus = "failed"
)

// ValidFundingTransitions lists every allowed status move. Anything else is refused.
var ValidFundingTransitions = map[FundingStatus][]FundingStatus{
	FundingStatusPending:   {FundingStatusConfirmed, FundingStatusExpired},
	FundingStatusConfirmed: {FundingStatusRewardSent, FundingStatusFailed},
}

func (s FundingStatus) CanTransitionTo(target FundingStatus) bool {
	for _, allowed := range ValidFundingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s FundingStatus) IsTerminal() bool {
	switch s {
	case FundingStatusRewardSent, FundingStatusExpired, FundingStatusFailed:
		return true
	}
	return false
}

// UserMessage is what a client shows next to the status.
func (s FundingStatus) UserMessage() string {
	switch s {
	case FundingStatusPending:
		return "waiting for deposit"
	case FundingStatusConfirmed:
		return "deposit confirmed, reward processing"
	case FundingStatusRewardSent:
		return "reward sent"
	case FundingStatusExpired:
		return "deposit window expired, please request a new deposit address"
	case FundingStatusFailed:
		return "reward could not be sent, please contact support"
	}
	return ""
}

type FundingRecord struct {
	ID               string              `json:"id" gorm:"column:id;type:varchar(36);primaryKey"`
	RequesterAddress string              `json:"requester_address" gorm:"column:requester_address;type:varchar(128);not null"`
	RewardAddress    string              `json:"reward_address" gorm:"column:reward_address;type:varchar(64);not null"`
	Chain            Chain               `json:"chain" gorm:"column:chain;type:varchar(10);not null;index"`
	DepositAddress   string              `json:"deposit_address" gorm:"column:deposit_address;type:varchar(128);not null;index"`
	RequestedAmount  decimal.Decimal     `json:"requested_amount" gorm:"column:requested_amount;type:varchar(100);not null"`
	Status           FundingStatus       `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	FundedAmount     decimal.NullDecimal `json:"funded_amount" gorm:"column:funded_amount;type:varchar(100)"`
	FundingTxHash    *string             `json:"funding_tx_hash" gorm:"column:funding_tx_hash;type:varchar(128);uniqueIndex"`
	RewardTxHash     *string             `json:"reward_tx_hash" gorm:"column:reward_tx_hash;type:varchar(128)"`
	Confirmations    int                 `json:"confirmations" gorm:"column:confirmations;not null;default:0"`
	MinConfirmations int                 `json:"min_confirmations" gorm:"column:min_confirmations;not null"`
	BaselineBalance  decimal.Decimal     `json:"-" gorm:"column:baseline_balance;type:varchar(100);not null"`
	CreatedAt        time.Time           `json:"created_at" gorm:"column:created_at;index"`
	ExpiresAt        time.Time           `json:"expires_at" gorm:"column:expires_at;index"`
	UpdatedAt        time.Time           `json:"updated_at" gorm:"column:updated_at"`
}

func (FundingRecord) TableName() string {
	return "funding_records"
}

func (r *FundingRecord) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
