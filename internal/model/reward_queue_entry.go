package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RewardQueueStatus string

const (
	RewardQueueStatusPending    RewardQueueStatus = "pending"
	RewardQueueStatusProcessing RewardQueueStatus = "processing"
	// submitted: the transfer was broadcast but its receipt is still unknown
	RewardQueueStatusSubmitted RewardQueueStatus = "submitted"
	RewardQueueStatusCompleted  RewardQueueStatus = "completed"
	RewardQueueStatusFailed     RewardQueueStatus = "failed"
)

const (
	RewardPriorityNormal = 0
	RewardPriorityHigh   = 10
)

type RewardQueueEntry struct {
	ID               int64               `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	FundingRecordID  string              `json:"funding_record_id" gorm:"column:funding_record_id;type:varchar(36);not null;uniqueIndex"`
	RequesterAddress string              `json:"requester_address" gorm:"column:requester_address;type:varchar(64);not null"`
	FundedAmount     decimal.Decimal     `json:"funded_amount" gorm:"column:funded_amount;type:varchar(100);not null"`
	Chain            Chain               `json:"chain" gorm:"column:chain;type:varchar(10);not null"`
	Priority         int                 `json:"priority" gorm:"column:priority;not null;default:0"`
	Status           RewardQueueStatus   `json:"status" gorm:"column:status;type:varchar(20);not null;index"`
	RetryCount       int                 `json:"retry_count" gorm:"column:retry_count;not null;default:0"`
	ErrorMessage     *string             `json:"error_message" gorm:"column:error_message;type:text"`
	RewardTxHash     *string             `json:"reward_tx_hash" gorm:"column:reward_tx_hash;type:varchar(128)"`
	RewardAmount     decimal.NullDecimal `json:"reward_amount" gorm:"column:reward_amount;type:varchar(100)"`
	CreatedAt        time.Time           `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt        time.Time           `json:"updated_at" gorm:"column:updated_at"`
	CompletedAt      *time.Time          `json:"completed_at" gorm:"column:completed_at"`
}

func (RewardQueueEntry) TableName() string {
	return "reward_queue_entries"
}

type RewardQueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Submitted  int64 `json:"submitted"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
