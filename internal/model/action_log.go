package model

import "time"

type ActionType string

const (
	ActionDepositRequested ActionType = "deposit_requested"
	ActionFundingConfirmed ActionType = "funding_confirmed"
	ActionRewardSent       ActionType = "reward_sent"
	ActionRewardFailed     ActionType = "reward_failed"
	ActionFundingExpired   ActionType = "funding_expired"
	ActionAddressReleased  ActionType = "address_released"
)

type ActionLog struct {
	ID              int64      `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	FundingRecordID string     `json:"funding_record_id" gorm:"column:funding_record_id;type:varchar(36);index"`
	Action          ActionType `json:"action" gorm:"column:action;type:varchar(50);not null"`
	Message         string     `json:"message" gorm:"column:message;type:text"`
	Metadata        string     `json:"metadata" gorm:"column:metadata;type:text"`
	CreatedAt       time.Time  `json:"created_at" gorm:"column:created_at;index"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}
