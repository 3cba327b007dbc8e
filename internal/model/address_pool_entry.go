package model

import "time"

type AddressPoolEntry struct {
	ID                  uint       `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Chain               Chain      `json:"chain" gorm:"column:chain;type:varchar(10);not null;uniqueIndex:idx_address_pool_chain_index"`
	Address             string     `json:"address" gorm:"column:address;type:varchar(128);not null;uniqueIndex"`
	EncryptedPrivateKey *string    `json:"-" gorm:"column:encrypted_private_key;type:text"`
	DerivationIndex     uint32     `json:"derivation_index" gorm:"column:derivation_index;not null;uniqueIndex:idx_address_pool_chain_index"`
	IsUsed              bool       `json:"is_used" gorm:"column:is_used;not null;default:false;index"`
	UsedAt              *time.Time `json:"used_at" gorm:"column:used_at"`
	FundingRecordID     *string    `json:"funding_record_id" gorm:"column:funding_record_id;type:varchar(36);index"`
	CreatedAt           time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (AddressPoolEntry) TableName() string {
	return "address_pool_entries"
}
