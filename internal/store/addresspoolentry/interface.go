package addresspoolentry

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type ChainCount struct {
	Chain  model.Chain `json:"chain"`
	Used   int64       `json:"used"`
	Unused int64       `json:"unused"`
}

type IStore interface {
	Create(tx *gorm.DB, entry *model.AddressPoolEntry) (*model.AddressPoolEntry, error)
	GetByAddress(tx *gorm.DB, address string) (*model.AddressPoolEntry, error)

	// ListUnused returns unused entries of a chain, oldest first
	ListUnused(tx *gorm.DB, chain model.Chain, limit int) ([]*model.AddressPoolEntry, error)

	// MarkUsed flips is_used false -> true. Returns false if someone else already holds it
	MarkUsed(tx *gorm.DB, address string, usedAt time.Time) (bool, error)

	BindFunding(tx *gorm.DB, address string, fundingRecordID string) error

	// MaxDerivationIndex returns -1 when the chain has no entries yet
	MaxDerivationIndex(tx *gorm.DB, chain model.Chain) (int64, error)

	// ReleaseExpiredOwners frees used entries whose owning funding record expired before cutoff
	ReleaseExpiredOwners(tx *gorm.DB, cutoff time.Time) ([]string, error)

	CountUnused(tx *gorm.DB, chain model.Chain) (int64, error)
	CountByChain(tx *gorm.DB) ([]ChainCount, error)
}
