package addresspool

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/store/addresspoolentry"
)

type IAddressPool interface {
	// GetUnusedAddress returns the oldest unused entry, or nil when the pool is empty.
	GetUnusedAddress(ctx context.Context, chain model.Chain) (*model.AddressPoolEntry, error)

	// MarkAddressAsUsed reports whether this call won the address.
	MarkAddressAsUsed(ctx context.Context, address string) (bool, error)

	StoreAddress(ctx context.Context, chain model.Chain, address string, encryptedKey *string, derivationIndex uint32) (*model.AddressPoolEntry, error)
	PreGenerateAddresses(ctx context.Context, chain model.Chain, count int) (int, error)

	// AssignAddress hands out an address that is persisted and claimed by the caller.
	AssignAddress(ctx context.Context, chain model.Chain) (*model.AddressPoolEntry, error)

	BindFunding(tx *gorm.DB, address string, fundingID string) error
	ReleaseExpired(ctx context.Context, cooldown time.Duration) (int64, error)
	CountUnused(ctx context.Context, chain model.Chain) (int64, error)
	Stats(ctx context.Context) ([]addresspoolentry.ChainCount, error)
}
