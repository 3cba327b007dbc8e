package addresspool

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/store/addresspoolentry"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/keyenc"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const (
	maxClaimAttempts    = 3
	maxGenerateAttempts = 3
)

var (
	ErrPoolExhausted = errors.New("no deposit address available")
	ErrNoKeyCipher   = errors.New("key encryption is not configured")
)

type AddressPool struct {
	db       *gorm.DB
	store    *store.Store
	adapters *chainadapter.Registry
	cipher   *keyenc.Cipher
	logger   *logger.Logger
}

// New builds the pool service. cipher may be nil when every adapter is watch-only.
func New(db *gorm.DB, store *store.Store, adapters *chainadapter.Registry, cipher *keyenc.Cipher, logger *logger.Logger) *AddressPool {
	return &AddressPool{
		db:       db,
		store:    store,
		adapters: adapters,
		cipher:   cipher,
		logger:   logger,
	}
}

func (p *AddressPool) GetUnusedAddress(ctx context.Context, chain model.Chain) (*model.AddressPoolEntry, error) {
	entries, err := p.store.AddressPoolEntry.ListUnused(p.db.WithContext(ctx), chain, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (p *AddressPool) MarkAddressAsUsed(ctx context.Context, address string) (bool, error) {
	return p.store.AddressPoolEntry.MarkUsed(p.db.WithContext(ctx), address, time.Now())
}

func (p *AddressPool) StoreAddress(ctx context.Context, chain model.Chain, address string, encryptedKey *string, derivationIndex uint32) (*model.AddressPoolEntry, error) {
	return p.store.AddressPoolEntry.Create(p.db.WithContext(ctx), &model.AddressPoolEntry{
		Chain:               chain,
		Address:             address,
		EncryptedPrivateKey: encryptedKey,
		DerivationIndex:     derivationIndex,
	})
}

func (p *AddressPool) PreGenerateAddresses(ctx context.Context, chain model.Chain, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	maxIndex, err := p.store.AddressPoolEntry.MaxDerivationIndex(p.db.WithContext(ctx), chain)
	if err != nil {
		return 0, err
	}

	stored := 0
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if _, err := p.generate(ctx, chain, uint32(maxIndex+int64(i))); err != nil {
			p.logger.Error("[PreGenerateAddresses][generate]", map[string]string{
				"error":  err.Error(),
				"chain":  string(chain),
				"stored": fmt.Sprint(stored),
			})
			return stored, err
		}
		stored++
	}

	p.logger.Info("[PreGenerateAddresses] pool topped up", map[string]string{
		"chain":  string(chain),
		"stored": fmt.Sprint(stored),
	})
	return stored, nil
}

func (p *AddressPool) AssignAddress(ctx context.Context, chain model.Chain) (*model.AddressPoolEntry, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		entry, err := p.GetUnusedAddress(ctx, chain)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}

		claimed, err := p.MarkAddressAsUsed(ctx, entry.Address)
		if err != nil {
			return nil, err
		}
		if claimed {
			return p.store.AddressPoolEntry.GetByAddress(p.db.WithContext(ctx), entry.Address)
		}
		p.logger.Debug("[AssignAddress][MarkAddressAsUsed] lost claim, trying next", map[string]string{
			"address": entry.Address,
		})
	}

	p.logger.Warn("[AssignAddress] pool empty, generating on demand", map[string]string{
		"chain": string(chain),
	})
	return p.assignOnDemand(ctx, chain)
}

// assignOnDemand derives a fresh address, persists it and only then claims it.
// A unique index clash with a concurrent generator moves on to the next index.
func (p *AddressPool) assignOnDemand(ctx context.Context, chain model.Chain) (*model.AddressPoolEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		maxIndex, err := p.store.AddressPoolEntry.MaxDerivationIndex(p.db.WithContext(ctx), chain)
		if err != nil {
			return nil, err
		}

		entry, err := p.generate(ctx, chain, uint32(maxIndex+1))
		if err != nil {
			lastErr = err
			if errors.Is(err, chainadapter.ErrUnsupportedChain) || errors.Is(err, ErrNoKeyCipher) {
				break
			}
			continue
		}

		claimed, err := p.MarkAddressAsUsed(ctx, entry.Address)
		if err != nil {
			return nil, err
		}
		if claimed {
			return p.store.AddressPoolEntry.GetByAddress(p.db.WithContext(ctx), entry.Address)
		}
	}

	if lastErr == nil {
		return nil, ErrPoolExhausted
	}
	return nil, errors.Wrap(ErrPoolExhausted, lastErr.Error())
}

func (p *AddressPool) generate(ctx context.Context, chain model.Chain, index uint32) (*model.AddressPoolEntry, error) {
	adapter, err := p.adapters.Get(chain)
	if err != nil {
		return nil, err
	}

	generated, err := adapter.GenerateAddress(ctx, index)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("derive %s address %d", chain, index))
	}

	var sealed *string
	if len(generated.PrivateKey) > 0 {
		if p.cipher == nil {
			return nil, ErrNoKeyCipher
		}
		s, err := p.cipher.Seal(generated.PrivateKey)
		if err != nil {
			return nil, err
		}
		sealed = &s
	}

	return p.StoreAddress(ctx, chain, generated.Address, sealed, generated.DerivationIndex)
}

func (p *AddressPool) BindFunding(tx *gorm.DB, address string, fundingID string) error {
	return p.store.AddressPoolEntry.BindFunding(tx, address, fundingID)
}

func (p *AddressPool) ReleaseExpired(ctx context.Context, cooldown time.Duration) (int64, error) {
	var released []string
	err := store.DoInTx(p.db.WithContext(ctx), func(tx *gorm.DB) error {
		addresses, err := p.store.AddressPoolEntry.ReleaseExpiredOwners(tx, time.Now().Add(-cooldown))
		if err != nil {
			return err
		}
		for _, address := range addresses {
			_, err := p.store.ActionLog.Create(tx, &model.ActionLog{
				Action:  model.ActionAddressReleased,
				Message: address,
			})
			if err != nil {
				return err
			}
		}
		released = addresses
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(released)), nil
}

func (p *AddressPool) CountUnused(ctx context.Context, chain model.Chain) (int64, error) {
	return p.store.AddressPoolEntry.CountUnused(p.db.WithContext(ctx), chain)
}

func (p *AddressPool) Stats(ctx context.Context) ([]addresspoolentry.ChainCount, error) {
	return p.store.AddressPoolEntry.CountByChain(p.db.WithContext(ctx))
}
