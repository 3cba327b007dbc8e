package addresspoolentry

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, entry *model.AddressPoolEntry) (*model.AddressPoolEntry, error) {
	return entry, tx.Create(entry).Error
}

func (s *store) GetByAddress(tx *gorm.DB, address string) (*model.AddressPoolEntry, error) {
	var entry model.AddressPoolEntry
	err := tx.Where("address = ?", address).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *store) ListUnused(tx *gorm.DB, chain model.Chain, limit int) ([]*model.AddressPoolEntry, error) {
	var entries []*model.AddressPoolEntry
	query := tx.Where("chain = ? AND is_used = ?", chain, false).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (s *store) MarkUsed(tx *gorm.DB, address string, usedAt time.Time) (bool, error) {
	result := tx.Model(&model.AddressPoolEntry{}).
		Where("address = ? AND is_used = ?", address, false).
		Updates(map[string]interface{}{
			"is_used":    true,
			"used_at":    usedAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *store) BindFunding(tx *gorm.DB, address string, fundingRecordID string) error {
	return tx.Model(&model.AddressPoolEntry{}).
		Where("address = ? AND is_used = ?", address, true).
		Updates(map[string]interface{}{
			"funding_record_id": fundingRecordID,
			"updated_at":        time.Now(),
		}).Error
}

func (s *store) MaxDerivationIndex(tx *gorm.DB, chain model.Chain) (int64, error) {
	var maxIndex int64
	err := tx.Model(&model.AddressPoolEntry{}).
		Select("COALESCE(MAX(derivation_index), -1)").
		Where("chain = ?", chain).
		Scan(&maxIndex).Error
	return maxIndex, err
}

func (s *store) ReleaseExpiredOwners(tx *gorm.DB, cutoff time.Time) ([]string, error) {
	expiredOwners := func() *gorm.DB {
		return tx.Model(&model.FundingRecord{}).
			Select("id").
			Where("status = ? AND updated_at < ?", model.FundingStatusExpired, cutoff)
	}

	var addresses []string
	err := tx.Model(&model.AddressPoolEntry{}).
		Where("is_used = ? AND funding_record_id IN (?)", true, expiredOwners()).
		Pluck("address", &addresses).Error
	if err != nil || len(addresses) == 0 {
		return nil, err
	}

	err = tx.Model(&model.AddressPoolEntry{}).
		Where("address IN ? AND is_used = ? AND funding_record_id IN (?)", addresses, true, expiredOwners()).
		Updates(map[string]interface{}{
			"is_used":           false,
			"used_at":           nil,
			"funding_record_id": nil,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

func (s *store) CountUnused(tx *gorm.DB, chain model.Chain) (int64, error) {
	var count int64
	err := tx.Model(&model.AddressPoolEntry{}).
		Where("chain = ? AND is_used = ?", chain, false).
		Count(&count).Error
	return count, err
}

func (s *store) CountByChain(tx *gorm.DB) ([]ChainCount, error) {
	var rows []struct {
		Chain  model.Chain
		IsUsed bool
		Count  int64
	}
	err := tx.Model(&model.AddressPoolEntry{}).
		Select("chain, is_used, COUNT(*) AS count").
		Group("chain, is_used").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byChain := map[model.Chain]*ChainCount{}
	for _, c := range model.SupportedChains {
		byChain[c] = &ChainCount{Chain: c}
	}
	for _, r := range rows {
		cc, ok := byChain[r.Chain]
		if !ok {
			continue
		}
		if r.IsUsed {
			cc.Used += r.Count
		} else {
			cc.Unused += r.Count
		}
	}

	out := make([]ChainCount, 0, len(model.SupportedChains))
	for _, c := range model.SupportedChains {
		out = append(out, *byChain[c])
	}
	return out, nil
}
