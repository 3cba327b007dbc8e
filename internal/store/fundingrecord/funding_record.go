package fundingrecord

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, record *model.FundingRecord) (*model.FundingRecord, error) {
	if record.Status == "" {
		record.Status = model.FundingStatusPending
	}
	return record, tx.Create(record).Error
}

func (s *store) GetByID(tx *gorm.DB, id string) (*model.FundingRecord, error) {
	var record model.FundingRecord
	err := tx.Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store) GetByFundingTxHash(tx *gorm.DB, hash string) (*model.FundingRecord, error) {
	var record model.FundingRecord
	err := tx.Where("funding_tx_hash = ?", hash).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store) ListPending(tx *gorm.DB, now time.Time, limit int) ([]*model.FundingRecord, error) {
	var records []*model.FundingRecord
	query := tx.Where("status = ? AND expires_at > ?", model.FundingStatusPending, now).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

func (s *store) UpdateConfirmations(tx *gorm.DB, id string, confirmations int) error {
	return tx.Model(&model.FundingRecord{}).
		Where("id = ? AND status = ?", id, model.FundingStatusPending).
		Updates(map[string]interface{}{
			"confirmations": confirmations,
			"updated_at":    time.Now(),
		}).Error
}

func (s *store) Confirm(tx *gorm.DB, id string, fundedAmount decimal.Decimal, fundingTxHash string, confirmations int) (bool, error) {
	updates := map[string]interface{}{
		"status":        model.FundingStatusConfirmed,
		"funded_amount": decimal.NewNullDecimal(fundedAmount),
		"confirmations": confirmations,
		"updated_at":    time.Now(),
	}
	if fundingTxHash != "" {
		updates["funding_tx_hash"] = fundingTxHash
	}

	return s.transition(tx, id, model.FundingStatusPending, updates, "")
}

func (s *store) MarkRewardSent(tx *gorm.DB, id string, rewardTxHash string) (bool, error) {
	return s.transition(tx, id, model.FundingStatusConfirmed, map[string]interface{}{
		"status":         model.FundingStatusRewardSent,
		"reward_tx_hash": rewardTxHash,
		"updated_at":     time.Now(),
	}, "reward_tx_hash IS NULL")
}

func (s *store) MarkFailed(tx *gorm.DB, id string) (bool, error) {
	return s.transition(tx, id, model.FundingStatusConfirmed, map[string]interface{}{
		"status":     model.FundingStatusFailed,
		"updated_at": time.Now(),
	}, "")
}

func (s *store) ExpirePending(tx *gorm.DB, now time.Time) ([]string, error) {
	var candidates []string
	err := tx.Model(&model.FundingRecord{}).
		Where("status = ? AND expires_at < ?", model.FundingStatusPending, now).
		Pluck("id", &candidates).Error
	if err != nil {
		return nil, err
	}

	expired := []string{}
	for _, id := range candidates {
		ok, err := s.transition(tx, id, model.FundingStatusPending, map[string]interface{}{
			"status":     model.FundingStatusExpired,
			"updated_at": time.Now(),
		}, "")
		if err != nil {
			return expired, err
		}
		if ok {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *store) CountByStatus(tx *gorm.DB) (map[model.FundingStatus]int64, error) {
	var rows []struct {
		Status model.FundingStatus
		Count  int64
	}
	err := tx.Model(&model.FundingRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.FundingStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// transition is a compare-and-swap on the status column. The extra condition, if any,
// is ANDed onto the guard.
func (s *store) transition(tx *gorm.DB, id string, from model.FundingStatus, updates map[string]interface{}, extra string) (bool, error) {
	to, _ := updates["status"].(model.FundingStatus)
	if !from.CanTransitionTo(to) {
		return false, nil
	}

	query := tx.Model(&model.FundingRecord{}).Where("id = ? AND status = ?", id, from)
	if extra != "" {
		query = query.Where(extra)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
