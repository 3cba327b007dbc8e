package rewardqueueentry

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, entry *model.RewardQueueEntry) (bool, error) {
	if entry.Status == "" {
		entry.Status = model.RewardQueueStatusPending
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "funding_record_id"}},
		DoNothing: true,
	}).Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *store) GetByID(tx *gorm.DB, id int64) (*model.RewardQueueEntry, error) {
	var entry model.RewardQueueEntry
	err := tx.Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *store) GetByFundingRecordID(tx *gorm.DB, fundingRecordID string) (*model.RewardQueueEntry, error) {
	var entry model.RewardQueueEntry
	err := tx.Where("funding_record_id = ?", fundingRecordID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *store) GetNextPending(tx *gorm.DB) (*model.RewardQueueEntry, error) {
	var entry model.RewardQueueEntry
	err := tx.Where("status = ?", model.RewardQueueStatusPending).
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *store) Claim(tx *gorm.DB, id int64) (bool, error) {
	return s.guardedUpdate(tx, id, model.RewardQueueStatusPending, map[string]interface{}{
		"status":     model.RewardQueueStatusProcessing,
		"updated_at": time.Now(),
	})
}

func (s *store) RecordSubmission(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal) (bool, error) {
	return s.guardedUpdate(tx, id, model.RewardQueueStatusProcessing, map[string]interface{}{
		"reward_tx_hash": rewardTxHash,
		"reward_amount":  decimal.NewNullDecimal(rewardAmount),
		"updated_at":     time.Now(),
	})
}

func (s *store) Park(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal, errorMessage string) (bool, error) {
	return s.guardedUpdate(tx, id, model.RewardQueueStatusProcessing, map[string]interface{}{
		"status":         model.RewardQueueStatusSubmitted,
		"reward_tx_hash": rewardTxHash,
		"reward_amount":  decimal.NewNullDecimal(rewardAmount),
		"error_message":  errorMessage,
		"updated_at":     time.Now(),
	})
}

func (s *store) ListSubmitted(tx *gorm.DB, limit int) ([]*model.RewardQueueEntry, error) {
	var entries []*model.RewardQueueEntry
	query := tx.Where("status = ?", model.RewardQueueStatusSubmitted).
		Order("updated_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (s *store) ClaimSubmitted(tx *gorm.DB, id int64) (bool, error) {
	return s.guardedUpdate(tx, id, model.RewardQueueStatusSubmitted, map[string]interface{}{
		"status":     model.RewardQueueStatusProcessing,
		"updated_at": time.Now(),
	})
}

func (s *store) Complete(tx *gorm.DB, id int64, rewardTxHash string, rewardAmount decimal.Decimal) (bool, error) {
	now := time.Now()
	return s.guardedUpdate(tx, id, model.RewardQueueStatusProcessing, map[string]interface{}{
		"status":         model.RewardQueueStatusCompleted,
		"reward_tx_hash": rewardTxHash,
		"reward_amount":  decimal.NewNullDecimal(rewardAmount),
		"error_message":  nil,
		"completed_at":   now,
		"updated_at":     now,
	})
}

func (s *store) Fail(tx *gorm.DB, id int64, errorMessage string, retryCount int) (bool, error) {
	return s.guardedUpdate(tx, id, model.RewardQueueStatusProcessing, map[string]interface{}{
		"status":         model.RewardQueueStatusFailed,
		"error_message":  errorMessage,
		"retry_count":    retryCount,
		"reward_tx_hash": nil,
		"reward_amount":  nil,
		"updated_at":     time.Now(),
	})
}

func (s *store) ListFailedUnderRetries(tx *gorm.DB, maxRetries int) ([]*model.RewardQueueEntry, error) {
	var entries []*model.RewardQueueEntry
	err := tx.Where("status = ? AND retry_count < ?", model.RewardQueueStatusFailed, maxRetries).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (s *store) Requeue(tx *gorm.DB, id int64, maxRetries int) (bool, error) {
	result := tx.Model(&model.RewardQueueEntry{}).
		Where("id = ? AND status = ? AND retry_count < ?", id, model.RewardQueueStatusFailed, maxRetries).
		Updates(map[string]interface{}{
			"status":        model.RewardQueueStatusPending,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": nil,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *store) DeleteExhausted(tx *gorm.DB, maxRetries int, cutoff time.Time) (int64, error) {
	result := tx.Where("status = ? AND retry_count >= ? AND updated_at < ?", model.RewardQueueStatusFailed, maxRetries, cutoff).
		Delete(&model.RewardQueueEntry{})
	return result.RowsAffected, result.Error
}

func (s *store) Stats(tx *gorm.DB) (*model.RewardQueueStats, error) {
	var rows []struct {
		Status model.RewardQueueStatus
		Count  int64
	}
	err := tx.Model(&model.RewardQueueEntry{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.RewardQueueStats{}
	for _, r := range rows {
		switch r.Status {
		case model.RewardQueueStatusPending:
			stats.Pending = r.Count
		case model.RewardQueueStatusProcessing:
			stats.Processing = r.Count
		case model.RewardQueueStatusSubmitted:
			stats.Submitted = r.Count
		case model.RewardQueueStatusCompleted:
			stats.Completed = r.Count
		case model.RewardQueueStatusFailed:
			stats.Failed = r.Count
		}
	}
	return stats, nil
}

func (s *store) guardedUpdate(tx *gorm.DB, id int64, from model.RewardQueueStatus, updates map[string]interface{}) (bool, error) {
	result := tx.Model(&model.RewardQueueEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
