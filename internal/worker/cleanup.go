package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/addresspool"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const (
	defaultLogRetention    = 30 * 24 * time.Hour
	defaultQueueRetention  = 7 * 24 * time.Hour
	defaultAddressCooldown = time.Hour
)

type CleanupResult struct {
	ExpiredFundings    int                 `json:"expired_fundings"`
	DeletedLogs        int64               `json:"deleted_logs"`
	ReleasedAddresses  int64               `json:"released_addresses"`
	PrunedQueueEntries int64               `json:"pruned_queue_entries"`
	GeneratedAddresses map[model.Chain]int `json:"generated_addresses"`
}

// CleanupWorker reclaims expired state. Every step runs even when an earlier one failed.
type CleanupWorker struct {
	db        *gorm.DB
	store     *store.Store
	pool      addresspool.IAddressPool
	queue     rewardqueue.IRewardQueue
	adapters  *chainadapter.Registry
	appConfig *config.AppConfig
	logger    *logger.Logger
	metrics   *monitoring.PipelineMetrics

	now func() time.Time
}

func NewCleanupWorker(
	db *gorm.DB,
	store *store.Store,
	pool addresspool.IAddressPool,
	queue rewardqueue.IRewardQueue,
	adapters *chainadapter.Registry,
	appConfig *config.AppConfig,
	logger *logger.Logger,
	metrics *monitoring.PipelineMetrics,
) *CleanupWorker {
	return &CleanupWorker{
		db:        db,
		store:     store,
		pool:      pool,
		queue:     queue,
		adapters:  adapters,
		appConfig: appConfig,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (c *CleanupWorker) RunCycle(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{GeneratedAddresses: map[model.Chain]int{}}
	var errs error

	expired, err := c.ExpireFundings(ctx)
	result.ExpiredFundings = expired
	errs = multierr.Append(errs, errors.Wrap(err, "expire fundings"))

	deleted, err := c.store.ActionLog.DeleteOlderThan(c.db.WithContext(ctx), c.now().Add(-orDefault(c.appConfig.Cleanup.LogRetention, defaultLogRetention)))
	result.DeletedLogs = deleted
	errs = multierr.Append(errs, errors.Wrap(err, "delete action logs"))

	released, err := c.pool.ReleaseExpired(ctx, orDefault(c.appConfig.Cleanup.AddressCooldown, defaultAddressCooldown))
	result.ReleasedAddresses = released
	c.metrics.AddressesReleased(released)
	errs = multierr.Append(errs, errors.Wrap(err, "release addresses"))

	pruned, err := c.queue.PruneExhausted(ctx, maxRewardRetries(c.appConfig), orDefault(c.appConfig.Cleanup.QueueRetention, defaultQueueRetention))
	result.PrunedQueueEntries = pruned
	errs = multierr.Append(errs, errors.Wrap(err, "prune reward queue"))

	errs = multierr.Append(errs, c.topUpPools(ctx, result))

	fields := map[string]string{
		"expired_fundings":     fmt.Sprint(result.ExpiredFundings),
		"deleted_logs":         fmt.Sprint(result.DeletedLogs),
		"released_addresses":   fmt.Sprint(result.ReleasedAddresses),
		"pruned_queue_entries": fmt.Sprint(result.PrunedQueueEntries),
	}
	if errs != nil {
		fields["error"] = errs.Error()
		c.logger.Error("[CleanupWorker] cleanup cycle finished with errors", fields)
		return result, errs
	}
	c.logger.Info("[CleanupWorker] cleanup cycle done", fields)
	return result, nil
}

// ExpireFundings moves pending records past expires_at to expired and logs each of them.
func (c *CleanupWorker) ExpireFundings(ctx context.Context) (int, error) {
	now := c.now()

	var ids []string
	err := store.DoInTx(c.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		ids, err = c.store.FundingRecord.ExpirePending(tx, now)
		if err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"expired_at": now.UTC().Format(time.RFC3339),
		})
		for _, id := range ids {
			if _, err := c.store.ActionLog.Create(tx, &model.ActionLog{
				FundingRecordID: id,
				Action:          model.ActionFundingExpired,
				Message:         "deposit window expired without a confirmed deposit",
				Metadata:        string(metadata),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.metrics.FundingsExpired(len(ids))
	return len(ids), nil
}

// WarmUpPools tops up every chain's pool without running the rest of the cycle. Used at startup.
func (c *CleanupWorker) WarmUpPools(ctx context.Context) (map[model.Chain]int, error) {
	result := &CleanupResult{GeneratedAddresses: map[model.Chain]int{}}
	err := c.topUpPools(ctx, result)
	return result.GeneratedAddresses, err
}

func (c *CleanupWorker) topUpPools(ctx context.Context, result *CleanupResult) error {
	minSize := c.appConfig.Cleanup.PoolMinSize
	target := c.appConfig.Cleanup.PoolTargetSize
	if minSize <= 0 || c.adapters == nil {
		return nil
	}
	if target < minSize {
		target = minSize
	}

	var errs error
	for _, chain := range c.adapters.Chains() {
		unused, err := c.pool.CountUnused(ctx, chain)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "count unused %s addresses", chain))
			continue
		}
		if unused >= int64(minSize) {
			continue
		}

		stored, err := c.pool.PreGenerateAddresses(ctx, chain, target-int(unused))
		result.GeneratedAddresses[chain] = stored
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "top up %s pool", chain))
		}
	}
	return errs
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
