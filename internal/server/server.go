package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dwarvesf/icy-funding-backend/internal/addresspool"
	"github.com/dwarvesf/icy-funding-backend/internal/baserpc"
	"github.com/dwarvesf/icy-funding-backend/internal/btcrpc"
	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/chainmonitor"
	"github.com/dwarvesf/icy-funding-backend/internal/consts"
	"github.com/dwarvesf/icy-funding-backend/internal/controller"
	"github.com/dwarvesf/icy-funding-backend/internal/ethrpc"
	"github.com/dwarvesf/icy-funding-backend/internal/handler"
	"github.com/dwarvesf/icy-funding-backend/internal/handler/metrics"
	"github.com/dwarvesf/icy-funding-backend/internal/monitoring"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
	"github.com/dwarvesf/icy-funding-backend/internal/reward"
	"github.com/dwarvesf/icy-funding-backend/internal/rewardqueue"
	"github.com/dwarvesf/icy-funding-backend/internal/solrpc"
	"github.com/dwarvesf/icy-funding-backend/internal/store"
	"github.com/dwarvesf/icy-funding-backend/internal/transport/http"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/keyenc"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/vault"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/webhook"
	"github.com/dwarvesf/icy-funding-backend/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer func() { _ = logger.Sync() }()

	if appConfig.Vault.Addr != "" {
		vc, err := vault.New(appConfig.Vault.Addr, appConfig.Vault.KVSecretPath, appConfig.Vault.Role)
		if err != nil {
			logger.Fatal("[Init][vault.New] failed to log in to vault", map[string]string{
				"error": err.Error(),
			})
		}
		appConfig.LoadSecrets(vc)
	}

	db := openDB(appConfig, logger)
	s := store.New()

	registry := metrics.NewRegistry()
	externalMetrics := monitoring.NewExternalAPIMetrics()
	externalMetrics.MustRegister(registry)
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(registry)
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	jobMetrics.MustRegister(registry)
	pipelineMetrics := monitoring.NewPipelineMetrics()
	pipelineMetrics.MustRegister(registry)

	adapters := newAdapters(appConfig, logger)
	adapters.Wrap(monitoring.WrapAdapters(externalMetrics, logger))

	var cipher *keyenc.Cipher
	if appConfig.Wallet.KeyEncryptionKey != "" {
		c, err := keyenc.New(appConfig.Wallet.KeyEncryptionKey)
		if err != nil {
			logger.Fatal("[Init][keyenc.New] invalid key encryption key", map[string]string{
				"error": err.Error(),
			})
		}
		cipher = c
	}
	pool := addresspool.New(db, s, adapters, cipher, logger)

	baseRPC, err := baserpc.New(appConfig, logger)
	if err != nil {
		logger.Fatal("[Init][baserpc.New] failed to init base rpc", map[string]string{
			"error": err.Error(),
		})
	}
	var treasury baserpc.IBaseRPC = monitoring.NewCircuitBreakerBaseRPC(
		baseRPC, monitoring.CircuitBreakerConfigs["base_rpc"], externalMetrics, logger)

	priceFeed := pricefeed.New(appConfig, logger)
	rewards := reward.New(treasury, priceFeed, appConfig, logger)
	queue := rewardqueue.New(db, s, logger, appConfig.Reward.MaxRetries)
	monitor := chainmonitor.New(db, s, adapters, queue, priceFeed, appConfig, logger, pipelineMetrics)
	processor := worker.NewRewardProcessor(db, s, queue, rewards, appConfig, logger, pipelineMetrics)
	cleanup := worker.NewCleanupWorker(db, s, pool, queue, adapters, appConfig, logger, pipelineMetrics)

	jobStatusManager := monitoring.NewJobStatusManager(logger, jobMetrics)
	manager := worker.NewManager(db, s, jobStatusManager, webhook.New(logger), logger)
	if err := registerJobs(manager, appConfig, monitor, processor, cleanup); err != nil {
		logger.Fatal("[Init][registerJobs] failed to schedule workers", map[string]string{
			"error": err.Error(),
		})
	}

	ctrl := controller.New(db, s, adapters, pool, monitor, queue, rewards, processor, manager, appConfig, logger, pipelineMetrics)
	h := handler.New(appConfig, logger, ctrl, adapters, treasury, db, registry,
		monitoring.NewBusinessMetricsRecorder(httpMetrics), jobStatusManager)

	manager.Go(consts.JOB_CLEANUP, func(ctx context.Context) error {
		generated, err := cleanup.WarmUpPools(ctx)
		logger.Info("[Init][WarmUpPools] address pools warmed up", map[string]string{
			"generated": fmt.Sprint(generated),
		})
		return err
	})
	manager.Start()

	srv := &nethttp.Server{
		Addr:              ":" + appConfig.ApiServer.Port,
		Handler:           http.NewHttpServer(appConfig, logger, h, httpMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("[Init] http server listening", map[string]string{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("[Init][ListenAndServe] http server stopped", map[string]string{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[Init] shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Init][Shutdown] http server", map[string]string{
			"error": err.Error(),
		})
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("[Init][Stop] workers", map[string]string{
			"error": err.Error(),
		})
	}
	jobStatusManager.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newAdapters builds one adapter per deposit chain. A chain whose adapter cannot be built
// is left out, and deposits on it are rejected as unsupported.
func newAdapters(appConfig *config.AppConfig, logger *logger.Logger) *chainadapter.Registry {
	var adapters []chainadapter.IAdapter

	if btc, err := btcrpc.New(appConfig, logger); err != nil {
		logger.Error("[newAdapters][btcrpc.New] BTC disabled", map[string]string{"error": err.Error()})
	} else {
		adapters = append(adapters, btc)
	}
	if eth, err := ethrpc.New(appConfig, logger); err != nil {
		logger.Error("[newAdapters][ethrpc.New] ETH disabled", map[string]string{"error": err.Error()})
	} else {
		adapters = append(adapters, eth)
	}
	if sol, err := solrpc.New(appConfig, logger); err != nil {
		logger.Error("[newAdapters][solrpc.New] SOL disabled", map[string]string{"error": err.Error()})
	} else {
		adapters = append(adapters, sol)
	}

	return chainadapter.NewRegistry(adapters...)
}
