package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/javi11/altmount/internal/blockcache"
	"github.com/javi11/altmount/internal/bufferpool"
	"github.com/javi11/altmount/internal/config"
	"github.com/javi11/altmount/internal/jobqueue"
	"github.com/javi11/altmount/internal/slogutil"
	"github.com/javi11/altmount/internal/storage"
	"github.com/spf13/cobra"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the block cache daemon",
		Long:  `Run the block cache daemon, serving read/write jobs against a storage backend through an in-memory ARC block cache.`,
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

// cacheSettingsAdapter lets config.ComponentRegistry push a hot-reloaded
// config.CacheConfig into the running blockcache.Cache.
type cacheSettingsAdapter struct {
	cache *blockcache.Cache
}

func (a *cacheSettingsAdapter) UpdateCacheSettings(cfg config.CacheConfig) error {
	a.cache.SetSettings(blockcache.Settings{
		CacheSize:             cfg.SizeBlocks,
		CacheExpiry:           time.Duration(cfg.ExpirySeconds) * time.Second,
		ReadCacheLineSize:     cfg.ReadCacheLineSize,
		VolatileReadCacheSize: cfg.VolatileReadCacheSize,
		GhostListFraction:     cfg.GhostListFraction,
	})
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting block cache daemon",
		"cache_size_blocks", cfg.GetCacheSizeBlocks(),
		"block_size_bytes", cfg.GetBlockSizeBytes(),
		"max_workers", cfg.GetMaxWorkers())

	configManager := config.NewManager(cfg, configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager := storage.NewManager(ctx, logger)
	backend, err := storage.OpenBadgerBackend("primary", cfg.Storage.Dir, cfg.Storage.PageSizeBytes)
	if err != nil {
		logger.Error("failed to open storage backend", "err", err)
		return err
	}
	if err := storageManager.SetBackend(backend); err != nil {
		logger.Error("failed to install storage backend", "err", err)
		return err
	}
	defer func() {
		_ = storageManager.ClearBackend()
	}()

	pool := bufferpool.New(cfg.GetBlockSizeBytes(), cfg.GetBufferPoolCapacity(), logger)

	settings := blockcache.Settings{
		CacheSize:             cfg.GetCacheSizeBlocks(),
		CacheExpiry:           cfg.GetCacheExpiry(),
		ReadCacheLineSize:     cfg.GetReadCacheLineSize(),
		VolatileReadCacheSize: cfg.Cache.VolatileReadCacheSize,
		GhostListFraction:     cfg.GetGhostListFraction(),
	}

	var cache *blockcache.Cache
	cache = blockcache.New(settings, pool, func() {
		logger.Debug("trim trigger fired")
		cache.TryEvictBlocks(cfg.GetReadCacheLineSize(), nil)
	})
	cache.SetDebug(cfg.Debug)

	pool.SetEvictFunc(func() bool {
		return cache.TryEvictBlocks(1, nil) == 0
	})

	dispatcher := jobqueue.NewDispatcher(cfg.GetMaxWorkers(), logger)

	registry := config.NewComponentRegistry(logger)
	registry.RegisterCache(&cacheSettingsAdapter{cache: cache})
	registry.RegisterLogging(config.NewLoggingUpdater(cfg.Debug))
	configManager.OnConfigChange(registry.ApplyUpdates)

	logger.Info("block cache daemon ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down block cache daemon")
	dispatcher.Wait()

	var pending []*jobqueue.Job
	cache.Clear(&pending)
	for _, job := range pending {
		job.Complete(jobqueue.Result{Err: context.Canceled})
	}

	return nil
}
