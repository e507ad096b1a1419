package config

import "log/slog"

// CacheUpdater is implemented by the running blockcache.Cache (via a thin
// adapter in cmd/blockcached) so a config reload can push new settings into
// it without a restart (spec.md §6).
type CacheUpdater interface {
	UpdateCacheSettings(cfg CacheConfig) error
}

// LoggingUpdater defines the interface for components that can update
// logging levels at runtime.
type LoggingUpdater interface {
	UpdateDebugMode(debug bool) error
}

// ComponentRegistry holds references to updatable components and applies a
// config diff to whichever of them actually changed, the same dispatch
// shape as the teacher's ComponentRegistry.
type ComponentRegistry struct {
	Cache   CacheUpdater
	Logging LoggingUpdater
	logger  *slog.Logger
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComponentRegistry{logger: logger}
}

// RegisterCache registers the cache settings updater.
func (r *ComponentRegistry) RegisterCache(updater CacheUpdater) {
	r.Cache = updater
}

// RegisterLogging registers a logging updater.
func (r *ComponentRegistry) RegisterLogging(updater LoggingUpdater) {
	r.Logging = updater
}

// ApplyUpdates applies configuration updates to all registered components.
// It is meant to be passed directly to Manager.OnConfigChange.
func (r *ComponentRegistry) ApplyUpdates(oldConfig, newConfig *Config) {
	if oldConfig.Debug != newConfig.Debug && r.Logging != nil {
		if err := r.Logging.UpdateDebugMode(newConfig.Debug); err != nil {
			r.logger.Error("failed to update debug mode", "err", err)
		} else {
			r.logger.Info("debug mode updated", "debug", newConfig.Debug)
		}
	}

	if oldConfig.Cache != newConfig.Cache && r.Cache != nil {
		if err := r.Cache.UpdateCacheSettings(newConfig.Cache); err != nil {
			r.logger.Error("failed to update cache settings", "err", err)
		} else {
			r.logger.Info("cache settings updated",
				"size_blocks", newConfig.Cache.SizeBlocks,
				"ghost_list_fraction", newConfig.Cache.GhostListFraction)
		}
	}
}
