package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return DefaultConfig()
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsZeroCacheSize(t *testing.T) {
	c := validConfig()
	c.Cache.SizeBlocks = 0
	assert.ErrorContains(t, c.Validate(), "size_blocks")
}

func TestValidateRejectsGhostListFractionOutOfRange(t *testing.T) {
	c := validConfig()
	c.Cache.GhostListFraction = 1.5
	assert.ErrorContains(t, c.Validate(), "ghost_list_fraction")
}

func TestValidateRejectsZeroBlockSize(t *testing.T) {
	c := validConfig()
	c.BufferPool.BlockSizeBytes = 0
	assert.ErrorContains(t, c.Validate(), "block_size_bytes")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := validConfig()
	c.Log.Level = "verbose"
	assert.ErrorContains(t, c.Validate(), "log.level")
}

func TestManagerUpdateConfigNotifiesCallbacksWithOldSnapshot(t *testing.T) {
	m := NewManager(validConfig(), "")

	var gotOld, gotNew *Config
	m.OnConfigChange(func(old, new *Config) {
		gotOld, gotNew = old, new
	})

	updated := validConfig()
	updated.Cache.SizeBlocks = 128
	require.NoError(t, m.UpdateConfig(updated))

	require.NotNil(t, gotOld)
	assert.Equal(t, 64*1024, gotOld.Cache.SizeBlocks)
	assert.Equal(t, 128, gotNew.Cache.SizeBlocks)
	assert.Equal(t, 128, m.GetConfig().Cache.SizeBlocks)
}

func TestValidateConfigUpdateRejectsStorageDirChange(t *testing.T) {
	m := NewManager(validConfig(), "")

	updated := validConfig()
	updated.Storage.Dir = "/somewhere/else"

	assert.ErrorContains(t, m.ValidateConfigUpdate(updated), "storage directory")
}

func TestComponentRegistryAppliesCacheUpdateOnChange(t *testing.T) {
	reg := NewComponentRegistry(nil)

	var gotCfg CacheConfig
	calls := 0
	reg.RegisterCache(cacheUpdaterFunc(func(cfg CacheConfig) error {
		calls++
		gotCfg = cfg
		return nil
	}))

	oldCfg := validConfig()
	newCfg := validConfig()
	newCfg.Cache.SizeBlocks = 256

	reg.ApplyUpdates(oldCfg, newCfg)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 256, gotCfg.SizeBlocks)

	reg.ApplyUpdates(newCfg, newCfg)
	assert.Equal(t, 1, calls) // unchanged cache config: no redundant call
}

type cacheUpdaterFunc func(CacheConfig) error

func (f cacheUpdaterFunc) UpdateCacheSettings(cfg CacheConfig) error { return f(cfg) }
