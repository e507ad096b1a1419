package config

import "time"

// Cache config accessor methods with default fallbacks, the same shape the
// teacher uses for its health/import accessors: zero or invalid values in a
// loaded config fall back to a sensible default rather than propagating a
// zero-sized cache.

// GetCacheSizeBlocks returns the cache's block budget with a default fallback.
func (c *Config) GetCacheSizeBlocks() int {
	if c.Cache.SizeBlocks <= 0 {
		return 64 * 1024
	}
	return c.Cache.SizeBlocks
}

// GetCacheExpiry returns the cache expiry duration with a default fallback.
func (c *Config) GetCacheExpiry() time.Duration {
	if c.Cache.ExpirySeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Cache.ExpirySeconds) * time.Second
}

// GetReadCacheLineSize returns the read-ahead window with a default fallback.
func (c *Config) GetReadCacheLineSize() int {
	if c.Cache.ReadCacheLineSize <= 0 {
		return 32
	}
	return c.Cache.ReadCacheLineSize
}

// GetGhostListFraction returns the ghost-list sizing fraction; a value
// outside (0, 1] falls back to the default of 0.5.
func (c *Config) GetGhostListFraction() float64 {
	if c.Cache.GhostListFraction <= 0 || c.Cache.GhostListFraction > 1 {
		return 0.5
	}
	return c.Cache.GhostListFraction
}

// Buffer pool config accessors.

// GetBufferPoolCapacity returns the buffer pool's block capacity with a
// default fallback.
func (c *Config) GetBufferPoolCapacity() int {
	if c.BufferPool.CapacityBlocks <= 0 {
		return c.GetCacheSizeBlocks()
	}
	return c.BufferPool.CapacityBlocks
}

// GetBlockSizeBytes returns the configured block size with a default fallback.
func (c *Config) GetBlockSizeBytes() int {
	if c.BufferPool.BlockSizeBytes <= 0 {
		return 16 * 1024
	}
	return c.BufferPool.BlockSizeBytes
}

// Job queue config accessors.

// GetMaxWorkers returns the dispatcher's worker cap with a default fallback.
func (c *Config) GetMaxWorkers() int {
	if c.JobQueue.MaxWorkers <= 0 {
		return 8
	}
	return c.JobQueue.MaxWorkers
}
