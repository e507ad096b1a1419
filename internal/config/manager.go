// Package config provides the block cache daemon's configuration surface:
// a YAML-backed, hot-reloadable Config loaded and persisted through viper,
// following the same Manager/ChangeCallback shape the teacher uses for its
// own application config (internal/config in the altmount codebase this
// package is adapted from).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	BufferPool BufferPoolConfig `yaml:"buffer_pool" mapstructure:"buffer_pool"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	JobQueue   JobQueueConfig   `yaml:"job_queue" mapstructure:"job_queue"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Debug      bool             `yaml:"debug" mapstructure:"debug"`
}

// CacheConfig mirrors blockcache.Settings, expressed in config-file-native
// types (expiry as whole seconds rather than a time.Duration).
type CacheConfig struct {
	SizeBlocks            int     `yaml:"size_blocks" mapstructure:"size_blocks"`
	ExpirySeconds          int     `yaml:"expiry_seconds" mapstructure:"expiry_seconds"`
	ReadCacheLineSize     int     `yaml:"read_cache_line_size" mapstructure:"read_cache_line_size"`
	VolatileReadCacheSize int     `yaml:"volatile_read_cache_size" mapstructure:"volatile_read_cache_size"`
	GhostListFraction     float64 `yaml:"ghost_list_fraction" mapstructure:"ghost_list_fraction"`
}

// BufferPoolConfig sizes the block buffer allocator.
type BufferPoolConfig struct {
	BlockSizeBytes int `yaml:"block_size_bytes" mapstructure:"block_size_bytes"`
	CapacityBlocks int `yaml:"capacity_blocks" mapstructure:"capacity_blocks"`
}

// StorageConfig configures the demo/test badger-backed storage backend.
type StorageConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	PageSizeBytes int64  `yaml:"page_size_bytes" mapstructure:"page_size_bytes"`
}

// JobQueueConfig bounds the storage-I/O dispatcher's concurrency.
type JobQueueConfig struct {
	MaxWorkers int `yaml:"max_workers" mapstructure:"max_workers"`
}

// LogConfig represents logging configuration with rotation support.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// DeepCopy returns a deep copy of the configuration. Config currently holds
// no pointer or slice fields, so a value copy already suffices, but the
// method is kept as the stable boundary Manager.UpdateConfig calls, the way
// the teacher's config package does.
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}
	copyCfg := *c
	return &copyCfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Cache.SizeBlocks <= 0 {
		return fmt.Errorf("cache size_blocks must be greater than 0")
	}
	if c.Cache.ReadCacheLineSize <= 0 {
		return fmt.Errorf("cache read_cache_line_size must be greater than 0")
	}
	if c.Cache.VolatileReadCacheSize < 0 {
		return fmt.Errorf("cache volatile_read_cache_size must be non-negative")
	}
	if c.Cache.GhostListFraction < 0 || c.Cache.GhostListFraction > 1 {
		return fmt.Errorf("cache ghost_list_fraction must be between 0 and 1")
	}

	if c.BufferPool.BlockSizeBytes <= 0 {
		return fmt.Errorf("buffer_pool block_size_bytes must be greater than 0")
	}
	if c.BufferPool.CapacityBlocks <= 0 {
		return fmt.Errorf("buffer_pool capacity_blocks must be greater than 0")
	}

	if c.Storage.PageSizeBytes <= 0 {
		return fmt.Errorf("storage page_size_bytes must be greater than 0")
	}

	if c.JobQueue.MaxWorkers <= 0 {
		return fmt.Errorf("job_queue max_workers must be greater than 0")
	}

	if c.Log.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		isValid := false
		for _, level := range validLevels {
			if c.Log.Level == level {
				isValid = true
				break
			}
		}
		if !isValid {
			return fmt.Errorf("log.level must be one of: debug, info, warn, error")
		}
	}
	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}
	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// ChangeCallback is called when configuration changes.
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter returns the current configuration.
type ConfigGetter func() *Config

// Manager manages configuration state and persistence (thread-safe).
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager.
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// GetConfigGetter returns a function that provides the current configuration.
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig replaces the current configuration and notifies callbacks
// with an immutable snapshot of the previous one.
func (m *Manager) UpdateConfig(config *Config) error {
	m.mutex.Lock()
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback invoked whenever the configuration
// changes (spec.md §6's "hot-reloadable cache settings").
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ValidateConfig validates config using its own Validate method.
func (m *Manager) ValidateConfig(config *Config) error {
	return config.Validate()
}

// ValidateConfigUpdate validates a proposed config update against fields
// that may not change after startup.
func (m *Manager) ValidateConfigUpdate(newConfig *Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	m.mutex.RLock()
	currentConfig := m.current
	m.mutex.RUnlock()

	if currentConfig != nil && newConfig.Storage.Dir != currentConfig.Storage.Dir {
		return fmt.Errorf("storage directory cannot be changed via API - requires restart")
	}
	if currentConfig != nil && newConfig.BufferPool.BlockSizeBytes != currentConfig.BufferPool.BlockSizeBytes {
		return fmt.Errorf("buffer_pool block_size_bytes cannot be changed without a restart")
	}

	return nil
}

// ReloadConfig reloads configuration from file.
func (m *Manager) ReloadConfig() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	viper.SetConfigFile(m.configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", m.configFile, err)
	}

	config := DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.current = config
	return nil
}

// SaveConfig saves the current configuration to file.
func (m *Manager) SaveConfig() error {
	m.mutex.RLock()
	config := m.current
	m.mutex.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}
	return SaveToFile(config, m.configFile)
}

// DefaultConfig returns a config with default values, matching
// blockcache.DefaultSettings where the two overlap.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			SizeBlocks:            64 * 1024,
			ExpirySeconds:         60,
			ReadCacheLineSize:     32,
			VolatileReadCacheSize: 1024,
			GhostListFraction:     0.5,
		},
		BufferPool: BufferPoolConfig{
			BlockSizeBytes: 16 * 1024,
			CapacityBlocks: 64 * 1024,
		},
		Storage: StorageConfig{
			Dir:           "./blockcache-data",
			PageSizeBytes: 16 * 1024,
		},
		JobQueue: JobQueueConfig{
			MaxWorkers: 8,
		},
		Log: LogConfig{
			File:       "",
			Level:      "info",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
		Debug: false,
	}
}

// CacheExpiry returns Cache.ExpirySeconds as a time.Duration.
func (c *Config) CacheExpiry() time.Duration {
	return time.Duration(c.Cache.ExpirySeconds) * time.Second
}

// SaveToFile saves a configuration to a YAML file.
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and merges with defaults.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil, fmt.Errorf("no configuration file found. Please create config.yaml or use --config flag")
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// GetConfigFilePath returns the configuration file path used by viper.
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}
