package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KernelConfig holds the configuration of a running kernel instance: where
// its catalog and record-layer files live, how its transaction manager is
// tuned, and how it logs.
type KernelConfig struct {
	Storage  StorageConfig  `yaml:"storage"`
	Txn      TxnConfig      `yaml:"txn"`
	Logging  LogConfig      `yaml:"logging"`
	Operator OperatorConfig `yaml:"operator"`
}

// StorageConfig names the record-layer environment backing the catalog
// and every base table.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir" env:"RELD_DATA_DIR"`
	Backend    string `yaml:"backend" env:"RELD_STORAGE_BACKEND"` // "mem" or "disk"
	Compressor string `yaml:"compressor" env:"RELD_COMPRESSOR"`   // "none", "snappy", "lz4", "zstd"
}

// TxnConfig tunes the transaction manager and lock manager.
type TxnConfig struct {
	LockTimeout          time.Duration `yaml:"lock_timeout" env:"RELD_LOCK_TIMEOUT"`
	DeadlockCheckPeriod  time.Duration `yaml:"deadlock_check_period" env:"RELD_DEADLOCK_CHECK_PERIOD"`
	DefaultIsolation     string        `yaml:"default_isolation" env:"RELD_DEFAULT_ISOLATION"`
	MaxConcurrentReaders int           `yaml:"max_concurrent_readers" env:"RELD_MAX_CONCURRENT_READERS"`
}

// LogConfig controls the kernel's structured logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"RELD_LOG_LEVEL"`
	Format string `yaml:"format" env:"RELD_LOG_FORMAT"` // "json" or "text"
	Output string `yaml:"output" env:"RELD_LOG_OUTPUT"` // "stdout", "stderr", or a file path
}

// OperatorConfig controls dynamic operator loading (spec §4.4's
// OperatorLoader).
type OperatorConfig struct {
	PluginDir    string `yaml:"plugin_dir" env:"RELD_PLUGIN_DIR"`
	AllowPlugins bool   `yaml:"allow_plugins" env:"RELD_ALLOW_PLUGINS"`
}

// DefaultKernelConfig returns the configuration used when no file or
// environment override is present: an in-memory backend with no
// compression, serializable isolation, and text logging to stderr.
func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		Storage: StorageConfig{
			DataDir:    "./data",
			Backend:    "mem",
			Compressor: "none",
		},
		Txn: TxnConfig{
			LockTimeout:          5 * time.Second,
			DeadlockCheckPeriod:  200 * time.Millisecond,
			DefaultIsolation:     "serializable",
			MaxConcurrentReaders: 64,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Operator: OperatorConfig{
			PluginDir:    "./plugins",
			AllowPlugins: false,
		},
	}
}

// Load builds a KernelConfig starting from the defaults, applying path
// (if non-empty) as a YAML overlay, then applying environment variable
// overrides, then validating the result.
func Load(path string) (*KernelConfig, error) {
	cfg := DefaultKernelConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile overlays c with the YAML document at path. A blank path is
// a no-op, matching the optional-file convention of spec §7's ambient
// configuration.
func (c *KernelConfig) LoadFromFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// LoadFromEnv overlays c with any of its RELD_* environment variables
// that are set.
func (c *KernelConfig) LoadFromEnv() error {
	if v := os.Getenv("RELD_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("RELD_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("RELD_COMPRESSOR"); v != "" {
		c.Storage.Compressor = v
	}
	if v := os.Getenv("RELD_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RELD_LOCK_TIMEOUT: %w", err)
		}
		c.Txn.LockTimeout = d
	}
	if v := os.Getenv("RELD_DEADLOCK_CHECK_PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RELD_DEADLOCK_CHECK_PERIOD: %w", err)
		}
		c.Txn.DeadlockCheckPeriod = d
	}
	if v := os.Getenv("RELD_DEFAULT_ISOLATION"); v != "" {
		c.Txn.DefaultIsolation = v
	}
	if v := os.Getenv("RELD_MAX_CONCURRENT_READERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RELD_MAX_CONCURRENT_READERS: %w", err)
		}
		c.Txn.MaxConcurrentReaders = n
	}
	if v := os.Getenv("RELD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RELD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("RELD_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("RELD_PLUGIN_DIR"); v != "" {
		c.Operator.PluginDir = v
	}
	if v := os.Getenv("RELD_ALLOW_PLUGINS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RELD_ALLOW_PLUGINS: %w", err)
		}
		c.Operator.AllowPlugins = b
	}
	return nil
}

var validBackends = map[string]bool{"mem": true, "disk": true}
var validCompressors = map[string]bool{"none": true, "snappy": true, "lz4": true, "zstd": true}
var validIsolations = map[string]bool{"read_committed": true, "repeatable_read": true, "serializable": true}

// Validate checks that c names recognized backends, compressors, and
// isolation levels, that the lock timeout is non-negative, that the
// deadlock check period and reader limit are positive, and that a data
// directory is set.
func (c *KernelConfig) Validate() error {
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if !validCompressors[c.Storage.Compressor] {
		return fmt.Errorf("unknown compressor %q", c.Storage.Compressor)
	}
	if !validIsolations[c.Txn.DefaultIsolation] {
		return fmt.Errorf("unknown isolation level %q", c.Txn.DefaultIsolation)
	}
	if c.Txn.LockTimeout < 0 {
		return fmt.Errorf("txn.lock_timeout must not be negative")
	}
	if c.Txn.DeadlockCheckPeriod <= 0 {
		return fmt.Errorf("txn.deadlock_check_period must be positive")
	}
	if c.Txn.MaxConcurrentReaders <= 0 {
		return fmt.Errorf("txn.max_concurrent_readers must be positive")
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	return nil
}
