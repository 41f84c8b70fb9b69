// Package config loads engine configuration from a YAML file overlaid with
// environment variables, the same two-step load blinklabs-io-shai uses for
// its node config.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Pool    PoolConfig    `yaml:"pool"`
	Auction AuctionConfig `yaml:"auction"`
	Storage StorageConfig `yaml:"storage"`
}

type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

// PoolConfig holds the bounds new pools are validated against.
type PoolConfig struct {
	MinFeeBps uint32 `yaml:"minFeeBps" envconfig:"POOL_MIN_FEE_BPS"`
	MaxFeeBps uint32 `yaml:"maxFeeBps" envconfig:"POOL_MAX_FEE_BPS"`
}

// AuctionConfig holds the batch auction's price-discovery knobs.
type AuctionConfig struct {
	MaxIterations   int    `yaml:"maxIterations" envconfig:"AUCTION_MAX_ITERATIONS"`
	Tolerance       string `yaml:"tolerance" envconfig:"AUCTION_TOLERANCE"`
	BatchDurationMs int64  `yaml:"batchDurationMs" envconfig:"AUCTION_BATCH_DURATION_MS"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn" envconfig:"STORAGE_DSN"`
}

// Singleton config instance with default values, overlaid by Load.
var globalConfig = &Config{
	Logging: LoggingConfig{
		Level: "info",
	},
	Pool: PoolConfig{
		MinFeeBps: 1,
		MaxFeeBps: 1_000_000,
	},
	Auction: AuctionConfig{
		MaxIterations:   3,
		Tolerance:       "0.000000001",
		BatchDurationMs: 5000,
	},
	Storage: StorageConfig{
		DSN: "clmm.db",
	},
}

// Load reads configFile as YAML (if non-empty) into the global config, then
// overlays any matching environment variables, the same order
// blinklabs-io-shai's Load applies its two sources in.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("dummy", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if level, err := logrus.ParseLevel(globalConfig.Logging.Level); err == nil {
		logrus.SetLevel(level)
	}
	return globalConfig, nil
}

// GetConfig returns the global config instance.
func GetConfig() *Config {
	return globalConfig
}
