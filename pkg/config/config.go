// Package config loads yasbit's node configuration from an optional config
// file, environment variables, and built-in network defaults.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"yasbit/pkg/utils"
)

// Config is the unified configuration for a yasbit node.
type Config struct {
	Network struct {
		Name         string   `mapstructure:"name" json:"name"`
		Magic        uint32   `mapstructure:"magic" json:"magic"`
		Port         int      `mapstructure:"port" json:"port"`
		DNSSeeds     []string `mapstructure:"dns_seeds" json:"dns_seeds"`
		PeersNumber  int      `mapstructure:"peers_number" json:"peers_number"`
		ListenAddr   string   `mapstructure:"listen_addr" json:"listen_addr"`
		EnableNATMap bool     `mapstructure:"enable_nat_map" json:"enable_nat_map"`
	} `mapstructure:"network" json:"network"`

	Sync struct {
		MaxDownloadingBlocks int `mapstructure:"max_downloading_blocks" json:"max_downloading_blocks"`
		MaxHeaders           int `mapstructure:"max_headers" json:"max_headers"`
		ValidatorTimeoutSec  int `mapstructure:"validator_timeout_sec" json:"validator_timeout_sec"`
		DownloadQueueCap     int `mapstructure:"download_queue_cap" json:"download_queue_cap"`
	} `mapstructure:"sync" json:"sync"`

	Storage struct {
		DataDir string `mapstructure:"data_dir" json:"data_dir"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// setDefaults seeds viper with the built-in mainnet defaults so the CLI
// never requires a config file or flags to run.
func setDefaults() {
	viper.SetDefault("network.name", "main")
	viper.SetDefault("network.magic", uint32(0xD9B4BEF9))
	viper.SetDefault("network.port", 8333)
	viper.SetDefault("network.dns_seeds", []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
		"seed.bitcoinstats.com",
		"seed.bitcoin.jonasschnelli.ch",
	})
	viper.SetDefault("network.peers_number", 8)
	viper.SetDefault("network.listen_addr", "")
	viper.SetDefault("network.enable_nat_map", false)

	viper.SetDefault("sync.max_downloading_blocks", 16)
	viper.SetDefault("sync.max_headers", 2000)
	viper.SetDefault("sync.validator_timeout_sec", 2)
	viper.SetDefault("sync.download_queue_cap", 50000)

	viper.SetDefault("storage.data_dir", "./data")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads an optional config file (default.yaml, optionally merged with
// an env-specific file) layered over built-in defaults, then applies
// environment variable overrides. A missing config file is not an error:
// the CLI runs with zero required flags or files.
func Load(env string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	viper.SetEnvPrefix("YASBIT")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the YASBIT_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("YASBIT_ENV", ""))
}

// YAML renders the resolved configuration back out as YAML, so an operator
// can inspect exactly what defaults, file, and environment overrides
// resolved to without re-reading each layer separately.
func (c *Config) YAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, utils.Wrap(err, "marshal config")
	}
	return b, nil
}
