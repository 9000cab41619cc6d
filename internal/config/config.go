// This file defines the application-level configuration loaded from
// config.yml. User-facing reader state (active provider, title, chapter)
// lives in the settings database instead.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Cache struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"cache"`
	Logos struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"logos"`
	Plugins struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"plugins"`
	Fetch struct {
		Concurrency    int `mapstructure:"concurrency"`
		Retries        int `mapstructure:"retries"`
		ConnectTimeout int `mapstructure:"connect_timeout"` // seconds
		ReadTimeout    int `mapstructure:"read_timeout"`    // seconds
	} `mapstructure:"fetch"`
	LivenessInterval int `mapstructure:"liveness_interval"` // minutes, 0 disables
}

// Load reads configuration from a file named "config.yml" in the current
// directory and unmarshals it into a Config struct. Environment variables
// with a "COMICDEN_" prefix override file values, e.g. COMICDEN_CACHE_PATH.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("COMICDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("port", 8317)
	viper.SetDefault("database.path", "./comicden.db")
	viper.SetDefault("cache.path", "./cache")
	viper.SetDefault("logos.path", "./logos")
	viper.SetDefault("plugins.path", "./plugins")
	viper.SetDefault("fetch.concurrency", 5)
	viper.SetDefault("fetch.retries", 5)
	viper.SetDefault("fetch.connect_timeout", 10)
	viper.SetDefault("fetch.read_timeout", 30)
	viper.SetDefault("liveness_interval", 30)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
		} else {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
