// Package config loads runtime settings from a YAML file and the
// CITEMARK_ environment, in that order of increasing precedence.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime settings of the citemark commands.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// CitatorURL is the base URL of the remote citator service. Empty
	// disables the remote matcher.
	CitatorURL string `mapstructure:"citator_api_url" yaml:"citator_api_url"`

	// CitatorAPIKey authenticates requests to the citator service.
	CitatorAPIKey string `mapstructure:"citator_api_key" yaml:"citator_api_key,omitempty"`

	// FlynoteRootSlug names the taxonomy root that flynote extraction
	// files topics under.
	FlynoteRootSlug string `mapstructure:"flynote_root_slug" yaml:"flynote_root_slug"`

	// PdftotextFallback enables the pdftotext tool when the in-process
	// PDF reader fails on a file.
	PdftotextFallback bool `mapstructure:"pdftotext_fallback" yaml:"pdftotext_fallback"`
}

// SetDefaults registers the default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "citemark.db")
	v.SetDefault("flynote_root_slug", "case-indexes")
	v.SetDefault("pdftotext_fallback", true)
}

// Load reads settings from the given viper instance. When cfgFile is
// non-empty it is read as a YAML file first; environment variables with
// the CITEMARK_ prefix override it.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("CITEMARK")
	v.AutomaticEnv()
	// Keys without defaults must be bound for env-only values to be
	// visible to Unmarshal.
	v.BindEnv("citator_api_url")
	v.BindEnv("citator_api_key")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// CitatorEnabled reports whether the remote citator matcher should run.
func (c *Config) CitatorEnabled() bool {
	return c.CitatorURL != ""
}
