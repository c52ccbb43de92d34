// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the application configuration from files,
// environment variables and command-line flags, in that precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	DBType string `mapstructure:"db_type" yaml:"db_type"`
	DBDSN  string `mapstructure:"db_dsn" yaml:"db_dsn"`

	// ArtifactDir is where restored binary artifacts are materialized and
	// where the validator recomputes checksums from.
	ArtifactDir string `mapstructure:"artifact_dir" yaml:"artifact_dir"`

	SourceSystem string `mapstructure:"source_system" yaml:"source_system"`

	Restore RestoreConfig `mapstructure:"restore" yaml:"restore"`

	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// RestoreConfig carries the restore policy knobs.
type RestoreConfig struct {
	// NormalThreshold is the fraction of key-matched preserved entities
	// with identical ids required to classify a destination as normal.
	NormalThreshold float64 `mapstructure:"normal_threshold" yaml:"normal_threshold"`
	// CreateMissingUsers permits placeholder users for referenced
	// usernames absent on both sides. Off by default: privileged accounts
	// must never be fabricated, so user creation stays opt-in.
	CreateMissingUsers bool `mapstructure:"create_missing_users" yaml:"create_missing_users"`
	// CreateMissingPreserved permits creating seed entities (roles,
	// workflow states, document types) missing from the destination.
	CreateMissingPreserved bool `mapstructure:"create_missing_preserved" yaml:"create_missing_preserved"`
	CommitPerTier          bool `mapstructure:"commit_per_tier" yaml:"commit_per_tier"`
	// TimeoutSeconds bounds a run; zero disables the limit.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SkipValidation bool `mapstructure:"skip_validation" yaml:"skip_validation"`
}

// Defaults are the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"db_type":                          "sqlite",
		"db_dsn":                           "edms.db",
		"artifact_dir":                     "artifacts",
		"source_system":                    "edms",
		"restore.normal_threshold":         1.0,
		"restore.create_missing_users":     false,
		"restore.create_missing_preserved": true,
		"restore.commit_per_tier":          false,
		"restore.timeout_seconds":          0,
		"restore.skip_validation":          false,
		"debug":                            false,
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "EDMS")
		default:
			configDir = "/etc/edms"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "edms")
	}

	return filepath.Join(configDir, "edms.yaml"), nil
}

// LoadConfig resolves the configuration for one command invocation.
// Precedence, lowest to highest: defaults, config file, environment
// (EDMS_ prefix), command-line flags.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFilePath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("edms")
	v.SetConfigType("yaml")

	// An explicit --config path has the highest file precedence.
	if configFilePath != nil && *configFilePath != "" {
		v.SetConfigFile(*configFilePath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("edms")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteConfigFile persists a configuration as YAML at the standard path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600 since the DSN may carry credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}
