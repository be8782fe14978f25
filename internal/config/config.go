// Package config loads compiler settings from a docquery.yaml file,
// DOCQUERY_* environment variables and command-line flags.
//
// Precedence, highest first: flags explicitly set, environment, config
// file, defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/querydoc"
	"github.com/roach88/docquery/internal/querysql"
)

// EnvPrefix prefixes every environment variable: DOCQUERY_TARGET.
const EnvPrefix = "DOCQUERY"

// Config holds the settings shared by CLI commands.
type Config struct {
	Target       string `mapstructure:"target"`
	Collection   string `mapstructure:"collection"`
	Partition    string `mapstructure:"partition"`
	DataColumn   string `mapstructure:"data_column"`
	JoinStrategy string `mapstructure:"join_strategy"`
	Format       string `mapstructure:"format"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"target":        "target",
	"collection":    "collection",
	"partition":     "partition",
	"data-column":   "data_column",
	"join-strategy": "join_strategy",
	"format":        "format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target", string(condition.TargetRelational))
	v.SetDefault("collection", "")
	v.SetDefault("partition", "")
	v.SetDefault("data_column", querysql.DefaultDataColumn)
	v.SetDefault("join_strategy", string(querysql.JoinStrategySubquery))
	v.SetDefault("format", "text")
}

// Load reads configuration. An empty file looks for docquery.yaml in the
// working directory and ignores its absence; a named file must exist.
// flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("docquery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, ok := condition.ParseTarget(c.Target); !ok {
		return fmt.Errorf("invalid target %q: must be postgres or mongo", c.Target)
	}
	if _, err := querysql.ParseJoinStrategy(c.JoinStrategy); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	return nil
}

// TargetKind returns the parsed target. Call after Validate.
func (c *Config) TargetKind() condition.Target {
	t, _ := condition.ParseTarget(c.Target)
	return t
}

// SQLOptions returns relational compiler options.
func (c *Config) SQLOptions(logger *slog.Logger) querysql.Options {
	strategy, _ := querysql.ParseJoinStrategy(c.JoinStrategy)
	return querysql.Options{DataColumn: c.DataColumn, JoinStrategy: strategy, Logger: logger}
}

// DocOptions returns document compiler options.
func (c *Config) DocOptions(logger *slog.Logger) querydoc.Options {
	return querydoc.Options{Logger: logger}
}
