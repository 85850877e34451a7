package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// Settings are the tool-wide options: where runs are stored and how
// chatty the logs are. They come from an optional mdsim.{yaml,toml,json}
// file, MDSIM_* environment variables and bound CLI flags, in increasing
// priority.
type Settings struct {
	Store    string `mapstructure:"store"`
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
	Workers  int    `mapstructure:"workers"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("store", "file")
	v.SetDefault("path", "runs")
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 0)
}

// NewViper returns a viper instance reading MDSIM_* variables and, when
// found, an mdsim config file from the given directories.
func NewViper(dirs ...string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("MDSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigName("mdsim")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	return v
}

// LoadSettings reads the config file if there is one and decodes the
// merged settings.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	switch s.Store {
	case "file", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("%w: unknown store %q", dynamo.ErrConfiguration, s.Store)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%w: unknown log level %q", dynamo.ErrConfiguration, s.LogLevel)
	}
	return &s, nil
}
