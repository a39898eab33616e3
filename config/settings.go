package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dcshock/stageflow/logger"
)

// EnvPrefix prefixes every environment variable read by LoadSettings, e.g.
// STAGEFLOW_LOG_LEVEL or STAGEFLOW_STORE_ADDR.
const EnvPrefix = "STAGEFLOW"

// Settings is the process configuration of the stageflow binary.
type Settings struct {
	Log           logger.Config   `mapstructure:"log"`
	PipelinesFile string          `mapstructure:"pipelines_file"`
	Store         StoreSettings   `mapstructure:"store"`
	Metrics       MetricsSettings `mapstructure:"metrics"`
}

// StoreSettings selects where run results are committed.
type StoreSettings struct {
	Kind   string        `mapstructure:"kind" validate:"oneof=memory redis"`
	Addr   string        `mapstructure:"addr" validate:"required_if=Kind redis"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// MetricsSettings configures the Prometheus observer.
type MetricsSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
}

var settingsDefaults = map[string]any{
	"log.level":         "info",
	"log.format":        "console",
	"log.output":        "stderr",
	"log.timestamp":     true,
	"log.no_color":      false,
	"log.caller":        false,
	"pipelines_file":    "",
	"store.kind":        "memory",
	"store.addr":        "",
	"store.prefix":      "stageflow",
	"store.ttl":         "0s",
	"metrics.enabled":   false,
	"metrics.namespace": "stageflow",
}

// SettingsOption configures LoadSettings.
type SettingsOption func(*settingsLoader)

type settingsLoader struct {
	file    string
	envFile string
}

// WithSettingsFile reads a YAML settings file before the environment is applied.
func WithSettingsFile(path string) SettingsOption {
	return func(l *settingsLoader) { l.file = path }
}

// WithEnvFile loads a .env file into the environment. Variables already set win.
func WithEnvFile(path string) SettingsOption {
	return func(l *settingsLoader) { l.envFile = path }
}

// LoadSettings merges defaults, an optional settings file and STAGEFLOW_* environment
// variables, then validates the result.
func LoadSettings(opts ...SettingsOption) (*Settings, error) {
	var l settingsLoader
	for _, o := range opts {
		o(&l)
	}

	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	v := viper.New()
	for k, val := range settingsDefaults {
		v.SetDefault(k, val)
	}
	if l.file != "" {
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings file %s: %w", l.file, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and the logging section.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.Log.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
