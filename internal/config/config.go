// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/log"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `pcaplens:` root key in YAML.
type GlobalConfig struct {
	Log      log.LoggerConfig `mapstructure:"log"`
	Analysis AnalysisConfig   `mapstructure:"analysis"`
	Server   ServerConfig     `mapstructure:"server"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
}

// ─── Analysis ───

// AnalysisConfig tunes the one-pass analyzer.
type AnalysisConfig struct {
	ExtendedRules  bool `mapstructure:"extended_rules"`   // append size/ratio heuristics
	ReadBufferSize int  `mapstructure:"read_buffer_size"` // bytes, 0 = reader default
}

// ─── HTTP API ───

// ServerConfig configures the `serve` command.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Listen  string `mapstructure:"listen"` // empty = served on the API listener
}

var validLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Pattern == "" {
		cfg.Log.Pattern = log.DefaultPattern
	}
	if cfg.Log.Time == "" {
		cfg.Log.Time = log.DefaultTimeLayout
	}
	for i, a := range cfg.Log.Appenders {
		switch strings.ToLower(a.Type) {
		case log.AppenderConsole, log.AppenderFile:
		default:
			return fmt.Errorf("%w: log.appenders[%d].type %q (must be console/file)", core.ErrConfigInvalid, i, a.Type)
		}
	}

	// ── Analysis ──
	if cfg.Analysis.ReadBufferSize < 0 {
		return fmt.Errorf("%w: analysis.read_buffer_size must not be negative", core.ErrConfigInvalid)
	}

	// ── Server ──
	if cfg.Server.Listen == "" {
		return fmt.Errorf("%w: server.listen is required", core.ErrConfigInvalid)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: server.max_upload_bytes must be positive", core.ErrConfigInvalid)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics.path %q must start with /", core.ErrConfigInvalid, cfg.Metrics.Path)
	}

	return nil
}
