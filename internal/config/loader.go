package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. PCAPLENS_LOG_LEVEL.
const EnvPrefix = "PCAPLENS"

// configRoot is the top-level wrapper matching the YAML structure `pcaplens: ...`.
type configRoot struct {
	PcapLens GlobalConfig `mapstructure:"pcaplens"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `pcaplens.` key prefix maps to PCAPLENS_ through the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PcapLens

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values; every key carries the "pcaplens." prefix.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pcaplens.log.level", "info")
	v.SetDefault("pcaplens.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("pcaplens.log.time", "2006-01-02T15:04:05.000Z07:00")
	v.SetDefault("pcaplens.log.appenders", []map[string]interface{}{
		{"type": "console", "options": map[string]interface{}{"target": "stderr"}},
	})

	// Analysis defaults
	v.SetDefault("pcaplens.analysis.extended_rules", false)
	v.SetDefault("pcaplens.analysis.read_buffer_size", 64*1024)

	// Server defaults
	v.SetDefault("pcaplens.server.listen", ":8086")
	v.SetDefault("pcaplens.server.max_upload_bytes", 256<<20)
	v.SetDefault("pcaplens.server.read_timeout", "60s")
	v.SetDefault("pcaplens.server.write_timeout", "60s")
	v.SetDefault("pcaplens.server.shutdown_timeout", "5s")

	// Metrics defaults
	v.SetDefault("pcaplens.metrics.enabled", true)
	v.SetDefault("pcaplens.metrics.path", "/metrics")
	v.SetDefault("pcaplens.metrics.listen", "")
}
