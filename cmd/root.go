// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pcaplens",
	Short: "pcaplens - offline pcap analysis with heuristic findings",
	Long: `pcaplens reads a classic pcap capture in a single pass, decodes L2-L4 headers,
tracks TCP flow state and aggregates traffic statistics. A fixed table of
heuristic rules turns the aggregate into a report of issues.

Features:
  - Streaming: one pass, bounded per-frame work, no reassembly
  - Findings: suspicious ports, cleartext credentials, retransmissions, zero window,
    deprecated TLS, IP fragmentation, plus optional size/ratio heuristics
  - Output: text, json, yaml or protobuf Struct
  - HTTP API: POST a capture, receive the report`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and PCAPLENS_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (trace, debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(rulesCmd)
}

// bootstrap loads the configuration and installs the process logger.
func bootstrap() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.ValidateAndApplyDefaults(); err != nil {
			return nil, err
		}
	}
	if err := log.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}
