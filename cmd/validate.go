package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/pcaplens/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a pcaplens configuration file without running an analysis.

Defaults and PCAPLENS_* environment overrides are applied exactly as the
analyze and serve commands apply them.

Examples:
  pcaplens validate -c pcaplens.yml
  PCAPLENS_SERVER_LISTEN=:9000 pcaplens validate`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, cmd.OutOrStdout()); err != nil {
			os.Exit(1)
		}
	},
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = cfg.Metrics.Path
		if cfg.Metrics.Listen != "" {
			metrics = cfg.Metrics.Listen + cfg.Metrics.Path
		}
	}
	fmt.Fprintf(w, "VALID: log level %s, %d appender(s), extended rules %t, listen %s, metrics %s\n",
		cfg.Log.Level,
		len(cfg.Log.Appenders),
		cfg.Analysis.ExtendedRules,
		cfg.Server.Listen,
		metrics,
	)
	return nil
}
