package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/log"
	"firestige.xyz/pcaplens/internal/pipeline"
	"firestige.xyz/pcaplens/internal/report"
)

var (
	analyzeFormat   string
	analyzeOutput   string
	analyzeExtended bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a pcap file and print the report",
	Long: `
Analyze a classic pcap capture file in one pass and print the report.

Examples:
  pcaplens analyze trace.pcap                        # text report on stdout
  pcaplens analyze trace.pcap -f json -o report.json # JSON report written to a file
  pcaplens analyze trace.pcap --extended             # include size and ratio heuristics
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Close()

		p := pipeline.NewBuilder().
			FromConfig(cfg.Analysis).
			WithExtendedRules(cfg.Analysis.ExtendedRules || analyzeExtended).
			Build()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var buf bytes.Buffer
		if err := runAnalyze(ctx, p, args[0], analyzeFormat, &buf); err != nil {
			return err
		}
		if analyzeOutput == "" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		return os.WriteFile(analyzeOutput, buf.Bytes(), 0o644)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", report.FormatText,
		"output format ("+strings.Join(report.Formats(), ", ")+")")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeExtended, "extended", false, "append the size and ratio heuristics")
}

type fileAnalyzer interface {
	RunFile(ctx context.Context, path string) (*report.AnalysisReport, error)
}

func runAnalyze(ctx context.Context, a fileAnalyzer, path, format string, w io.Writer) error {
	format = strings.ToLower(format)
	if !slices.Contains(report.Formats(), format) {
		return fmt.Errorf("%w: %q", core.ErrUnknownFormat, format)
	}

	rep, err := a.RunFile(ctx, path)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return report.Render(w, rep, format)
}
