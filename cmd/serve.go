package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/log"
	"firestige.xyz/pcaplens/internal/metrics"
	"firestige.xyz/pcaplens/internal/pipeline"
	"firestige.xyz/pcaplens/internal/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	Long: `
Serve the analysis HTTP API until SIGINT or SIGTERM.

Routes:
  POST /api/v1/analyze?format=json|yaml|text|proto   body is a pcap stream
  GET  /api/v1/rules                                 active rule table
  GET  /api/v1/stats                                 cumulative run counters
  GET  /healthz
  GET  /metrics                                      when metrics are enabled

Examples:
  pcaplens serve                       # listen on server.listen (default :8086)
  pcaplens serve -c pcaplens.yml -l :9000
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Close()

		if serveListen != "" {
			cfg.Server.Listen = serveListen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "override server.listen")
}

// runServe blocks until ctx is done, then drains both servers within the
// configured shutdown timeout.
func runServe(ctx context.Context, cfg *config.GlobalConfig) error {
	p := pipeline.NewBuilder().FromConfig(cfg.Analysis).Build()

	api := server.New(p, cfg.Server, cfg.Metrics)
	if err := api.Start(ctx); err != nil {
		return err
	}

	var ms *metrics.Server
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		ms = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := ms.Start(ctx); err != nil {
			api.Stop(context.Background())
			return err
		}
	}

	log.GetLogger().WithField("rules", len(p.RuleNames())).Info("pcaplens serving")
	<-ctx.Done()
	st := p.Stats()
	log.GetLogger().WithFields(log.Fields{
		"runs":      st.Runs,
		"failures":  st.Failures,
		"frames":    st.Frames,
		"malformed": st.Malformed,
	}).Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if ms != nil {
		errs = append(errs, ms.Stop(shutdownCtx))
	}
	errs = append(errs, api.Stop(shutdownCtx))
	return errors.Join(errs...)
}
