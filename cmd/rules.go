package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/pcaplens/internal/rules"
)

var rulesExtended bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the heuristic rule table in evaluation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		engine := rules.NewEngine(rules.WithExtended(cfg.Analysis.ExtendedRules || rulesExtended))
		return runRules(engine, cmd.OutOrStdout())
	},
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesExtended, "extended", false, "include the size and ratio heuristics")
}

func runRules(engine *rules.Engine, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRULE\tSEVERITY")
	for i, r := range engine.Rules() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Name, r.Severity)
	}
	return tw.Flush()
}
