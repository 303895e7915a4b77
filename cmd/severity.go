package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/medspa-portal/internal/severity"
)

var (
	severityFactor float64
	severityType   string
)

var severityCmd = &cobra.Command{
	Use:   "severity <score>",
	Short: "Preview how a raw severity score is displayed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Errorf("invalid score %q", args[0])
		}

		sc, err := severity.FromConfig(cfg.Severity)
		if err != nil {
			return err
		}
		if severityType != "" {
			t, err := severity.ParseType(severityType)
			if err != nil {
				return err
			}
			sc.Type = t
			if err := sc.Validate(); err != nil {
				return err
			}
		}

		display := sc.Scale(score, severityFactor)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "raw %.1f x%.2f (%s, range %.0f-%.0f) -> %.1f %s\n",
			score, severityFactor, sc.Type, sc.Range.Min, sc.Range.Max, display, sc.Level(display))
		return nil
	},
}

func init() {
	severityCmd.Flags().Float64Var(&severityFactor, "factor", 1.0, "scaling factor")
	severityCmd.Flags().StringVar(&severityType, "type", "", "scaling type: linear, logarithmic or custom (default from config)")
	rootCmd.AddCommand(severityCmd)
}
