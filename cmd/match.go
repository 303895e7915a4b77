package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/medspa-portal/internal/photomatch"
)

var (
	matchServes []string
	matchTop    int
)

var matchCmd = &cobra.Command{
	Use:   "match <treatment>",
	Short: "Preview gallery photo matching for a treatment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := photomatch.LoadCatalog(cfg.PhotoMatch.CatalogPath)
		if err != nil {
			return err
		}
		treatment := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		best := catalog.Best(treatment, matchServes)
		if best == nil {
			_, _ = fmt.Fprintf(out, "No gallery photo matches %q\n", treatment)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Best: %s (%s)\n\n", best.ID, best.URL)

		matches := catalog.Rank(treatment, matchServes)
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SCORE\tID\tTREATMENT\tSTORY")
		_, _ = fmt.Fprintln(w, "-----\t--\t---------\t-----")
		for i, m := range matches {
			if matchTop > 0 && i >= matchTop {
				break
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Score, m.Photo.ID, m.Photo.Treatment, m.Photo.StoryTitle)
		}
		return w.Flush()
	},
}

func init() {
	matchCmd.Flags().StringSliceVar(&matchServes, "serves", nil, "findings the treatment addresses (comma-separated)")
	matchCmd.Flags().IntVar(&matchTop, "top", 5, "number of ranked candidates to show (0 for all)")
	rootCmd.AddCommand(matchCmd)
}
