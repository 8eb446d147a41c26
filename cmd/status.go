package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/catalog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Scan the data roots and summarize the catalog",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, l, err := openStatic(cmd.Context())
	if err != nil {
		return err
	}
	index := l.Index()

	printSection("Roots")
	for _, r := range cfg.Roots {
		printInfo("", r)
	}

	printSection("Revisions")
	latest, _ := index.LatestRevision()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, rev := range index.Revisions() {
		days, err := index.Days(rev)
		if err != nil || len(days) == 0 {
			continue
		}
		counts := make(map[catalog.Kind]int)
		for _, d := range days {
			kinds, _ := index.Kinds(rev, d.LSD)
			for _, k := range kinds {
				counts[k]++
			}
		}
		marker := ""
		if rev == latest {
			marker = "(latest)"
		}
		fmt.Fprintf(w, "  %s\t%s\t%d days\tLSD %d–%d\n", rev, marker, len(days), days[0].LSD, days[len(days)-1].LSD)
		for _, k := range catalog.Kinds() {
			fmt.Fprintf(w, "  \t\t%s\t%d/%d\n", k, counts[k], len(days))
		}
	}
	_ = w.Flush()

	diags := index.Diagnostics()
	var ambiguous, mismatched, other int
	for _, d := range diags {
		switch {
		case errors.Is(d, catalog.ErrUnavailable):
		case errors.Is(d, catalog.ErrAmbiguousSource):
			ambiguous++
		case errors.Is(d, catalog.ErrMismatchedIdentifier):
			mismatched++
		default:
			other++
		}
	}
	fmt.Printf("\n  %d revisions / %d days / %d ambiguous / %d mismatched / %d other errors\n",
		len(index.Revisions()), index.Len(), ambiguous, mismatched, other)
	if ambiguous+mismatched+other > 0 {
		fmt.Println("  Run 'valcache doctor' for details.")
	}
	return nil
}
