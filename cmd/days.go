package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/catalog"
)

var flagDaysNewest bool

var daysCmd = &cobra.Command{
	Use:   "days [revision]",
	Short: "List the days of a revision and the kinds available for each",
	Long: `List indexed days. With no argument, every revision is listed;
--newest restricts the listing to the latest revision.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDays,
}

func init() {
	daysCmd.Flags().BoolVar(&flagDaysNewest, "newest", false, "Only list the most recent revision")
	rootCmd.AddCommand(daysCmd)
}

func runDays(cmd *cobra.Command, args []string) error {
	_, l, err := openStatic(cmd.Context())
	if err != nil {
		return err
	}
	index := l.Index()

	revs := index.Revisions()
	switch {
	case len(args) == 1:
		rev, err := resolveRevision(l.LatestRevision, args[0])
		if err != nil {
			return err
		}
		revs = []string{rev}
	case flagDaysNewest:
		latest, err := index.LatestRevision()
		if err != nil {
			return err
		}
		revs = []string{latest}
	}

	for _, rev := range revs {
		days, err := index.Days(rev)
		if err != nil {
			return err
		}
		printSection(fmt.Sprintf("%s (%d days)", rev, len(days)))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, d := range days {
			kinds, _ := index.Kinds(rev, d.LSD)
			names := make([]string, len(kinds))
			for i, k := range kinds {
				names[i] = string(k)
			}
			avail := strings.Join(names, ", ")
			if avail == "" {
				avail = "-"
			}
			fmt.Fprintf(w, "  %s\t%s\n", d, avail)
		}
		_ = w.Flush()
	}
	return nil
}

// resolveRevision maps "latest" to the latest revision label.
func resolveRevision(latest func() (string, error), rev string) (string, error) {
	if rev != "latest" {
		return rev, nil
	}
	r, err := latest()
	if err != nil {
		return "", fmt.Errorf("cannot resolve latest revision: %w", err)
	}
	return r, nil
}

func parseKindArg(s string) (catalog.Kind, error) {
	k, err := catalog.ParseKind(s)
	if err != nil {
		names := make([]string, 0)
		for _, k := range catalog.Kinds() {
			names = append(names, string(k))
		}
		return "", fmt.Errorf("%w (known kinds: %s)", err, strings.Join(names, ", "))
	}
	return k, nil
}
