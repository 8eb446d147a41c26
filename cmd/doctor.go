package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/config"
)

var flagDoctorVerbose bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight checks on the config and data roots",
	Long: `Check that the config is valid, every root is readable and the data
layout scans cleanly. Ambiguous and misfiled products are listed.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&flagDoctorVerbose, "verbose", false, "Also list kinds missing from indexed days")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("valcache doctor")
	fmt.Println()

	// ── Check 1: config ─────────────────────────────────────────────────────
	fmt.Println("[ config ]")
	cfg, err := loadConfig()
	if err != nil {
		failD("%v", err)
		fmt.Println()
		return fmt.Errorf("doctor found issues")
	}
	if p, err := config.ConfigPath(); err == nil {
		if _, err := os.Stat(p); err == nil {
			printOK("", fmt.Sprintf("config: %s", p))
		} else {
			printSkip("", "no config file — using flags and environment")
		}
	}
	printOK("", fmt.Sprintf("refresh every %ds, cache capacity %d", cfg.RefreshIntervalSeconds, cfg.CacheCapacity))
	if cfg.CacheCapacity == 0 {
		printWarn("", "cache_capacity is 0 — every fetch reads from disk")
	}
	fmt.Println()

	// ── Check 2: roots ──────────────────────────────────────────────────────
	fmt.Println("[ roots ]")
	for _, r := range cfg.Roots {
		st, err := os.Stat(r)
		switch {
		case err != nil:
			failD("%s: %v", r, err)
		case !st.IsDir():
			failD("%s is not a directory", r)
		default:
			revs, _ := filepath.Glob(filepath.Join(r, catalog.RevisionGlob))
			if len(revs) == 0 {
				printWarn("", fmt.Sprintf("%s: no %s directories", r, catalog.RevisionGlob))
			} else {
				printOK("", fmt.Sprintf("%s: %d revision directories", r, len(revs)))
			}
		}
	}
	fmt.Println()

	// ── Check 3: scan ───────────────────────────────────────────────────────
	fmt.Println("[ scan ]")
	_, l, err := openStatic(cmd.Context())
	if err != nil {
		failD("%v", err)
	} else {
		index := l.Index()
		latest, _ := index.LatestRevision()
		printOK("", fmt.Sprintf("%d revisions, %d days, latest %s", len(index.Revisions()), index.Len(), latest))

		var missing int
		for _, d := range index.Diagnostics() {
			switch {
			case errors.Is(d, catalog.ErrUnavailable):
				missing++
				if flagDoctorVerbose {
					printMiss("", d.Error())
				}
			case errors.Is(d, catalog.ErrAmbiguousSource), errors.Is(d, catalog.ErrMismatchedIdentifier):
				printWarn("", d.Error())
				allOK = false
			default:
				failD("%s", d.Error())
			}
		}
		if missing > 0 && !flagDoctorVerbose {
			printSkip("", fmt.Sprintf("%d (day, kind) products missing — use --verbose to list", missing))
		}
	}
	fmt.Println()

	// ── Summary ─────────────────────────────────────────────────────────────
	fmt.Println("===================")
	if allOK {
		fmt.Println("✓  All checks passed. valcache is ready to use.")
		return nil
	}
	fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
	return fmt.Errorf("doctor found issues")
}
