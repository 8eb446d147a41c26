package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/config"
)

var flagWatchStatsEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the catalog current until interrupted",
	Long: `Scan the data roots, then rescan every refresh_interval_seconds (and on
directory changes when watch is enabled) until SIGINT/SIGTERM. Only one watch
may run per valcache directory.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchStatsEvery, "stats-every", time.Minute, "How often to log catalog statistics (0 disables)")
	rootCmd.AddCommand(watchCmd)
}

func watchLockPath() (string, error) {
	dir, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "watch.lock"), nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	lockPath, err := watchLockPath()
	if err != nil {
		return err
	}
	l := flock.New(lockPath)
	locked, err := l.TryLock()
	if err != nil {
		return fmt.Errorf("cannot acquire watch lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another watch is running (lock: %s)", lockPath)
	}
	defer func() { _ = l.Unlock() }()

	ctx := cmd.Context()
	ld, r, err := openLoader(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"roots":    cfg.Roots,
		"interval": cfg.RefreshInterval(),
		"watch":    cfg.Watch,
	}).Info("watching data roots")

	var tick <-chan time.Time
	if flagWatchStatsEvery > 0 {
		t := time.NewTicker(flagWatchStatsEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-r.Done():
			index := ld.Index()
			printOK("", fmt.Sprintf("stopped after %d scans: %d revisions, %d days", r.Scans(), len(index.Revisions()), index.Len()))
			return nil
		case <-tick:
			latest, _ := ld.LatestRevision()
			log.WithFields(logrus.Fields{
				"revisions": len(ld.Revisions()),
				"entries":   ld.Index().Len(),
				"latest":    latest,
				"scans":     r.Scans(),
			}).Info("catalog statistics")
		}
	}
}
