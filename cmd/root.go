package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/config"
	"github.com/kamusis/valcache/internal/loader"
	"github.com/kamusis/valcache/internal/refresh"
)

var (
	flagConfig   string
	flagRoots    []string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "valcache",
	Short:        "valcache — catalog and cache for daily validation data products",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `valcache indexes daily pipeline products stored as
<root>/rev_<label>/<lsd>/<kind>_lsd_<lsd>.h5 and serves them through a
bounded in-memory cache.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.valcache/valcache.yaml)")
	rootCmd.PersistentFlags().StringArrayVar(&flagRoots, "root", nil, "Data root directory (repeatable; overrides config roots)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// Execute is called by main.go. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves the effective config from the config file and flags.
// With --root the config file is optional.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if len(flagRoots) == 0 {
			return nil, fmt.Errorf("cannot load config: %w\nRun 'valcache init' first or pass --root.", err)
		}
		cfg = config.DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}
	if len(flagRoots) > 0 {
		cfg.Roots = nil
		for _, r := range flagRoots {
			p, err := config.ExpandPath(r)
			if err != nil {
				return nil, err
			}
			cfg.Roots = append(cfg.Roots, p)
		}
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, cfg.Validate()
}

// newLogger returns a stderr text logger at the configured level.
func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.LogLevel == "" {
		return log, nil
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	return log, nil
}

// openStatic scans the configured roots once, without a background refresh.
func openStatic(ctx context.Context) (*config.Config, *loader.Loader, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	static := *cfg
	static.RefreshIntervalSeconds = 0
	static.Watch = false
	l, _, err := openLoader(ctx, &static, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func openLoader(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*loader.Loader, *refresh.Refresher, error) {
	l, r, err := loader.Open(ctx, cfg, log)
	if errors.Is(err, catalog.ErrEmptyCatalog) {
		return nil, r, fmt.Errorf("%w\nCheck the roots in your config (expected <root>/rev_*/<lsd>/...).", err)
	}
	return l, r, err
}
