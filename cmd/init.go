package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/config"
)

var (
	flagInitInterval int
	flagInitCapacity int
	flagInitWatch    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config to ~/.valcache/valcache.yaml",
	Long: `Create ~/.valcache/ with a config file and a .env override template.

Roots given with --root are written to the config. An existing config is left
untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().IntVar(&flagInitInterval, "refresh-interval", config.DefaultRefreshIntervalSeconds, "Seconds between rescans (0 = scan once)")
	initCmd.Flags().IntVar(&flagInitCapacity, "cache-capacity", config.DefaultCacheCapacity, "Number of per-day products kept in memory")
	initCmd.Flags().BoolVar(&flagInitWatch, "watch", false, "Also rescan when new directories appear")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	dir, err := config.HomeDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("valcache directory ready: %s", dir))

	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	} else if os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		cfg.Roots = append(cfg.Roots, flagRoots...)
		cfg.RefreshIntervalSeconds = flagInitInterval
		cfg.CacheCapacity = flagInitCapacity
		cfg.Watch = flagInitWatch
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
		if len(cfg.Roots) == 0 {
			printWarn("", "no roots configured yet — edit the config or pass --root")
		}
	} else {
		return fmt.Errorf("cannot stat %s: %w", cfgPath, err)
	}

	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	p, _ := config.DotEnvPath()
	printOK("", fmt.Sprintf("Override template ready: %s", p))

	fmt.Println("\n✓  valcache init complete. Run 'valcache doctor' to verify your data roots.")
	return nil
}
