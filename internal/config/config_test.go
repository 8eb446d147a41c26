package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "valcache.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "roots:\n  - /data\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshIntervalSeconds != DefaultRefreshIntervalSeconds || cfg.CacheCapacity != DefaultCacheCapacity {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.RefreshInterval() != 600*time.Second {
		t.Fatalf("unexpected interval %v", cfg.RefreshInterval())
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "/data" {
		t.Fatalf("unexpected roots %v", cfg.Roots)
	}
}

func TestLoad_ExplicitZeroes(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "roots: [/data]\nrefresh_interval_seconds: 0\ncache_capacity: 0\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshIntervalSeconds != 0 || cfg.CacheCapacity != 0 {
		t.Fatalf("explicit zeroes overridden: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "roots: [/data]\n")
	t.Setenv("VALCACHE_ROOTS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("VALCACHE_CACHE_CAPACITY", "3")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VALCACHE_REFRESH_INTERVAL=30\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(cfg.Roots, ",") != "/a,/b" {
		t.Fatalf("unexpected roots %v", cfg.Roots)
	}
	if cfg.CacheCapacity != 3 || cfg.RefreshIntervalSeconds != 30 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	dir := isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, dir, "roots: [\"~/daily\"]\npinned: [\"~/tmpl.h5\"]\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Roots[0] != filepath.Join(home, "daily") || cfg.Pinned[0] != filepath.Join(home, "tmpl.h5") {
		t.Fatalf("paths not expanded: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"no roots":          "cache_capacity: 3\n",
		"negative capacity": "roots: [/data]\ncache_capacity: -1\n",
		"negative interval": "roots: [/data]\nrefresh_interval_seconds: -5\n",
		"bad yaml":          "roots: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			writeConfig(t, dir, body)
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Roots = []string{"/data"}
	cfg.Watch = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Watch || got.Roots[0] != "/data" || got.CacheCapacity != DefaultCacheCapacity {
		t.Fatalf("unexpected config %+v", got)
	}
}
