package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/loader"
	"github.com/kamusis/valcache/internal/product"
)

var (
	flagFetchTemplate string
	flagFetchRepeat   int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <revision|latest> <lsd> <kind>",
	Short: "Load one data product through the cache and describe it",
	Args:  cobra.ExactArgs(3),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&flagFetchTemplate, "template", "", "Also load a shared reference file into the pinned cache")
	fetchCmd.Flags().IntVar(&flagFetchRepeat, "repeat", 1, "Fetch the product this many times (later fetches are cache hits)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	_, l, err := openStatic(cmd.Context())
	if err != nil {
		return err
	}
	rev, err := resolveRevision(l.LatestRevision, args[0])
	if err != nil {
		return err
	}
	lsd, err := strconv.Atoi(args[1])
	if err != nil || lsd < 0 {
		return fmt.Errorf("invalid LSD %q", args[1])
	}
	kind, err := parseKindArg(args[2])
	if err != nil {
		return err
	}

	printSection(fmt.Sprintf("fetch %s/%d %s", rev, lsd, kind))
	var p product.Product
	for i := 0; i < max(flagFetchRepeat, 1); i++ {
		start := time.Now()
		p, err = l.Fetch(rev, lsd, kind)
		if err != nil {
			return describeFetchError(err)
		}
		printInfo(strconv.Itoa(i+1), fmt.Sprintf("served in %s", time.Since(start).Round(time.Microsecond)))
	}
	describeProduct(p)

	if flagFetchTemplate != "" {
		printSection("template")
		t, err := l.FetchPinned(flagFetchTemplate, product.DecodeTemplate)
		if err != nil {
			return describeFetchError(err)
		}
		describeProduct(t)
	}

	st := l.Stats()
	fmt.Printf("\n  %d hits / %d misses / %d loads / %d evictions  (cached %d of %d, pinned %d)\n",
		st.Hits, st.Misses, st.Loads, st.Evictions, st.Cached, st.Capacity, st.Pinned)
	return nil
}

func describeProduct(p product.Product) {
	c := p.Source()
	printOK("", fmt.Sprintf("%T", p))
	printInfo("path", c.Path)
	printInfo("size", humanize.Bytes(uint64(c.Size)))
	printInfo("modified", humanize.Time(c.ModTime))
	printInfo("xxhash", fmt.Sprintf("%016x", c.Checksum))
	if c.SuperblockOffset > 0 {
		printInfo("user block", humanize.Bytes(uint64(c.SuperblockOffset)))
	}
	if rm, ok := p.(*product.RingMap); ok && rm.Intercylinder {
		printInfo("baselines", "intercylinder only")
	}
}

// describeFetchError turns typed fetch errors into user-facing messages.
func describeFetchError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		printMiss("", err.Error())
		return fmt.Errorf("no such revision or day — run 'valcache days' to list what is indexed")
	case errors.Is(err, catalog.ErrUnavailable):
		printMiss("", err.Error())
		return fmt.Errorf("product not available for this day")
	case errors.Is(err, loader.ErrLoadFailure):
		printErr("", err.Error())
		return fmt.Errorf("cannot load product")
	}
	return err
}
