package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/config"
	"github.com/kamusis/valcache/internal/product"
	"github.com/kamusis/valcache/internal/refresh"
)

// watchDebounce coalesces bursts of directory events into one Scan.
const watchDebounce = 2 * time.Second

// Open builds the catalog described by cfg, performs the initial Scan and
// keeps the catalog current until ctx is cancelled. Files listed under
// cfg.Pinned are loaded into the pinned cache.
//
// An initial Scan that finds no revision at all yields catalog.ErrEmptyCatalog;
// other Scan errors are logged and the partial catalog is served. On error the
// caller still owns ctx and should cancel it to stop the refresher.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts ...Option) (*Loader, *refresh.Refresher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	index := catalog.New(log)
	l := New(index, cfg.CacheCapacity, append([]Option{WithLogger(log)}, opts...)...)

	ropts := []refresh.Option{refresh.WithLogger(log)}
	if cfg.Watch {
		ropts = append(ropts, refresh.WithWatch(watchDebounce))
	}
	r := refresh.New(index, cfg.Roots, cfg.RefreshInterval(), ropts...)
	if err := r.Start(ctx); err != nil {
		log.WithError(err).Warn("initial scan incomplete")
	}
	if len(index.Revisions()) == 0 {
		return nil, r, fmt.Errorf("no data available under %v: %w", cfg.Roots, catalog.ErrEmptyCatalog)
	}

	for _, p := range cfg.Pinned {
		if _, err := l.FetchPinned(p, product.DecodeTemplate); err != nil {
			log.WithError(err).WithField("path", p).Warn("cannot preload pinned file")
		}
	}
	return l, r, nil
}
