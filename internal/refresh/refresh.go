// Package refresh keeps the catalog current by rescanning on a timer, on
// request, and optionally when the data directories change.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kamusis/valcache/internal/catalog"
)

// Scanner is the part of the catalog the Refresher drives.
type Scanner interface {
	Scan(ctx context.Context, roots []string) ([]catalog.DayRef, error)
}

// Refresher runs Scan once synchronously in Start and then every interval
// until the context passed to Start is cancelled. An interval of zero means
// the catalog is static after the first Scan.
type Refresher struct {
	scanner  Scanner
	roots    []string
	interval time.Duration
	watch    bool
	debounce time.Duration
	log      logrus.FieldLogger
	onScan   func([]catalog.DayRef, error)

	trigger chan struct{}
	done    chan struct{}
	scans   atomic.Int64
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Refresher) { r.log = log }
}

// WithWatch also triggers a Scan when directories appear under the roots.
// Events are coalesced over debounce.
func WithWatch(debounce time.Duration) Option {
	return func(r *Refresher) {
		r.watch = true
		r.debounce = debounce
	}
}

// WithOnScan registers fn to run after every Scan, including failed ones.
func WithOnScan(fn func(delta []catalog.DayRef, err error)) Option {
	return func(r *Refresher) { r.onScan = fn }
}

// New returns a Refresher scanning roots with s.
func New(s Scanner, roots []string, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		scanner:  s,
		roots:    roots,
		interval: interval,
		log:      logrus.StandardLogger(),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "refresh")
	return r
}

// Start performs the initial Scan and, unless the catalog is static, starts
// the background loop. The initial Scan's error is returned after the loop
// has been started; a partial catalog is still usable.
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.scan(ctx)

	if r.interval <= 0 && !r.watch {
		close(r.done)
		return err
	}
	if r.watch {
		if werr := r.startWatcher(ctx); werr != nil {
			r.log.WithError(werr).Warn("cannot watch roots; relying on periodic scans")
		}
	}
	go r.run(ctx)
	return err
}

// Trigger requests a Scan as soon as the loop is idle. Requests made while a
// Scan is pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Done is closed once the background loop has exited.
func (r *Refresher) Done() <-chan struct{} { return r.done }

// Scans returns the number of Scans performed so far.
func (r *Refresher) Scans() int64 { return r.scans.Load() }

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)

	var tick <-chan time.Time
	if r.interval > 0 {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("refresh loop stopped")
			return
		case <-tick:
		case <-r.trigger:
		}
		if ctx.Err() != nil {
			return
		}
		// An in-flight Scan runs to completion even if ctx is cancelled meanwhile.
		_, _ = r.scan(context.WithoutCancel(ctx))
	}
}

func (r *Refresher) scan(ctx context.Context) ([]catalog.DayRef, error) {
	delta, err := r.scanner.Scan(ctx, r.roots)
	r.scans.Add(1)
	if err != nil {
		r.log.WithError(err).Error("scan failed")
	} else if len(delta) > 0 {
		r.log.WithField("new_days", len(delta)).Info("catalog updated")
	}
	if r.onScan != nil {
		r.onScan(delta, err)
	}
	return delta, err
}
