// Package loader is the entry point consumers use to obtain deserialized
// products. It resolves requests against the catalog, serves them from memory
// when possible and otherwise reads the file once and caches the result.
package loader

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/kamusis/valcache/internal/cache"
	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/day"
	"github.com/kamusis/valcache/internal/product"
)

// Key identifies one cached per-day product.
type Key struct {
	Revision string
	LSD      int
	Kind     catalog.Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Revision, k.LSD, k.Kind)
}

// Stats are cumulative counters since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Loads     int64
	Failures  int64
	Evictions int64
	Cached    int
	Capacity  int
	Pinned    int
}

// Loader serves products from a bounded LRU cache backed by the catalog.
// It is safe for concurrent use.
type Loader struct {
	log      logrus.FieldLogger
	index    *catalog.Index
	cache    *cache.LRU[Key, product.Product]
	pinned   *cache.Pinned[product.Product]
	decoders map[catalog.Kind]product.Decoder
	group    singleflight.Group

	hits, misses, loads, failures, evictions atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loader) { l.log = log }
}

// WithDecoder overrides the deserializer used for kind.
func WithDecoder(kind catalog.Kind, dec product.Decoder) Option {
	return func(l *Loader) { l.decoders[kind] = dec }
}

// New returns a Loader reading from index and caching at most capacity
// per-day products.
func New(index *catalog.Index, capacity int, opts ...Option) *Loader {
	l := &Loader{
		log:      logrus.StandardLogger(),
		index:    index,
		pinned:   cache.NewPinned[product.Product](),
		decoders: make(map[catalog.Kind]product.Decoder),
	}
	for _, k := range catalog.Kinds() {
		if dec, ok := product.DecoderFor(k); ok {
			l.decoders[k] = dec
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.WithField("component", "loader")
	l.cache = cache.NewLRU[Key, product.Product](capacity, func(k Key, _ product.Product) {
		l.evictions.Add(1)
		l.log.WithField("key", k.String()).Debug("evicted from cache")
	})
	return l
}

// Index returns the catalog the Loader reads from.
func (l *Loader) Index() *catalog.Index { return l.index }

// Revisions returns all known revisions in label order.
func (l *Loader) Revisions() []string { return l.index.Revisions() }

// LatestRevision returns the lexicographically greatest revision.
func (l *Loader) LatestRevision() (string, error) { return l.index.LatestRevision() }

// Days returns the days of revision in ordinal order.
func (l *Loader) Days(revision string) ([]day.Day, error) { return l.index.Days(revision) }

// Fetch returns the product of kind for (revision, lsd). A cached product is
// returned without I/O. Otherwise the path is resolved through the catalog
// (failing with catalog.ErrNotFound or catalog.ErrUnavailable), the file is
// deserialized (failing with ErrLoadFailure, nothing cached) and the result is
// cached. Concurrent misses on the same key share a single read.
func (l *Loader) Fetch(revision string, lsd int, kind catalog.Kind) (product.Product, error) {
	key := Key{Revision: revision, LSD: lsd, Kind: kind}
	if p, ok := l.cache.Get(key); ok {
		l.hits.Add(1)
		return p, nil
	}
	l.misses.Add(1)

	v, err, _ := l.group.Do(key.String(), func() (any, error) {
		if p, ok := l.cache.Get(key); ok {
			return p, nil
		}
		path, err := l.index.Lookup(revision, lsd, kind)
		if err != nil {
			return nil, err
		}
		dec, ok := l.decoders[kind]
		if !ok {
			return nil, &LoadError{Revision: revision, LSD: lsd, Kind: kind, Path: path, Err: fmt.Errorf("no decoder for kind %q", kind)}
		}

		log := l.log.WithFields(logrus.Fields{"revision": revision, "lsd": lsd, "kind": kind, "path": path})
		start := time.Now()
		p, err := dec(path)
		if err != nil {
			l.failures.Add(1)
			log.WithError(err).Warn("cannot load product")
			return nil, &LoadError{Revision: revision, LSD: lsd, Kind: kind, Path: path, Err: err}
		}
		l.loads.Add(1)
		log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Infof("Loading day %s.", day.FromLSD(lsd))
		l.cache.Put(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(product.Product)
	return p, nil
}

// FetchPinned returns the product at path decoded with dec. Pinned products
// are loaded once and never evicted.
func (l *Loader) FetchPinned(path string, dec product.Decoder) (product.Product, error) {
	p, loaded, err := l.pinned.GetOrLoad(path, func() (product.Product, error) {
		return dec(path)
	})
	if err != nil {
		l.failures.Add(1)
		return nil, &LoadError{Path: path, Err: err}
	}
	if loaded {
		l.log.WithField("path", path).Debug("pinned product available")
	}
	return p, nil
}

// Stats returns the current counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Loads:     l.loads.Load(),
		Failures:  l.failures.Load(),
		Evictions: l.evictions.Load(),
		Cached:    l.cache.Len(),
		Capacity:  l.cache.Cap(),
		Pinned:    l.pinned.Len(),
	}
}
