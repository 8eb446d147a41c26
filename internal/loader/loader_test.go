package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kamusis/valcache/internal/catalog"
	"github.com/kamusis/valcache/internal/config"
	"github.com/kamusis/valcache/internal/product"
)

var hdf5 = []byte("\x89HDF\r\n\x1a\n")

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeFile(t *testing.T, root, rev string, lsd int, name string, data []byte) string {
	t.Helper()
	dir := filepath.Join(root, rev, strconv.Itoa(lsd))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// fixture builds the two-revision layout used across these tests.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "rev_00", 10, "delayspectrum_lsd_0010.h5", hdf5)
	writeFile(t, root, "rev_01", 10, "delayspectrum_lsd_0010.h5", hdf5)
	writeFile(t, root, "rev_01", 11, "delayspectrum_lsd_0011.h5", hdf5)
	return root
}

// countingDecoder wraps the real decoder and counts disk reads.
type countingDecoder struct {
	n atomic.Int32
}

func (c *countingDecoder) decode(path string) (product.Product, error) {
	c.n.Add(1)
	return product.DecodeTemplate(path)
}

func newLoader(t *testing.T, root string, capacity int, opts ...Option) *Loader {
	t.Helper()
	index := catalog.New(quietLogger())
	if _, err := index.Scan(context.Background(), []string{root}); err != nil {
		t.Fatal(err)
	}
	return New(index, capacity, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestFetch_CachesByIdentity(t *testing.T) {
	root := fixture(t)
	dec := &countingDecoder{}
	l := newLoader(t, root, 10, WithDecoder(catalog.KindDelaySpectrum, dec.decode))

	if got := l.Revisions(); len(got) != 2 || got[0] != "rev_00" || got[1] != "rev_01" {
		t.Fatalf("Revisions() = %v", got)
	}
	if latest, _ := l.LatestRevision(); latest != "rev_01" {
		t.Fatalf("LatestRevision() = %q", latest)
	}
	days, err := l.Days("rev_01")
	if err != nil || len(days) != 2 || days[0].LSD != 10 || days[1].LSD != 11 {
		t.Fatalf("Days() = %v, %v", days, err)
	}

	first, err := l.Fetch("rev_01", 11, catalog.KindDelaySpectrum)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := filepath.Join(root, "rev_01", "11", "delayspectrum_lsd_0011.h5")
	if first.Source().Path != want {
		t.Fatalf("unexpected path %q", first.Source().Path)
	}
	second, err := l.Fetch("rev_01", 11, catalog.KindDelaySpectrum)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if first != second {
		t.Fatal("expected the identical cached object")
	}
	if dec.n.Load() != 1 {
		t.Fatalf("expected 1 disk read, got %d", dec.n.Load())
	}
	st := l.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Loads != 1 || st.Cached != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestFetch_DefaultDecoderType(t *testing.T) {
	l := newLoader(t, fixture(t), 10)
	p, err := l.Fetch("rev_00", 10, catalog.KindDelaySpectrum)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*product.DelaySpectrum); !ok {
		t.Fatalf("expected *product.DelaySpectrum, got %T", p)
	}
}

func TestFetch_MissingKinds(t *testing.T) {
	dec := &countingDecoder{}
	l := newLoader(t, fixture(t), 10, WithDecoder(catalog.KindRingMap, dec.decode))

	_, err := l.Fetch("rev_00", 10, catalog.KindRingMap)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	_, err = l.Fetch("rev_00", 99, catalog.KindDelaySpectrum)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var lookupErr *catalog.LookupError
	if !errors.As(err, &lookupErr) || lookupErr.LSD != 99 {
		t.Fatalf("expected a LookupError for lsd 99, got %#v", err)
	}
	_, err = l.Fetch("rev_07", 10, catalog.KindDelaySpectrum)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown revision, got %v", err)
	}
	if dec.n.Load() != 0 {
		t.Fatal("lookup failures must not touch disk")
	}
}

func TestFetch_LoadFailureIsNotCached(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, root, "rev_00", 10, "delayspectrum_lsd_0010.h5", []byte("garbage"))
	l := newLoader(t, root, 10)

	_, err := l.Fetch("rev_00", 10, catalog.KindDelaySpectrum)
	if !errors.Is(err, ErrLoadFailure) || !errors.Is(err, product.ErrNotHDF5) {
		t.Fatalf("expected wrapped load failure, got %v", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Path != p {
		t.Fatalf("expected LoadError for %s, got %#v", p, err)
	}
	if l.Stats().Cached != 0 {
		t.Fatal("failed load must not be cached")
	}

	// Once the file is repaired the next Fetch succeeds.
	if err := os.WriteFile(p, hdf5, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Fetch("rev_00", 10, catalog.KindDelaySpectrum); err != nil {
		t.Fatalf("Fetch after repair: %v", err)
	}
}

func TestFetch_EvictsLeastRecentlyUsed(t *testing.T) {
	root := t.TempDir()
	for lsd := 20; lsd < 24; lsd++ {
		writeFile(t, root, "rev_01", lsd, "delayspectrum_lsd_00"+strconv.Itoa(lsd)+".h5", hdf5)
	}
	dec := &countingDecoder{}
	l := newLoader(t, root, 3, WithDecoder(catalog.KindDelaySpectrum, dec.decode))

	for _, lsd := range []int{20, 21, 22, 20, 23} {
		if _, err := l.Fetch("rev_01", lsd, catalog.KindDelaySpectrum); err != nil {
			t.Fatal(err)
		}
	}
	if dec.n.Load() != 4 {
		t.Fatalf("expected 4 reads, got %d", dec.n.Load())
	}
	// 21 was the least recently used and must be read again.
	if _, err := l.Fetch("rev_01", 21, catalog.KindDelaySpectrum); err != nil {
		t.Fatal(err)
	}
	if dec.n.Load() != 5 {
		t.Fatalf("expected 21 to have been evicted, reads=%d", dec.n.Load())
	}
	if l.Stats().Evictions != 2 {
		t.Fatalf("expected 2 evictions, got %d", l.Stats().Evictions)
	}
}

func TestFetch_ZeroCapacityAlwaysReads(t *testing.T) {
	dec := &countingDecoder{}
	l := newLoader(t, fixture(t), 0, WithDecoder(catalog.KindDelaySpectrum, dec.decode))
	for i := 0; i < 3; i++ {
		if _, err := l.Fetch("rev_01", 10, catalog.KindDelaySpectrum); err != nil {
			t.Fatal(err)
		}
	}
	if dec.n.Load() != 3 {
		t.Fatalf("expected 3 reads, got %d", dec.n.Load())
	}
}

func TestFetch_ConcurrentMissesShareOneRead(t *testing.T) {
	release := make(chan struct{})
	var reads atomic.Int32
	slow := func(path string) (product.Product, error) {
		reads.Add(1)
		<-release
		return product.DecodeTemplate(path)
	}
	l := newLoader(t, fixture(t), 10, WithDecoder(catalog.KindDelaySpectrum, slow))

	var wg sync.WaitGroup
	out := make([]product.Product, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := l.Fetch("rev_01", 11, catalog.KindDelaySpectrum)
			if err != nil {
				t.Error(err)
			}
			out[i] = p
		}(i)
	}
	for reads.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	if reads.Load() != 1 {
		t.Fatalf("expected a single read, got %d", reads.Load())
	}
	for _, p := range out {
		if p != out[0] {
			t.Fatal("callers received different objects")
		}
	}
}

func TestFetchPinned(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ringmap_template.h5")
	if err := os.WriteFile(p, hdf5, 0o644); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t, fixture(t), 1)
	dec := &countingDecoder{}

	a, err := l.FetchPinned(p, dec.decode)
	if err != nil {
		t.Fatal(err)
	}
	// Churn the bounded cache; pinned entries are unaffected.
	for _, lsd := range []int{10, 11} {
		if _, err := l.Fetch("rev_01", lsd, catalog.KindDelaySpectrum); err != nil {
			t.Fatal(err)
		}
	}
	b, err := l.FetchPinned(p, dec.decode)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || dec.n.Load() != 1 {
		t.Fatalf("pinned file read %d times", dec.n.Load())
	}
	if _, ok := a.(*product.Template); !ok {
		t.Fatalf("expected *product.Template, got %T", a)
	}

	_, err = l.FetchPinned(filepath.Join(dir, "missing.h5"), product.DecodeTemplate)
	if !errors.Is(err, ErrLoadFailure) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist load failure, got %v", err)
	}
	if l.Stats().Pinned != 1 {
		t.Fatalf("expected 1 pinned entry, got %d", l.Stats().Pinned)
	}
}

func TestOpen(t *testing.T) {
	root := fixture(t)
	tmpl := filepath.Join(t.TempDir(), "template.h5")
	if err := os.WriteFile(tmpl, hdf5, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Roots: []string{root}, CacheCapacity: 2, Pinned: []string{tmpl}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, r, err := Open(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-r.Done() // static catalog: no background loop
	if latest, _ := l.LatestRevision(); latest != "rev_01" {
		t.Fatalf("LatestRevision() = %q", latest)
	}
	if l.Stats().Pinned != 1 || l.Stats().Capacity != 2 {
		t.Fatalf("unexpected stats %+v", l.Stats())
	}
}

func TestOpen_EmptyCatalog(t *testing.T) {
	cfg := &config.Config{Roots: []string{t.TempDir()}, CacheCapacity: 2}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, _, err := Open(ctx, cfg, quietLogger()); !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}
