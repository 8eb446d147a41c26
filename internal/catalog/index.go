// Package catalog indexes daily data products stored under
// <root>/rev_<label>/<lsd>/<kind-file> and answers lookups by revision, day and
// kind.
//
// The catalog only grows: entries are never removed, and a kind that has been
// recorded with a path keeps that path across rescans.
package catalog

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kamusis/valcache/internal/day"
)

// DayRef names one (revision, day) pair.
type DayRef struct {
	Revision string
	Day      day.Day
}

// Entry is a copy of the catalog state for one (revision, day) pair. An empty
// path means the kind was recorded absent.
type Entry struct {
	Revision string
	Day      day.Day
	Paths    map[Kind]string
}

// Index is the in-memory catalog. It is safe for concurrent use; a Scan holds
// the write lock only while merging its results.
type Index struct {
	log logrus.FieldLogger

	mu          sync.RWMutex
	revs        map[string]map[int]map[Kind]string
	diagnostics []Diagnostic
}

// New returns an empty Index. A nil logger means the logrus standard logger.
func New(log logrus.FieldLogger) *Index {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Index{
		log:  log.WithField("component", "catalog"),
		revs: make(map[string]map[int]map[Kind]string),
	}
}

// Revisions returns all known revisions in label order.
func (x *Index) Revisions() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.revs))
	for r := range x.revs {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// LatestRevision returns the lexicographically greatest revision label.
func (x *Index) LatestRevision() (string, error) {
	revs := x.Revisions()
	if len(revs) == 0 {
		return "", ErrEmptyCatalog
	}
	return revs[len(revs)-1], nil
}

// Days returns the days known for revision in ordinal order.
func (x *Index) Days(revision string) ([]day.Day, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	days, ok := x.revs[revision]
	if !ok {
		return nil, &LookupError{Revision: revision, LSD: -1, Err: ErrNotFound}
	}
	out := make([]day.Day, 0, len(days))
	for lsd := range days {
		out = append(out, day.FromLSD(lsd))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LSD < out[j].LSD })
	return out, nil
}

// Lookup resolves the file path of kind for (revision, lsd). It fails with
// ErrNotFound when the pair is unknown and ErrUnavailable when the kind is
// absent.
func (x *Index) Lookup(revision string, lsd int, kind Kind) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	paths, ok := x.revs[revision][lsd]
	if !ok {
		return "", &LookupError{Revision: revision, LSD: lsd, Kind: kind, Err: ErrNotFound}
	}
	p := paths[kind]
	if p == "" {
		return "", &LookupError{Revision: revision, LSD: lsd, Kind: kind, Err: ErrUnavailable}
	}
	return p, nil
}

// Entry returns a copy of the catalog entry for (revision, lsd).
func (x *Index) Entry(revision string, lsd int) (Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	paths, ok := x.revs[revision][lsd]
	if !ok {
		return Entry{}, &LookupError{Revision: revision, LSD: lsd, Err: ErrNotFound}
	}
	e := Entry{Revision: revision, Day: day.FromLSD(lsd), Paths: make(map[Kind]string, len(paths))}
	for k, p := range paths {
		e.Paths[k] = p
	}
	return e, nil
}

// Kinds returns the kinds with a recorded path for (revision, lsd).
func (x *Index) Kinds(revision string, lsd int) ([]Kind, error) {
	e, err := x.Entry(revision, lsd)
	if err != nil {
		return nil, err
	}
	var out []Kind
	for _, k := range kinds {
		if e.Paths[k] != "" {
			out = append(out, k)
		}
	}
	return out, nil
}

// Len returns the number of (revision, day) entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, days := range x.revs {
		n += len(days)
	}
	return n
}

// Diagnostics returns the anomalies recorded by the most recent Scan.
func (x *Index) Diagnostics() []Diagnostic {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Diagnostic, len(x.diagnostics))
	copy(out, x.diagnostics)
	return out
}

// Snapshot returns a deep copy of the catalog as revision -> lsd -> kind -> path.
func (x *Index) Snapshot() map[string]map[int]map[Kind]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]map[int]map[Kind]string, len(x.revs))
	for r, days := range x.revs {
		dd := make(map[int]map[Kind]string, len(days))
		for lsd, paths := range days {
			pp := make(map[Kind]string, len(paths))
			for k, p := range paths {
				pp[k] = p
			}
			dd[lsd] = pp
		}
		out[r] = dd
	}
	return out
}
