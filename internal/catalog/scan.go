package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/valcache/internal/day"
)

// maxParallelRoots bounds the number of roots walked concurrently.
const maxParallelRoots = 4

// observation is what one day directory yielded. An empty path records the
// kind as absent.
type observation struct {
	revision string
	lsd      int
	paths    map[Kind]string
}

type rootResult struct {
	observations []observation
	diagnostics  []Diagnostic
	err          error
}

// Scan walks roots and merges what it finds into the catalog. It returns the
// (revision, day) pairs seen for the first time, ordered by revision then day.
//
// Anomalies inside a day directory are recorded as diagnostics and never fail
// the Scan. An unreadable root is reported in the returned error, but whatever
// the other roots yielded is still merged. Only cancellation of ctx prevents
// the merge.
func (x *Index) Scan(ctx context.Context, roots []string) ([]DayRef, error) {
	start := time.Now()
	results := make([]rootResult, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRoots)
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			res, err := scanRoot(gctx, root)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		delta []DayRef
		diags []Diagnostic
		errs  []error
	)

	x.mu.Lock()
	for _, res := range results {
		for _, o := range res.observations {
			days, ok := x.revs[o.revision]
			if !ok {
				days = make(map[int]map[Kind]string)
				x.revs[o.revision] = days
			}
			paths, ok := days[o.lsd]
			if !ok {
				paths = make(map[Kind]string, len(kinds))
				days[o.lsd] = paths
				delta = append(delta, DayRef{Revision: o.revision, Day: day.FromLSD(o.lsd)})
			}
			for k, p := range o.paths {
				if paths[k] != "" {
					continue
				}
				paths[k] = p
			}
		}
		diags = append(diags, res.diagnostics...)
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	x.diagnostics = diags
	x.mu.Unlock()

	sort.Slice(delta, func(i, j int) bool {
		if delta[i].Revision != delta[j].Revision {
			return delta[i].Revision < delta[j].Revision
		}
		return delta[i].Day.LSD < delta[j].Day.LSD
	})

	for _, d := range diags {
		x.logDiagnostic(d)
	}
	for _, ref := range delta {
		x.log.WithFields(logrus.Fields{"revision": ref.Revision, "lsd": ref.Day.LSD}).
			Debugf("Found new data for day %s.", ref.Day)
	}
	x.log.WithFields(logrus.Fields{
		"roots":    len(roots),
		"new_days": len(delta),
		"entries":  x.Len(),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("scan complete")

	return delta, errors.Join(errs...)
}

func (x *Index) logDiagnostic(d Diagnostic) {
	entry := x.log.WithFields(logrus.Fields{
		"root":     d.Root,
		"revision": d.Revision,
		"lsd":      d.LSD,
		"kind":     d.Kind,
	})
	if errors.Is(d.Err, ErrUnavailable) {
		entry.Debug(d.Error())
		return
	}
	entry.Warn(d.Error())
}

func scanRoot(ctx context.Context, root string) (rootResult, error) {
	var res rootResult
	revDirs, err := os.ReadDir(root)
	if err != nil {
		res.err = fmt.Errorf("cannot read root %s: %w", root, err)
		res.diagnostics = append(res.diagnostics, Diagnostic{Root: root, LSD: -1, Err: err})
		return res, nil
	}

	for _, rd := range revDirs {
		if ok, _ := filepath.Match(RevisionGlob, rd.Name()); !ok {
			continue
		}
		revPath := filepath.Join(root, rd.Name())
		if !isDir(revPath, rd) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		dayDirs, err := os.ReadDir(revPath)
		if err != nil {
			res.diagnostics = append(res.diagnostics, Diagnostic{Root: root, Revision: rd.Name(), LSD: -1, Err: err})
			continue
		}
		for _, dd := range dayDirs {
			lsd, ok := parseLSDDir(dd.Name())
			if !ok {
				continue
			}
			dayPath := filepath.Join(revPath, dd.Name())
			if !isDir(dayPath, dd) {
				continue
			}
			obs, diags := scanDay(root, rd.Name(), lsd, dayPath)
			res.observations = append(res.observations, obs)
			res.diagnostics = append(res.diagnostics, diags...)
		}
	}
	return res, nil
}

// scanDay matches every kind's glob against the files of one day directory.
func scanDay(root, revision string, lsd int, dir string) (observation, []Diagnostic) {
	obs := observation{revision: revision, lsd: lsd, paths: make(map[Kind]string, len(kinds))}
	var diags []Diagnostic
	diag := func(k Kind, err error, paths ...string) {
		diags = append(diags, Diagnostic{Root: root, Revision: revision, LSD: lsd, Kind: k, Paths: paths, Err: err})
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		diag("", err)
		return obs, diags
	}

	for _, k := range kinds {
		var matches []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if ok, _ := filepath.Match(k.Glob(), f.Name()); ok {
				matches = append(matches, filepath.Join(dir, f.Name()))
			}
		}

		obs.paths[k] = ""
		switch len(matches) {
		case 0:
			diag(k, fmt.Errorf("%w: found 0 files matching %s (expected 1)", ErrUnavailable, k.Glob()))
			continue
		case 1:
		default:
			diag(k, fmt.Errorf("%w: found %d files matching %s (expected 1)", ErrAmbiguousSource, len(matches), k.Glob()), matches...)
			continue
		}

		n, err := lsdFromFilename(matches[0])
		if err != nil {
			diag(k, err, matches[0])
			continue
		}
		if n != lsd {
			diag(k, fmt.Errorf("%w: found file for LSD %d when expecting LSD %d", ErrMismatchedIdentifier, n, lsd), matches[0])
			continue
		}
		obs.paths[k] = matches[0]
	}
	return obs, diags
}

// isDir follows symlinks, which DirEntry.IsDir does not.
func isDir(path string, d os.DirEntry) bool {
	if d.IsDir() {
		return true
	}
	if d.Type()&os.ModeSymlink == 0 {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
