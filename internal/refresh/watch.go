package refresh

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kamusis/valcache/internal/catalog"
)

// startWatcher watches every root and revision directory. A directory created
// there (a new revision or a new day) triggers a Scan once events settle.
func (r *Refresher) startWatcher(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range r.roots {
		if err := w.Add(root); err != nil {
			w.Close()
			return err
		}
		revs, _ := filepath.Glob(filepath.Join(root, catalog.RevisionGlob))
		for _, rev := range revs {
			if st, err := os.Stat(rev); err == nil && st.IsDir() {
				_ = w.Add(rev)
			}
		}
	}

	go func() {
		defer w.Close()

		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create == 0 {
					continue
				}
				st, err := os.Stat(ev.Name)
				if err != nil || !st.IsDir() {
					continue
				}
				if ok, _ := filepath.Match(catalog.RevisionGlob, filepath.Base(ev.Name)); ok {
					_ = w.Add(ev.Name)
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.Trigger)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.WithError(err).Warn("watch error")
			}
		}
	}()
	return nil
}
