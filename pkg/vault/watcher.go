package vault

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch starts a filesystem watcher over the vault. Events only flag the
// index as stale; the rebuild happens lazily on the next note access, so a
// burst of vault edits costs one walk.
func (v *Vault) Watch() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// fsnotify does not recurse, so every subdirectory is registered
	err = filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() != "." && strings.HasPrefix(d.Name(), ".") && path != v.root {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return err
	}

	w := &watcher{fs: fsw, done: make(chan struct{})}
	v.mu.Lock()
	v.watcher = w
	v.mu.Unlock()

	go v.watchLoop(w)
	return nil
}

func (v *Vault) watchLoop(w *watcher) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			v.markStale()
			// new directories need their own watch registration
			if event.Op.Has(fsnotify.Create) {
				_ = w.fs.Add(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			v.logger.Warn().Err(err).Msg("Vault watcher error")
		case <-w.done:
			return
		}
	}
}

func (v *Vault) markStale() {
	v.mu.Lock()
	v.stale = true
	v.mu.Unlock()
}

func (w *watcher) close() error {
	close(w.done)
	return w.fs.Close()
}
