// File system watcher for library roots. External edits to a library (a
// sync client dropping files in, a user deleting a title by hand) invalidate
// the cached catalog metadata and notify the app after a debounce window.

package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher observes one library root and calls onChange after edits settle.
type Watcher struct {
	catalog  *Catalog
	onChange func(paths []string)

	watcher       *fsnotify.Watcher
	changedPaths  map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
}

func NewWatcher(catalog *Catalog, onChange func(paths []string)) *Watcher {
	return &Watcher{
		catalog:       catalog,
		onChange:      onChange,
		changedPaths:  make(map[string]bool),
		debounceDelay: 2 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching the library root and all its subdirectories.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	root := w.catalog.Root()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Files are covered by their parent directory watch.
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	log.Info().Str("library", root).Msg("file watcher started")
	go w.processEvents()
	return nil
}

func (w *Watcher) Stop() error {
	close(w.stopChan)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("file watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod fires when folders are merely opened or read; ignore it.
	if event.Op == fsnotify.Chmod {
		return
	}

	relevant := event.Op&fsnotify.Create != 0 ||
		event.Op&fsnotify.Write != 0 ||
		event.Op&fsnotify.Remove != 0 ||
		event.Op&fsnotify.Rename != 0
	if !relevant {
		return
	}

	info, err := os.Stat(event.Name)
	isDir := err == nil && info.IsDir()
	if event.Op&fsnotify.Create != 0 && isDir {
		w.watcher.Add(event.Name)
	}

	// Metadata edits from outside make the cached libmeta stale.
	switch filepath.Base(event.Name) {
	case libMetaFile, titleDataFile:
		w.catalog.Invalidate()
	}

	w.mu.Lock()
	w.changedPaths[event.Name] = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
	w.mu.Unlock()
}

// flush hands the accumulated paths to the change callback once the library
// has been quiet for the debounce window.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.changedPaths) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.changedPaths))
	for p := range w.changedPaths {
		paths = append(paths, p)
	}
	w.changedPaths = make(map[string]bool)
	w.mu.Unlock()

	w.catalog.Invalidate()
	log.Debug().Int("paths", len(paths)).Msg("library changed on disk")
	if w.onChange != nil {
		w.onChange(paths)
	}
}
