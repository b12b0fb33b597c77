package web

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vbook/publish"
)

// settle is time without new events before books are reloaded.
const settle = 250 * time.Millisecond

// Watcher reloads books on the shelf when their files change.
type Watcher struct {
	shelf *publish.Bookshelf
	fsw   *fsnotify.Watcher
	log   *zap.Logger
}

// NewWatcher starts watching every directory of every book on the shelf.
func NewWatcher(shelf *publish.Bookshelf, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{shelf: shelf, fsw: fsw, log: log}
	for _, index := range shelf.Indexes() {
		book, err := shelf.Book(index)
		if err != nil {
			continue
		}
		w.addTree(book.Path())
	}
	return w, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Debug("Unable to watch directory", zap.String("path", p), zap.Error(err))
		}
		return nil
	})
}

// Run processes file system events until context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if hidden(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addTree(ev.Name)
				}
			}
			w.log.Debug("Book file changed", zap.Stringer("event", ev))
			reload = time.After(settle)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", zap.Error(err))
		case <-reload:
			reload = nil
			if err := w.shelf.Reload(); err != nil {
				w.log.Warn("Unable to reload books", zap.Error(err))
				continue
			}
			w.log.Info("Books reloaded")
		}
	}
}
