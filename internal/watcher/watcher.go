// Package watcher imports HTML exports dropped into a directory tree.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPattern matches HTML exports at any depth.
const DefaultPattern = "**/*.{html,htm}"

// ImportFunc ingests one file. Errors are logged and do not stop the watcher.
type ImportFunc func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir      string
	Pattern  string
	Debounce time.Duration
	// Initial imports files already present when Run starts.
	Initial bool
}

// Watcher debounces fsnotify events and imports matching files one at a time.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	log     *zap.Logger
	handle  ImportFunc
	pending map[string]time.Time
	hashes  map[string]string
}

// New creates a Watcher for cfg.Dir. The directory must exist.
func New(cfg Config, handle ImportFunc, log *zap.Logger) (*Watcher, error) {
	if handle == nil {
		return nil, errors.New("import func is required")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, doublestar.ErrBadPattern
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("watch path is not a directory: " + cfg.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		log:     log,
		handle:  handle,
		pending: make(map[string]time.Time),
		hashes:  make(map[string]string),
	}, nil
}

// Run watches until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.cfg.Dir); err != nil {
		return err
	}
	if w.cfg.Initial {
		w.importExisting(ctx)
	}
	w.log.Info("watcher started",
		zap.String("dir", w.cfg.Dir),
		zap.String("pattern", w.cfg.Pattern),
		zap.Duration("debounce", w.cfg.Debounce))

	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// Match reports whether path, relative to the watched directory, matches the pattern.
func (w *Watcher) Match(path string) bool {
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return doublestar.MatchUnvalidated(w.cfg.Pattern, filepath.ToSlash(rel))
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("watch directory failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) importExisting(ctx context.Context) {
	matches, err := doublestar.Glob(os.DirFS(w.cfg.Dir), w.cfg.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		w.log.Error("initial scan failed", zap.Error(err))
		return
	}
	for _, rel := range matches {
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, filepath.Join(w.cfg.Dir, filepath.FromSlash(rel)))
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			delete(w.pending, ev.Name)
			delete(w.hashes, ev.Name)
		}
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !hidden(filepath.Base(ev.Name)) {
				if err := w.addRecursive(ev.Name); err != nil {
					w.log.Warn("watch new directory failed", zap.String("path", ev.Name), zap.Error(err))
				}
			}
			return
		}
	}

	if !w.Match(ev.Name) {
		return
	}
	w.pending[ev.Name] = time.Now()
}

// flush imports files whose last event is older than the debounce window.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, seen := range w.pending {
		if now.Sub(seen) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, path)
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("read watched file failed", zap.String("path", path), zap.Error(err))
		return
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if w.hashes[path] == hash {
		return
	}

	if err := w.handle(ctx, path); err != nil {
		w.log.Error("import failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.hashes[path] = hash
	w.log.Info("imported", zap.String("path", path))
}
