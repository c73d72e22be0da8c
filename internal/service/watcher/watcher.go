package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nowm/servelat-build/internal/config"
	"github.com/nowm/servelat-build/internal/logger"
)

// DefaultDebounce collapses bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

var errNoBuild = errors.New("build function is not set")

// skippedDirs are directory names never descended into when watching a tree.
//
//nolint:gochecknoglobals // Read-only lookup table.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
}

// Options controls what is watched and what runs on change.
type Options struct {
	// Paths are files or directories to watch. Directories are watched recursively.
	Paths []string
	// Ignore lists files and directories whose events never trigger a rebuild.
	Ignore []string
	// Debounce is the quiet period before a rebuild starts.
	Debounce time.Duration
	// Build runs one full build. Its errors are logged, not returned.
	Build func(ctx context.Context) error
}

// watcher holds the fsnotify handle and the filters derived from Options.
type watcher struct {
	fs       *fsnotify.Watcher
	dirs     []string
	files    map[string]struct{}
	ignore   []string
	debounce time.Duration
	build    func(ctx context.Context) error
}

// Run builds once and then rebuilds after every relevant change until ctx is done.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "watcher")

	if opts.Build == nil {
		return errNoBuild
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	defer func() {
		_ = fsWatcher.Close()
	}()

	w := &watcher{
		fs:       fsWatcher,
		files:    make(map[string]struct{}),
		debounce: opts.Debounce,
		build:    opts.Build,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	for _, dir := range opts.Ignore {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return fmt.Errorf("resolve ignored path: %w", absErr)
		}

		w.ignore = append(w.ignore, abs)
	}

	for _, path := range opts.Paths {
		if err = w.add(ctx, path); err != nil {
			return err
		}
	}

	w.rebuild(ctx)

	return w.loop(ctx)
}

// add registers a file (through its parent directory) or a directory tree.
func (w *watcher) add(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watched path: %w", err)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Watched path does not exist", "path", abs)
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat %s: %w", abs, err)
	}

	if !info.IsDir() {
		w.files[abs] = struct{}{}

		if err = w.fs.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
		}

		return nil
	}

	w.dirs = append(w.dirs, abs)

	return w.addTree(ctx, abs)
}

// addTree watches dir and every directory below it, except ignored and skipped ones.
func (w *watcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if w.ignored(path) {
			return filepath.SkipDir
		}

		if _, skip := skippedDirs[entry.Name()]; skip {
			logger.DebugKV(ctx, "Skipping directory", "path", path)
			return filepath.SkipDir
		}

		logger.DebugKV(ctx, "Watching directory", "path", path)

		if err = w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		return nil
	})
}

// loop dispatches fsnotify events and fires the debounced rebuild.
func (w *watcher) loop(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Stopping watcher")
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}

			if !w.relevant(event) {
				continue
			}

			logger.DebugKV(ctx, "Change detected", "file", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				w.watchCreatedDir(ctx, event.Name)
			}

			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "File watcher error", "error", err)
		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

// rebuild runs the build and logs its outcome.
func (w *watcher) rebuild(ctx context.Context) {
	if err := w.build(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}

		logger.ErrorKV(ctx, "Build failed, waiting for changes", "error", err)

		return
	}

	logger.Info(ctx, "Build finished, waiting for changes")
}

// watchCreatedDir starts watching a directory created inside a watched tree.
func (w *watcher) watchCreatedDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	if err = w.addTree(ctx, path); err != nil {
		logger.WarnKV(ctx, "Unable to watch new directory", "path", path, "error", err)
	}
}

// relevant filters events down to watched files and trees outside ignored directories.
func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)
	if w.ignored(name) {
		return false
	}

	if _, ok := w.files[name]; ok {
		return true
	}

	for _, dir := range w.dirs {
		if config.Within(name, dir) {
			return true
		}
	}

	return false
}

func (w *watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if config.Within(path, dir) {
			return true
		}
	}

	return false
}
