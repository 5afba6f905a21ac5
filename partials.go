package stache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ----------------------------- Partials -------------------------------------

// PartialLoader returns the source of the partial with the given name.
type PartialLoader interface {
	Partial(name string) (string, bool)
}

// MapPartials is an in-memory partial set.
type MapPartials map[string]string

func (m MapPartials) Partial(name string) (string, bool) {
	src, ok := m[name]
	return src, ok
}

// DirPartials serves partials from the files of one directory. A file
// "header.tpl" or "_header.tpl" is served as "header"; the plain name wins
// when both exist.
type DirPartials struct {
	dir    string
	exts   []string
	logger *slog.Logger

	mu    sync.RWMutex
	files map[string]string
}

// NewDirPartials loads every file in dir whose extension is one of exts
// (".tpl", ".mustache" and ".html" when none are given).
func NewDirPartials(dir string, exts ...string) (*DirPartials, error) {
	if len(exts) == 0 {
		exts = []string{".tpl", ".mustache", ".html"}
	}
	d := &DirPartials{
		dir:    dir,
		exts:   exts,
		logger: slog.Default(),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetLogger sets the logger used to report reloads.
func (d *DirPartials) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

func (d *DirPartials) Partial(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	src, ok := d.files[name]
	return src, ok
}

// Names returns the loaded partial names in sorted order.
func (d *DirPartials) Names() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.files))
	for n := range d.files {
		names = append(names, n)
	}
	d.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Reload rereads the directory and swaps the partial set in one step.
func (d *DirPartials) Reload() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("reading partials directory %q: %w", d.dir, err)
	}

	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := d.partialName(entry.Name())
		if !ok {
			continue
		}
		if _, seen := files[name]; seen && strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading partial %q: %w", entry.Name(), err)
		}
		files[name] = string(data)
	}

	d.mu.Lock()
	d.files = files
	d.mu.Unlock()
	d.logger.Debug("partials loaded", "dir", d.dir, "count", len(files))
	return nil
}

func (d *DirPartials) partialName(file string) (string, bool) {
	ext := filepath.Ext(file)
	if !slices.Contains(d.exts, ext) {
		return "", false
	}
	name := strings.TrimPrefix(strings.TrimSuffix(file, ext), "_")
	return name, name != ""
}

// Watch reloads the partial set whenever a matching file in the directory
// changes. It blocks until ctx is done or the watcher fails.
func (d *DirPartials) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(d.dir); err != nil {
		return fmt.Errorf("watching %q: %w", d.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, match := d.partialName(filepath.Base(ev.Name)); !match {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := d.Reload(); err != nil {
				d.logger.Error("partials reload failed", "dir", d.dir, "err", err)
				continue
			}
			d.logger.Info("partials reloaded", "dir", d.dir, "trigger", filepath.Base(ev.Name), "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %q: %w", d.dir, err)
		}
	}
}
