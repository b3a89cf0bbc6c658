package compiler

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one recompilation triggered by the watcher.
type Change struct {
	Module string
	Err    error
}

// Watcher recompiles templates under the compiler root when their files
// change.
type Watcher struct {
	compiler *Compiler
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(Change)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher. onChange is called after every rebuild
// and may run concurrently with itself for different modules.
func NewWatcher(c *Compiler, debounce time.Duration, onChange func(Change)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		compiler: c,
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		pending:  map[string]*time.Timer{},
	}, nil
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if err := w.watchDirRecursive(w.compiler.opts.Root); err != nil {
		return err
	}
	w.compiler.opts.Log.Info("watching", map[string]any{"root": w.compiler.opts.Root})

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.compiler.opts.Log.Error("watcher error", map[string]any{"error": err.Error()})
		}
	}
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		// new directories are watched too
		if err := w.watchDirRecursive(event.Name); err != nil {
			w.compiler.opts.Log.Warn("cannot watch", map[string]any{"path": event.Name, "error": err.Error()})
		}
	}
	if filepath.Ext(event.Name) != Ext {
		return
	}
	module := w.compiler.ModuleName(event.Name)
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.compiler.Invalidate(module)
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	// editors write a file in several steps; rebuild once they settle
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[module]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[module] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, module)
		w.mu.Unlock()
		w.rebuild(ctx, module)
	})
}

func (w *Watcher) rebuild(ctx context.Context, module string) {
	if ctx.Err() != nil {
		return
	}
	w.compiler.Invalidate(module)
	_, err := w.compiler.Load(ctx, module)
	if err != nil {
		w.compiler.opts.Log.Error("rebuild failed", map[string]any{"module": module, "error": err.Error()})
	} else {
		w.compiler.opts.Log.Info("rebuilt", map[string]any{"module": module})
	}
	if w.onChange != nil {
		w.onChange(Change{Module: module, Err: err})
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for m, t := range w.pending {
		t.Stop()
		delete(w.pending, m)
	}
}
