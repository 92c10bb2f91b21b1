// Package reload keeps the station configuration current while the station
// runs. Edits to the config file are picked up without a restart; a file
// that fails to parse leaves the previous configuration in place.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/packingline/internal/config"
)

const defaultDebounce = 500 * time.Millisecond

// Snapshot is one loaded configuration and the hash of its file.
type Snapshot struct {
	Config *config.Config
	Hash   string
}

// Reloader watches the config file and swaps in new snapshots.
type Reloader struct {
	path     string
	watcher  *fsnotify.Watcher
	current  atomic.Pointer[Snapshot]
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	onReload []func(*Snapshot)
}

// New loads path and prepares a watcher on its directory. Watching the
// directory catches editors that replace the file instead of writing it.
func New(path string, logger *zap.Logger) (*Reloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, hash, err := config.LoadConfigWithHash(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	r := &Reloader{
		path:     path,
		watcher:  watcher,
		logger:   logger.Named("reload"),
		debounce: defaultDebounce,
	}
	r.current.Store(&Snapshot{Config: cfg, Hash: hash})
	return r, nil
}

// Current returns the active snapshot.
func (r *Reloader) Current() *Snapshot {
	return r.current.Load()
}

// Config returns the active configuration and its hash.
func (r *Reloader) Config() (*config.Config, string) {
	snap := r.current.Load()
	return snap.Config, snap.Hash
}

// OnReload registers fn to run after each successful reload.
func (r *Reloader) OnReload(fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// Reload reads the config file now. On error the active snapshot is kept.
func (r *Reloader) Reload() error {
	cfg, hash, err := config.LoadConfigWithHash(r.path)
	if err != nil {
		return err
	}
	if prev := r.current.Load(); prev != nil && prev.Hash == hash {
		return nil
	}
	snap := &Snapshot{Config: cfg, Hash: hash}
	r.current.Store(snap)

	r.mu.Lock()
	hooks := append([]func(*Snapshot){}, r.onReload...)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(snap)
	}
	return nil
}

// Run watches for file changes and reloads the config. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer func() { _ = r.watcher.Close() }()

	// Debounce: wait after the last write before reloading
	var debounce *time.Timer
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, func() {
					if err := r.Reload(); err != nil {
						r.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
						return
					}
					r.logger.Info("config reloaded", zap.String("hash", r.Current().Hash))
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
