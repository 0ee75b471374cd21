package freeze

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the freeze state in a yaml file so that separate processes
// (the CLI and a running server) share it. Once Watch is running, reads are
// served from memory and refreshed whenever the file changes.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	cached   State
	watching bool
}

// NewFileStore creates a store backed by path. The file need not exist yet.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// State implements Store.
func (f *FileStore) State(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	f.mu.RLock()
	if f.watching {
		s := f.cached
		f.mu.RUnlock()
		return s, nil
	}
	f.mu.RUnlock()
	return f.load()
}

// Set implements Store. The file is replaced atomically.
func (f *FileStore) Set(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode freeze state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create freeze directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".freeze-*")
	if err != nil {
		return fmt.Errorf("write freeze state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write freeze state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write freeze state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write freeze state: %w", err)
	}

	f.mu.Lock()
	f.cached = s
	f.mu.Unlock()
	return nil
}

func (f *FileStore) load() (State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read freeze state: %w", err)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode freeze state: %w", err)
	}
	return s, nil
}

// Watch serves reads from memory and reloads the file on change until ctx
// is done. It blocks; run it in its own goroutine. ready, if non-nil, is
// closed once the watcher is installed.
func (f *FileStore) Watch(ctx context.Context, ready chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create freeze watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: Set replaces the file by rename.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create freeze directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := f.reload(); err != nil {
		return err
	}
	f.mu.Lock()
	f.watching = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.watching = false
		f.mu.Unlock()
	}()

	if ready != nil {
		close(ready)
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if err := f.reload(); err != nil {
				f.logger.Warn("Failed to reload freeze state", "path", f.path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("Freeze watcher error", "path", f.path, "error", err)
		}
	}
}

func (f *FileStore) reload() error {
	s, err := f.load()
	if err != nil {
		return err
	}
	f.mu.Lock()
	changed := f.cached.Frozen != s.Frozen
	f.cached = s
	f.mu.Unlock()
	if changed {
		f.logger.Info("Freeze state changed on disk", "path", f.path, "frozen", s.Frozen)
	}
	return nil
}
