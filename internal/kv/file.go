package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/logging"
)

// File keeps every key in one JSON object on disk. A watcher reloads the
// file when another process rewrites it; the last writer wins.
type File struct {
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	data    map[string]string
	watcher *fsnotify.Watcher
	done    chan struct{}

	listenersMu sync.Mutex
	listeners   []func(key string)
}

// NewFile opens the store backed by path, creating its directory if needed
func NewFile(path string, logger *zap.Logger) (*File, error) {
	if path == "" {
		path = "cropguard.json"
	}
	path = filepath.Clean(path)
	logger = logging.OrNop(logger)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f := &File{
		path:   path,
		logger: logger,
		data:   make(map[string]string),
		done:   make(chan struct{}),
	}

	data, err := f.readDisk()
	if err != nil {
		logger.Warn("Ignoring unreadable store file", zap.String("path", path), zap.Error(err))
	} else {
		f.data = data
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Could not create file watcher", zap.Error(err))
		close(f.done)
		return f, nil
	}
	// Watch the directory: atomic renames replace the watched inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Could not watch data directory", zap.String("dir", filepath.Dir(path)), zap.Error(err))
		watcher.Close()
		close(f.done)
		return f, nil
	}
	f.watcher = watcher
	go f.watch()

	return f, nil
}

// OnChange registers fn to be called with each key changed by an
// external write
func (f *File) OnChange(fn func(key string)) {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.data == nil {
		return "", false, ErrClosed
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return ErrClosed
	}
	next := make(map[string]string, len(f.data)+1)
	for k, v := range f.data {
		next[k] = v
	}
	next[key] = value
	if err := f.writeDisk(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return ErrClosed
	}
	if _, ok := f.data[key]; !ok {
		return nil
	}
	next := make(map[string]string, len(f.data))
	for k, v := range f.data {
		if k != key {
			next[k] = v
		}
	}
	if err := f.writeDisk(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

// Close stops the watcher and waits for it to exit
func (f *File) Close() error {
	var err error
	if f.watcher != nil {
		err = f.watcher.Close()
	}
	<-f.done

	f.mu.Lock()
	f.data = nil
	f.mu.Unlock()
	return err
}

func (f *File) readDisk() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return make(map[string]string), nil
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) writeDisk(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) watch() {
	defer close(f.done)
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) {
				f.reload()
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file and notifies listeners of keys whose value
// differs from memory. Our own writes leave memory equal to disk, so they
// produce no notifications.
func (f *File) reload() {
	f.mu.Lock()
	if f.data == nil {
		f.mu.Unlock()
		return
	}
	data, err := f.readDisk()
	if err != nil {
		f.mu.Unlock()
		// Likely a partial write from another process; the next event retries.
		f.logger.Debug("Skipping reload", zap.String("path", f.path), zap.Error(err))
		return
	}
	var changed []string
	for k, v := range data {
		if old, ok := f.data[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range f.data {
		if _, ok := data[k]; !ok {
			changed = append(changed, k)
		}
	}
	f.data = data
	f.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	f.listenersMu.Lock()
	listeners := append([]func(string){}, f.listeners...)
	f.listenersMu.Unlock()

	for _, key := range changed {
		f.logger.Debug("Key changed on disk", zap.String("key", key))
		for _, fn := range listeners {
			fn(key)
		}
	}
}
