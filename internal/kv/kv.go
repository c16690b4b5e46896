// Package kv provides the string key-value media that scan history is
// persisted in.
package kv

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrQuotaExceeded is returned when a write would exceed a store's quota
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("kv: store closed")

// Store is a string key-value medium
type Store interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by stores that can observe writes made by other
// processes sharing the same medium.
type Watcher interface {
	OnChange(fn func(key string))
}

// Config selects and configures a backend
type Config struct {
	Backend    string `json:"backend" yaml:"backend"` // "sqlite", "file" or "memory"
	Path       string `json:"path" yaml:"path"`
	QuotaBytes int    `json:"quota_bytes" yaml:"quota_bytes"` // memory backend only
}

// Open creates the backend named by cfg.Backend
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "file":
		return NewFile(cfg.Path, logger)
	case "memory":
		return NewMemory(cfg.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
