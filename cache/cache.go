// Package cache keeps rendered pages between requests.
package cache

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vbook/config"
)

// ErrCacheDir is returned when cache location is not usable.
var ErrCacheDir = errors.New("cache directory must exist and be writable")

// Cache stores rendered pages by key. Implementations are safe for concurrent
// use.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, data []byte) error
	Delete(key string) error
	Has(key string) bool
	// ModTime returns time entry was stored.
	ModTime(key string) (time.Time, bool)
	Clear() error
	Close() error
}

// New returns cache for configured backend, nil when caching is off.
func New(cfg *config.CacheConfig, log *zap.Logger) (Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var (
		c   Cache
		err error
	)
	switch cfg.Backend {
	case config.CacheBackendNone:
		return nil, nil
	case config.CacheBackendFile:
		c, err = NewFile(cfg.Directory, log.Named("cache"))
	case config.CacheBackendSqlite:
		c, err = NewSQLite(cfg.Directory, log.Named("cache"))
	default:
		return nil, fmt.Errorf("cache backend '%s': %w", cfg.Backend, config.ErrInvalidCacheBackend)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
