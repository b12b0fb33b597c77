package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const fileSuffix = ".cache"

// File keeps every entry in its own file named after sha1 of the key.
type File struct {
	dir string
	log *zap.Logger
}

// NewFile returns file cache in existing writable directory dir.
func NewFile(dir string, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	return &File{dir: dir, log: log}, nil
}

func checkDir(dir string) error {
	if len(dir) == 0 {
		return fmt.Errorf("no directory: %w", ErrCacheDir)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("'%s': %w: %w", dir, ErrCacheDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("'%s' is not a directory: %w", dir, ErrCacheDir)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("'%s': %w: %w", dir, ErrCacheDir, err)
	}
	return multierr.Combine(f.Close(), os.Remove(f.Name()))
}

func (c *File) file(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+fileSuffix)
}

func (c *File) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("unable to read cache entry: %w", err)
	}
	return data, true, nil
}

func (c *File) Set(key string, data []byte) error {
	f, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("unable to create cache entry: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return multierr.Combine(fmt.Errorf("unable to write cache entry: %w", err), f.Close(), os.Remove(f.Name()))
	}
	if err := f.Close(); err != nil {
		return multierr.Combine(fmt.Errorf("unable to write cache entry: %w", err), os.Remove(f.Name()))
	}
	if err := os.Rename(f.Name(), c.file(key)); err != nil {
		return multierr.Combine(fmt.Errorf("unable to store cache entry: %w", err), os.Remove(f.Name()))
	}
	c.log.Debug("Cache entry stored", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

func (c *File) Delete(key string) error {
	if err := os.Remove(c.file(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to delete cache entry: %w", err)
	}
	return nil
}

func (c *File) Has(key string) bool {
	_, err := os.Stat(c.file(key))
	return err == nil
}

func (c *File) ModTime(key string) (time.Time, bool) {
	fi, err := os.Stat(c.file(key))
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// Clear removes cache entries, other files in the directory are left alone.
func (c *File) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("unable to read cache directory: %w", err)
	}
	var errs error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		errs = multierr.Append(errs, os.Remove(filepath.Join(c.dir, e.Name())))
	}
	return errs
}

func (c *File) Close() error {
	return nil
}
