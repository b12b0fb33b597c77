package node

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/h2non/filetype"
)

var defaultTypes = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"txt":  "text/plain",
	"css":  "text/css",
	"js":   "text/javascript",
	"avi":  "video/x-msvideo",
	"mpeg": "video/mpeg",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"gif":  "image/gif",
	"ico":  "image/vnd.microsoft.icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
}

// Registry maps resource file extensions to media types. Extensions are
// stored lower-cased and without leading dot.
type Registry struct {
	mu    sync.RWMutex
	types map[string]string
}

// NewRegistry returns registry with default set of supported resources.
func NewRegistry() *Registry {
	return &Registry{types: maps.Clone(defaultTypes)}
}

// Add registers additional extension, replacing existing mapping if any.
func (r *Registry) Add(ext, mediaType string) error {
	ext = normalizeExt(ext)
	if len(ext) == 0 || len(mediaType) == 0 {
		return fmt.Errorf("bad resource type mapping '%s' -> '%s'", ext, mediaType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ext] = mediaType
	return nil
}

// AddAll registers all mappings, usually coming from configuration.
func (r *Registry) AddAll(types map[string]string) error {
	for ext, mt := range types {
		if err := r.Add(ext, mt); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns media type for extension.
func (r *Registry) Lookup(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mt, ok := r.types[normalizeExt(ext)]
	return mt, ok
}

// TypeOf returns media type for the file name using its extension.
func (r *Registry) TypeOf(name string) (string, bool) {
	return r.Lookup(filepath.Ext(name))
}

// Extensions lists all supported extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}

// Sniff detects actual media type of the file by its content. Empty string
// is returned for text formats and anything filetype does not recognize.
func Sniff(path string) (string, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to detect type of '%s': %w", path, err)
	}
	if kind == filetype.Unknown {
		return "", nil
	}
	return kind.MIME.Value, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
