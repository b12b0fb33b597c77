package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MetaFile is the name of the document metadata file.
const MetaFile = "meta.json"

// Meta is a key-path store ("a.b.c") backed by document meta.json. Reads
// and writes are serialized, writes replace the file atomically.
type Meta struct {
	mu    sync.RWMutex
	file  string
	owner *Node
	data  map[string]any
}

func loadMeta(file string, owner *Node) (*Meta, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("document meta data file (%s) could not be opened: %w", file, ErrNotReadable)
	}
	m := &Meta{file: file, owner: owner, data: make(map[string]any)}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.data); err != nil {
		return nil, fmt.Errorf("document meta data (%s) json parse error: %w", file, err)
	}
	if m.data == nil {
		// literal null
		m.data = make(map[string]any)
	}
	return m, nil
}

func (m *Meta) ownerPath() string {
	if m.owner == nil {
		return ""
	}
	return m.owner.RelativePath()
}

func (m *Meta) find(key string) (any, bool) {
	var current any = m.data
	for part := range strings.SplitSeq(key, ".") {
		level, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = level[part]; !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// Get returns value stored under key path.
func (m *Meta) Get(key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.find(key); ok {
		return v, nil
	}
	return nil, fmt.Errorf("document meta(~%s) option '%s': %w", m.ownerPath(), key, ErrMetaKeyNotFound)
}

// Lookup returns value stored under key path or def when absent.
func (m *Meta) Lookup(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.find(key); ok {
		return v
	}
	return def
}

// String returns string value, def is returned when value is absent or of
// a different type.
func (m *Meta) String(key, def string) string {
	if s, ok := m.Lookup(key, def).(string); ok {
		return s
	}
	return def
}

func (m *Meta) Bool(key string, def bool) bool {
	if b, ok := m.Lookup(key, def).(bool); ok {
		return b
	}
	return def
}

func (m *Meta) Slice(key string) []any {
	if s, ok := m.Lookup(key, nil).([]any); ok {
		return s
	}
	return nil
}

func (m *Meta) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.find(key)
	return ok
}

// Set stores value under key path creating intermediate levels and saves
// meta.json. Existing value is replaced only when overwrite is requested.
func (m *Meta) Set(key string, value any, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.find(key); ok && !overwrite {
		return fmt.Errorf("document meta(~%s) option '%s': %w", m.ownerPath(), key, ErrMetaKeyExists)
	}

	data := deepClone(m.data)
	parts := strings.Split(key, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value

	if err := m.save(data); err != nil {
		return fmt.Errorf("document meta(~%s) is not writable: %w: %w", m.ownerPath(), ErrNotReadable, err)
	}
	m.data = data
	return nil
}

func (m *Meta) save(data map[string]any) error {
	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.file), ".meta-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(m.file); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	return os.Rename(tmp.Name(), m.file)
}

// Data returns copy of complete metadata.
func (m *Meta) Data() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepClone(m.data)
}

func (m *Meta) File() string {
	return m.file
}

func deepClone(src map[string]any) map[string]any {
	dst := maps.Clone(src)
	if dst == nil {
		dst = make(map[string]any)
	}
	for k, v := range dst {
		if sub, ok := v.(map[string]any); ok {
			dst[k] = deepClone(sub)
		}
	}
	return dst
}
