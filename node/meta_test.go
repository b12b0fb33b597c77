package node

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMeta_Get(t *testing.T) {
	dir := makeDocument(t, filepath.Join(t.TempDir(), "doc"), `{
		"title": "Book",
		"tocPage": true,
		"favorites": [{"link": "/x", "caption": "X"}],
		"epub": {"cover": {"width": 100}},
		"empty": null
	}`)
	n, err := NewTree(nil, nil).Resolve(dir)
	if err != nil {
		t.Fatal(err)
	}
	m, err := n.Meta()
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}

	if v, err := m.Get("epub.cover.width"); err != nil || v != float64(100) {
		t.Errorf("Get(epub.cover.width) = %v, %v", v, err)
	}
	if _, err := m.Get("epub.cover.height"); !errors.Is(err, ErrMetaKeyNotFound) {
		t.Errorf("Get() for missing key error = %v", err)
	}
	if _, err := m.Get("title.sub"); !errors.Is(err, ErrMetaKeyNotFound) {
		t.Errorf("Get() through scalar error = %v", err)
	}
	if m.Has("empty") {
		t.Error("null value must be treated as absent")
	}
	if got := m.Lookup("missing", "def"); got != "def" {
		t.Errorf("Lookup() = %v", got)
	}
	if got := m.String("title", ""); got != "Book" {
		t.Errorf("String() = %v", got)
	}
	if got := m.String("tocPage", "x"); got != "x" {
		t.Errorf("String() on bool = %v", got)
	}
	if !m.Bool("tocPage", false) {
		t.Error("Bool(tocPage) = false")
	}
	if got := len(m.Slice("favorites")); got != 1 {
		t.Errorf("Slice() len = %d", got)
	}
	if m.File() != filepath.Join(dir, MetaFile) {
		t.Errorf("File() = %s", m.File())
	}
}

func TestMeta_Set(t *testing.T) {
	dir := makeDocument(t, filepath.Join(t.TempDir(), "doc"), `{"title": "Book"}`)
	tree := NewTree(nil, nil)
	n, _ := tree.Resolve(dir)
	m, err := n.Meta()
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Set("title", "Other", false); !errors.Is(err, ErrMetaKeyExists) {
		t.Errorf("Set() without overwrite error = %v", err)
	}
	if err := m.Set("title", "Other", true); err != nil {
		t.Errorf("Set() with overwrite error = %v", err)
	}
	if err := m.Set("a.b.c", "deep", false); err != nil {
		t.Fatalf("Set() nested error = %v", err)
	}

	// read back through fresh node
	again, err := tree.Rebuild(dir)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := again.Meta()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"title": "Other",
		"a":     map[string]any{"b": map[string]any{"c": "deep"}},
	}
	if got := m2.Data(); !reflect.DeepEqual(got, want) {
		t.Errorf("Data() after rebuild = %v, want %v", got, want)
	}
}

func TestMeta_SetReadOnly(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := makeDocument(t, filepath.Join(t.TempDir(), "doc"), `{}`)
	n, _ := NewTree(nil, nil).Resolve(dir)
	m, err := n.Meta()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	if err := m.Set("x", 1, false); !errors.Is(err, ErrNotReadable) {
		t.Errorf("Set() on read only directory error = %v", err)
	}
	if m.Has("x") {
		t.Error("failed Set() must not change values")
	}
}

func TestMeta_Invalid(t *testing.T) {
	dir := makeDocument(t, filepath.Join(t.TempDir(), "doc"), `{broken`)
	n, err := NewTree(nil, nil).Resolve(dir)
	if err != nil {
		t.Fatalf("broken meta must not prevent classification: %v", err)
	}
	if _, err := n.Meta(); err == nil {
		t.Error("Meta() expected parse error")
	}
	// display name falls back to directory name
	if n.DisplayName() != "Doc" {
		t.Errorf("DisplayName() = %s", n.DisplayName())
	}
}
