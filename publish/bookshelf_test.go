package publish

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"vbook/node"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func writeFile(t *testing.T, name, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func makeBook(t *testing.T, dirs ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range append([]string{""}, dirs...) {
		writeFile(t, filepath.Join(root, dir, "content.xhtml"), "<p/>")
		writeFile(t, filepath.Join(root, dir, node.MetaFile), "{}")
	}
	return root
}

func TestBookshelf_AddBook(t *testing.T) {
	shelf := NewBookshelf(nil, setupTestLogger(t))
	path := makeBook(t, "chapter")

	book, err := shelf.AddBook("manual", path)
	if err != nil {
		t.Fatalf("AddBook: %v", err)
	}
	if !book.IsBook() {
		t.Errorf("%s is not a book", book)
	}
	if got := book.URIOffset(); got != "/manual" {
		t.Errorf("uri offset = %q", got)
	}
	ch, err := book.Child("chapter")
	if err != nil {
		t.Fatal(err)
	}
	if got := ch.URI(); got != "/manual/chapter" {
		t.Errorf("chapter uri = %q", got)
	}

	got, err := shelf.Book("manual")
	if err != nil || got != book {
		t.Errorf("Book(manual) = %v, %v", got, err)
	}
	if !shelf.Has("manual") || shelf.Has("other") {
		t.Error("Has reports wrong books")
	}
	if _, err := shelf.Book("other"); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestBookshelf_AddBookErrors(t *testing.T) {
	shelf := NewBookshelf(nil, setupTestLogger(t))
	path := makeBook(t, "chapter")

	tests := []struct {
		name    string
		index   string
		path    string
		wantErr error
	}{
		{"bad index", "a/b", path, node.ErrInvalidPath},
		{"missing", "x", filepath.Join(path, "nope"), node.ErrInvalidPath},
		{"not a document", "x", t.TempDir(), node.ErrNotADocument},
		{"inside book", "x", filepath.Join(path, "chapter"), node.ErrStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shelf.AddBook(tt.index, tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if len(shelf.Indexes()) != 0 {
		t.Errorf("failed books on the shelf: %v", shelf.Indexes())
	}
}

func TestBookshelf_Indexes(t *testing.T) {
	shelf := NewBookshelf(nil, setupTestLogger(t))
	for _, index := range []string{"book10", "book2", "alpha", "book1"} {
		if _, err := shelf.AddBook(index, makeBook(t)); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"alpha", "book1", "book2", "book10"}
	if got := shelf.Indexes(); !slices.Equal(got, want) {
		t.Errorf("Indexes() = %v, want %v", got, want)
	}
}

func TestBookshelf_Reload(t *testing.T) {
	shelf := NewBookshelf(nil, setupTestLogger(t))
	path := makeBook(t)
	old, err := shelf.AddBook("b", path)
	if err != nil {
		t.Fatal(err)
	}
	if len(old.Children()) != 0 {
		t.Fatal("unexpected children")
	}

	writeFile(t, filepath.Join(path, "new", "content.xhtml"), "<p/>")
	writeFile(t, filepath.Join(path, "new", node.MetaFile), "{}")
	if err := shelf.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	book, _ := shelf.Book("b")
	if book == old {
		t.Error("book node was not replaced")
	}
	if len(book.Children()) != 1 {
		t.Errorf("new document not found after reload")
	}
	if book.URIOffset() != "/b" {
		t.Errorf("offset lost: %q", book.URIOffset())
	}

	if err := os.RemoveAll(path); err != nil {
		t.Fatal(err)
	}
	if err := shelf.Reload(); err == nil {
		t.Error("expected error for removed book")
	}
	if got, _ := shelf.Book("b"); got != book {
		t.Error("failed reload replaced the book")
	}
}

func TestOptions_Excluded(t *testing.T) {
	opts := Options{Exclude: []string{"/b/drafts"}}
	if !opts.Excluded("/b/drafts") || opts.Excluded("/b/drafts/x") {
		t.Error("wrong exclusion")
	}
}

func TestWriteToc(t *testing.T) {
	path := makeBook(t, "01-intro", "02-usage", filepath.Join("02-usage", "01-install"))
	writeFile(t, filepath.Join(path, "02-usage", "shot.png"), "\x89PNG\r\n\x1a\nshot")
	writeFile(t, filepath.Join(path, node.MetaFile), `{"title": "Manual"}`)

	shelf := NewBookshelf(nil, setupTestLogger(t))
	book, err := shelf.AddBook("", path)
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := WriteToc(&sb, book, true); err != nil {
		t.Fatalf("WriteToc: %v", err)
	}
	want := "Manual (/)\n" +
		"  01 Intro (/01-intro)\n" +
		"  02 Usage (/02-usage)\n" +
		"    - shot.png [image/png]\n" +
		"    01 Install (/02-usage/01-install)\n"
	if got := sb.String(); got != want {
		t.Errorf("WriteToc() =\n%s\nwant\n%s", got, want)
	}

	sb.Reset()
	if err := WriteToc(&sb, book, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sb.String(), "shot.png") {
		t.Errorf("resources must not be listed:\n%s", sb.String())
	}
}
