package web

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vbook/node"
	"vbook/publish"
)

func TestWatcher_ReloadsBooks(t *testing.T) {
	log := setupTestLogger(t)
	path := makeBook(t)
	shelf := publish.NewBookshelf(nil, log)
	if _, err := shelf.AddBook("guide", path); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(shelf, log)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	writeFile(t, filepath.Join(path, "04-new", "content.xhtml"), "<p>New</p>")
	writeFile(t, filepath.Join(path, "04-new", node.MetaFile), "{}")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		book, err := shelf.Book("guide")
		if err != nil {
			t.Fatal(err)
		}
		if len(book.Children()) == 4 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("new document did not appear after change")
}
