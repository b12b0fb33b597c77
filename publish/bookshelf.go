package publish

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"vbook/node"
)

type shelfEntry struct {
	path string
	book *node.Node
}

// Bookshelf keeps books by index. Every book gets URI offset "/index", so
// links produced by its nodes are absolute for the web. Safe for concurrent
// use.
type Bookshelf struct {
	tree *node.Tree
	log  *zap.Logger

	mu    sync.RWMutex
	books map[string]shelfEntry
}

func NewBookshelf(tree *node.Tree, log *zap.Logger) *Bookshelf {
	if log == nil {
		log = zap.NewNop()
	}
	if tree == nil {
		tree = node.NewTree(nil, log.Named("node"))
	}
	return &Bookshelf{tree: tree, log: log, books: make(map[string]shelfEntry)}
}

// Tree returns node tree books are loaded from.
func (b *Bookshelf) Tree() *node.Tree {
	return b.tree
}

func load(tree *node.Tree, index, path string) (*node.Node, error) {
	book, err := tree.LoadBook(path)
	if err != nil {
		return nil, err
	}
	offset := ""
	if len(index) > 0 {
		offset = "/" + index
	}
	if err := book.SetURIOffset(offset); err != nil {
		return nil, err
	}
	return book, nil
}

// AddBook loads book at path and puts it on the shelf, replacing book with
// the same index. Empty index is allowed and leaves links without offset.
func (b *Bookshelf) AddBook(index, path string) (*node.Node, error) {
	if strings.ContainsAny(index, `/\?#`) {
		return nil, fmt.Errorf("book index '%s' can not contain path or query separators: %w", index, node.ErrInvalidPath)
	}
	book, err := load(b.tree, index, path)
	if err != nil {
		return nil, fmt.Errorf("unable to add book '%s': %w", index, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.books[index] = shelfEntry{path: book.Path(), book: book}

	b.log.Debug("Book added", zap.String("index", index), zap.String("path", book.Path()))
	for _, d := range book.Detached() {
		b.log.Warn("Book has detached document", zap.String("index", index), zap.String("path", d.Path()))
	}
	return book, nil
}

// Book returns book by index.
func (b *Bookshelf) Book(index string) (*node.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.books[index]
	if !ok {
		return nil, fmt.Errorf("book '%s': %w", index, ErrBookNotFound)
	}
	return e.book, nil
}

func (b *Bookshelf) Has(index string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.books[index]
	return ok
}

// Indexes returns book indexes in natural order ("book2" before "book10").
func (b *Bookshelf) Indexes() []string {
	b.mu.RLock()
	indexes := make([]string, 0, len(b.books))
	for index := range b.books {
		indexes = append(indexes, index)
	}
	b.mu.RUnlock()

	sort.Sort(natural.StringSlice(indexes))
	return indexes
}

// Reload forgets every node of the tree and loads all books again. Books
// failing to load keep their previous nodes.
func (b *Bookshelf) Reload() error {
	b.tree.Reset()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error
	for index, e := range b.books {
		book, err := load(b.tree, index, e.path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unable to reload book '%s': %w", index, err))
			continue
		}
		b.books[index] = shelfEntry{path: e.path, book: book}
	}
	b.log.Debug("Books reloaded", zap.Int("count", len(b.books)), zap.Error(errs))
	return errs
}
