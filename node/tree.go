// Package node classifies directories and files of a book into documents
// and resources and walks the resulting tree.
package node

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ContentPrefix starts the name of the document content file.
const ContentPrefix = "content."

type classification struct {
	kind    Kind
	content string
	err     error
}

// Tree is the identity cache of nodes and the index of classification
// results. A path maps to at most one Node until it is rebuilt or the tree is
// reset. Safe for concurrent use.
type Tree struct {
	log   *zap.Logger
	types *Registry

	mu    sync.Mutex
	nodes map[string]*Node
	index map[string]classification
}

// NewTree creates empty tree. When types is nil default registry is used.
func NewTree(types *Registry, log *zap.Logger) *Tree {
	if types == nil {
		types = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tree{
		log:   log,
		types: types,
		nodes: make(map[string]*Node),
		index: make(map[string]classification),
	}
}

// Types returns resource registry used for classification.
func (t *Tree) Types() *Registry {
	return t.types
}

// Resolve returns node for the path, creating it on first request.
func (t *Tree) Resolve(path string) (*Node, error) {
	return t.resolve(path, false)
}

// Rebuild classifies path again, replacing cached node (if any) with a fresh
// one. Previously returned node is not changed.
func (t *Tree) Rebuild(path string) (*Node, error) {
	return t.resolve(path, true)
}

// Reset forgets every node and classification result.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.nodes)
	clear(t.index)
	t.log.Debug("Node tree reset")
}

func (t *Tree) resolve(path string, rebuild bool) (*Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("path '%s' can not be identified as a node: %w", path, ErrInvalidPath)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if rebuild {
		delete(t.nodes, abs)
		delete(t.index, abs)
	} else if n, ok := t.nodes[abs]; ok {
		return n, nil
	}

	c, ok := t.index[abs]
	if !ok {
		c = t.classify(abs)
		t.index[abs] = c
	}
	if c.err != nil {
		return nil, c.err
	}

	n := &Node{tree: t, path: abs, kind: c.kind, content: c.content}
	t.nodes[abs] = n
	return n, nil
}

// classify decides what the path is without creating node.
func (t *Tree) classify(abs string) classification {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return classification{err: fmt.Errorf("path '%s' can not be identified as a node: %w", abs, ErrInvalidPath)}
		}
		return classification{err: fmt.Errorf("path '%s' can not be identified as a node: %w: %w", abs, ErrNotReadable, err)}
	}

	if !info.IsDir() {
		f, err := os.Open(abs)
		if err != nil {
			return classification{err: fmt.Errorf("path '%s' can not be identified as a node: %w: %w", abs, ErrNotReadable, err)}
		}
		f.Close()

		if _, ok := t.types.TypeOf(abs); !ok {
			return classification{err: fmt.Errorf("resources '*%s' (%s): %w", filepath.Ext(abs), abs, ErrUnsupportedResource)}
		}
		return classification{kind: KindResource}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return classification{err: fmt.Errorf("path '%s' can not be identified as a node: %w: %w", abs, ErrNotReadable, err)}
	}

	var content string
	haveMeta := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case name == MetaFile:
			haveMeta = true
		case len(content) == 0 && strings.HasPrefix(name, ContentPrefix):
			// entries are sorted, first one wins
			content = filepath.Join(abs, name)
		}
	}
	if len(content) == 0 {
		return classification{err: fmt.Errorf("path '%s' can not be identified as a node (missing %s*): %w", abs, ContentPrefix, ErrNotADocument)}
	}
	if !haveMeta {
		return classification{err: fmt.Errorf("path '%s' can not be identified as a document node (missing %s): %w", abs, MetaFile, ErrNotADocument)}
	}
	return classification{kind: KindDocument, content: content}
}

// lookup resolves path ignoring failures.
func (t *Tree) lookup(path string) *Node {
	n, err := t.Resolve(path)
	if err != nil {
		return nil
	}
	return n
}

// LoadBook resolves book at path and scans it downward once. Documents
// placed below directories which are not documents are still reachable
// upward (their parent skips the gap) but never appear in the book list,
// such subtrees are reported by Detached.
func (t *Tree) LoadBook(path string) (*Node, error) {
	book, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !book.IsDocument() {
		return nil, fmt.Errorf("'%s' is not a book: %w", book.Path(), ErrNotADocument)
	}
	if !book.IsBook() {
		return nil, fmt.Errorf("'%s' is not a book, it belongs to '%s': %w", book.Path(), book.Parent().Path(), ErrStructural)
	}

	var detached []*Node
	err = filepath.WalkDir(book.Path(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			t.log.Debug("Unable to scan book directory", zap.String("path", p), zap.Error(err))
			return nil
		}
		if !d.IsDir() || p == book.Path() {
			return nil
		}
		if skipName(d.Name()) {
			return filepath.SkipDir
		}
		n := t.lookup(p)
		if n == nil || !n.IsDocument() {
			return nil
		}
		if up := t.lookup(filepath.Dir(p)); up == nil || !up.IsDocument() {
			detached = append(detached, n)
			t.log.Warn("Document is not reachable from the book, its parent directory is not a document",
				zap.String("book", book.Name()), zap.String("path", p))
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to scan book '%s': %w", book.Path(), err)
	}

	book.mu.Lock()
	book.detached = detached
	book.mu.Unlock()
	return book, nil
}

// skipName reports names which never become part of a book.
func skipName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
