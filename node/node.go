package node

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind of the node.
type Kind int

const (
	KindResource Kind = iota
	KindDocument
	KindBook
)

func (k Kind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindDocument:
		return "document"
	case KindBook:
		return "book"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const (
	uriSeparator = "/"
	// MetaGUID is the meta option keeping persistent book identifier.
	MetaGUID = "GUID"
	// MetaDisplayName overwrites name derived from directory name.
	MetaDisplayName = "displayName"
)

// Node is a directory (document) or a file (resource) of the book. Nodes are
// created by Tree and are immutable, derived values are computed once.
type Node struct {
	tree    *Tree
	path    string
	kind    Kind
	content string

	parentOnce sync.Once
	parent     *Node

	rootOnce sync.Once
	root     *Node
	rootErr  error

	childrenOnce sync.Once
	children     []*Node

	resourcesOnce sync.Once
	resources     []*Node

	siblingsOnce sync.Once
	siblings     []*Node

	listOnce sync.Once
	list     []*Node

	metaOnce sync.Once
	meta     *Meta
	metaErr  error

	mu       sync.Mutex
	offset   string
	detached []*Node
}

// Path returns absolute path of the node.
func (n *Node) Path() string {
	return n.path
}

func (n *Node) Kind() Kind {
	if n.IsBook() {
		return KindBook
	}
	return n.kind
}

func (n *Node) IsDocument() bool {
	return n.kind == KindDocument
}

func (n *Node) IsResource() bool {
	return n.kind == KindResource
}

// IsBook reports document without document ancestors.
func (n *Node) IsBook() bool {
	return n.IsDocument() && n.Parent() == nil
}

// ContentFile returns absolute name of the document content file, empty for
// resources.
func (n *Node) ContentFile() string {
	return n.content
}

func (n *Node) Name() string {
	return filepath.Base(n.path)
}

func displayName(name string) string {
	// casers are stateful, not shared
	return cases.Title(language.Und, cases.NoLower).String(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}

// DisplayName returns meta displayName when set, otherwise name with
// separators replaced by spaces and words capitalized.
func (n *Node) DisplayName() string {
	if n.IsDocument() {
		if m, err := n.Meta(); err == nil {
			if dn := m.String(MetaDisplayName, ""); len(dn) > 0 {
				return dn
			}
		}
	}
	return displayName(n.Name())
}

// Parent returns nearest ancestor which is a document, directories in between
// which are not documents are skipped.
func (n *Node) Parent() *Node {
	n.parentOnce.Do(func() {
		for dir := filepath.Dir(n.path); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			if p := n.tree.lookup(dir); p != nil && p.IsDocument() {
				n.parent = p
				return
			}
		}
	})
	return n.parent
}

// Root returns outermost document of the uninterrupted chain of documents
// containing the node. For resources the chain starts at the first document
// ancestor.
func (n *Node) Root() (*Node, error) {
	n.rootOnce.Do(func() {
		var current *Node
		if n.IsDocument() {
			current = n
		}
		for dir := filepath.Dir(n.path); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			p := n.tree.lookup(dir)
			if p != nil && p.IsDocument() {
				current = p
				continue
			}
			if current != nil {
				break
			}
		}
		if current == nil {
			n.rootErr = fmt.Errorf("unable to find root document for '%s': %w", n.path, ErrStructural)
			return
		}
		n.root = current
	})
	return n.root, n.rootErr
}

// Child resolves path relative to this node.
func (n *Node) Child(rel string) (*Node, error) {
	rel = filepath.FromSlash(strings.Trim(filepath.ToSlash(rel), "/"))
	if len(rel) > 0 && !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("path '%s' leaves '%s': %w", rel, n.path, ErrInvalidPath)
	}
	return n.tree.Resolve(filepath.Join(n.path, rel))
}

// Children returns immediate subdirectories which are documents, ordered by
// name.
func (n *Node) Children() []*Node {
	n.childrenOnce.Do(func() {
		if !n.IsDocument() {
			return
		}
		entries, err := os.ReadDir(n.path)
		if err != nil {
			n.tree.log.Debug("Unable to read document directory", zap.String("path", n.path), zap.Error(err))
			return
		}
		for _, e := range entries {
			if !e.IsDir() || skipName(e.Name()) {
				continue
			}
			c, err := n.tree.Resolve(filepath.Join(n.path, e.Name()))
			if err != nil {
				n.tree.log.Debug("Skipping directory", zap.String("path", filepath.Join(n.path, e.Name())), zap.Error(err))
				continue
			}
			if c.IsDocument() {
				n.children = append(n.children, c)
			}
		}
	})
	return n.children
}

func resourceCandidate(name string) bool {
	return !skipName(name) && name != MetaFile && !strings.HasPrefix(name, ContentPrefix)
}

// Resources returns supported files of the document, including files from
// subdirectories which are not documents. Ordered by path.
func (n *Node) Resources() []*Node {
	n.resourcesOnce.Do(func() {
		if !n.IsDocument() {
			return
		}
		n.resources = n.tree.collectResources(n.path)
		slices.SortFunc(n.resources, func(a, b *Node) int { return strings.Compare(a.path, b.path) })
	})
	return n.resources
}

func (t *Tree) collectResources(dir string) (res []*Node) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.log.Debug("Unable to read resource directory", zap.String("path", dir), zap.Error(err))
		return nil
	}
	for _, e := range entries {
		name := e.Name()
		if !resourceCandidate(name) {
			continue
		}
		p := filepath.Join(dir, name)
		if e.IsDir() {
			if d := t.lookup(p); d != nil && d.IsDocument() {
				continue
			}
			res = append(res, t.collectResources(p)...)
			continue
		}
		r, err := t.Resolve(p)
		if err != nil {
			t.log.Debug("Skipping file", zap.String("path", p), zap.Error(err))
			continue
		}
		res = append(res, r)
	}
	return res
}

// Siblings returns resources located in the same directory as this resource.
func (n *Node) Siblings() []*Node {
	n.siblingsOnce.Do(func() {
		if !n.IsResource() {
			return
		}
		dir := filepath.Dir(n.path)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || !resourceCandidate(e.Name()) {
				continue
			}
			if s := n.tree.lookup(filepath.Join(dir, e.Name())); s != nil && s.IsResource() {
				n.siblings = append(n.siblings, s)
			}
		}
	})
	return n.siblings
}

// List returns node followed by all its descendant documents in pre-order.
func (n *Node) List() []*Node {
	n.listOnce.Do(func() {
		n.list = []*Node{n}
		for _, c := range n.Children() {
			n.list = append(n.list, c.List()...)
		}
	})
	return n.list
}

// sequence returns ordered list node belongs to: book list for documents,
// siblings for resources.
func (n *Node) sequence() []*Node {
	if n.IsResource() {
		return n.Siblings()
	}
	root, err := n.Root()
	if err != nil {
		return nil
	}
	return root.List()
}

func (n *Node) position(seq []*Node) int {
	return slices.IndexFunc(seq, func(o *Node) bool { return o.path == n.path })
}

// Index returns position of the node in its sequence.
func (n *Node) Index() int {
	if i := n.position(n.sequence()); i >= 0 {
		return i
	}
	return 0
}

func (n *Node) Next() *Node {
	seq := n.sequence()
	if i := n.position(seq); i >= 0 && i+1 < len(seq) {
		return seq[i+1]
	}
	return nil
}

func (n *Node) Previous() *Node {
	seq := n.sequence()
	if i := n.position(seq); i > 0 {
		return seq[i-1]
	}
	return nil
}

// Level returns number of document ancestors.
func (n *Node) Level() int {
	level := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		level++
	}
	return level
}

// Meta returns document metadata. Resources share metadata of their parent
// document.
func (n *Node) Meta() (*Meta, error) {
	if n.IsResource() {
		p := n.Parent()
		if p == nil {
			return nil, fmt.Errorf("resource '%s' does not belong to any document: %w", n.path, ErrStructural)
		}
		return p.Meta()
	}
	n.metaOnce.Do(func() {
		n.meta, n.metaErr = loadMeta(filepath.Join(n.path, MetaFile), n)
	})
	return n.meta, n.metaErr
}

// RelativePath returns path of the node relative to its root, empty for root
// itself.
func (n *Node) RelativePath() string {
	root, err := n.Root()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(n.path, root.path)
}

// RelativeURI returns relative path with forward slashes and without
// leading or trailing separator.
func (n *Node) RelativeURI() string {
	return strings.Trim(filepath.ToSlash(n.RelativePath()), uriSeparator)
}

// URI returns absolute link to the node: root URI offset followed by
// relative URI.
func (n *Node) URI() string {
	offset := ""
	if root, err := n.Root(); err == nil {
		offset = root.URIOffset()
	}
	return offset + uriSeparator + n.RelativeURI()
}

// SetURIOffset sets prefix for absolute links of all nodes of this root. The
// offset must be empty or start with "/" and must not end with "/".
func (n *Node) SetURIOffset(offset string) error {
	if len(offset) > 0 && !strings.HasPrefix(offset, uriSeparator) {
		return fmt.Errorf("uri offset '%s' must start with a forward slash: %w", offset, ErrInvalidPath)
	}
	if len(offset) > 0 && strings.HasSuffix(offset, uriSeparator) {
		return fmt.Errorf("uri offset '%s' can not end with a forward slash: %w", offset, ErrInvalidPath)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offset = offset
	return nil
}

func (n *Node) URIOffset() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offset
}

// ContentType returns media type of the resource or text/html for documents.
func (n *Node) ContentType() string {
	if n.IsDocument() {
		return "text/html"
	}
	mt, _ := n.tree.types.TypeOf(n.path)
	return mt
}

// ModTime returns modification time of the content file for documents and
// of the file itself for resources.
func (n *Node) ModTime() (time.Time, error) {
	name := n.path
	if n.IsDocument() {
		name = n.content
	}
	info, err := os.Stat(name)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to get modification time of '%s': %w", name, err)
	}
	return info.ModTime(), nil
}

// GUID returns persistent book identifier, creating and storing it in meta
// when absent.
func (n *Node) GUID() (string, error) {
	m, err := n.Meta()
	if err != nil {
		return "", err
	}
	if id := m.String(MetaGUID, ""); len(id) > 0 {
		return id, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("unable to create book identifier: %w", err)
	}
	if err := m.Set(MetaGUID, id.String(), false); err != nil {
		return "", err
	}
	return id.String(), nil
}

// Detached returns documents inside the book which are cut off from it by
// directories that are not documents. Filled by Tree.LoadBook.
func (n *Node) Detached() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.detached)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s", n.Kind(), n.path)
}
