package node

// TocItem is an entry of the table of contents.
type TocItem struct {
	Caption  string
	URI      string
	Children []TocItem
}

// Toc returns table of contents built from document children.
func (n *Node) Toc() []TocItem {
	var toc []TocItem
	for _, c := range n.Children() {
		toc = append(toc, TocItem{
			Caption:  displayName(c.DisplayName()),
			URI:      c.URI(),
			Children: c.Toc(),
		})
	}
	return toc
}

// Depth returns maximum nesting level of the table of contents.
func Depth(toc []TocItem) int {
	depth := 0
	for _, item := range toc {
		depth = max(depth, 1+Depth(item.Children))
	}
	return depth
}
