package node

import "errors"

var (
	ErrInvalidPath         = errors.New("invalid path")
	ErrNotReadable         = errors.New("not readable")
	ErrNotADocument        = errors.New("not a document node")
	ErrUnsupportedResource = errors.New("resource type not supported")
	ErrStructural          = errors.New("unexpected book structure")
	ErrMetaKeyNotFound     = errors.New("meta option not found")
	ErrMetaKeyExists       = errors.New("meta option already set")
)
