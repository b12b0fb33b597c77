// Package publish keeps books available for publishing and defines the
// contract every publishing strategy implements.
package publish

import (
	"context"
	"errors"
	"slices"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrDestinationInvalid = errors.New("destination must be an existing writable directory")
	ErrPackagingFailure   = errors.New("unable to package book")
)

// Options of a single export.
type Options struct {
	// Destination directory, used by strategies producing files.
	Destination string
	// Exclude lists node URIs which are left out of the export.
	Exclude []string
	// Overwrite allows emptying destination which is not empty.
	Overwrite bool
}

// Excluded reports if node URI was excluded from export.
func (o *Options) Excluded(uri string) bool {
	return slices.Contains(o.Exclude, uri)
}

// Publisher exports a book from the shelf.
type Publisher interface {
	ExportBook(ctx context.Context, index string, opts Options) error
}
