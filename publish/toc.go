package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"

	"vbook/node"
	"vbook/state"
	"vbook/utils/debug"
)

// WriteToc prints book structure: documents with their URIs and, when
// requested, resources of each document.
func WriteToc(w io.Writer, book *node.Node, resources bool) error {
	m, err := book.Meta()
	if err != nil {
		return err
	}
	tw := debug.NewTreeWriter("")
	tw.Line(0, "%s (%s)", m.String("title", book.DisplayName()), book.URI())
	writeNode(tw, 1, book, resources)
	for _, d := range book.Detached() {
		tw.Value(0, "detached", d.Path())
	}
	_, err = tw.WriteTo(w)
	return err
}

func writeNode(tw *debug.TreeWriter, depth int, n *node.Node, resources bool) {
	children := n.Children()
	if resources {
		for _, r := range n.Resources() {
			tw.Line(depth, "- %s [%s]", r.Name(), r.ContentType())
		}
	}
	for _, c := range children {
		tw.Line(depth, "%s (%s)", c.DisplayName(), c.URI())
		writeNode(tw, depth+1, c, resources)
	}
}

// RunToc prints structure of the book directory given on the command line.
func RunToc(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)

	if cmd.Args().Len() != 1 {
		return errors.New("single book directory is expected")
	}
	tree, err := env.Tree()
	if err != nil {
		return err
	}
	shelf := NewBookshelf(tree, env.Log.Named("shelf"))
	book, err := shelf.AddBook("", cmd.Args().First())
	if err != nil {
		return err
	}
	if err := WriteToc(os.Stdout, book, cmd.Bool("resources")); err != nil {
		return fmt.Errorf("unable to print book structure: %w", err)
	}
	return nil
}
