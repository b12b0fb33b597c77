package epub

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"vbook/publish"
	"vbook/state"
)

// Run exports book directory given on the command line.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("epub")

	if cmd.Args().Len() == 0 {
		return errors.New("no book directory has been specified")
	}
	if cmd.Args().Len() > 2 {
		return fmt.Errorf("too many arguments: %v", cmd.Args().Slice())
	}
	dir := cmd.Args().Get(0)
	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
		dst = wd
	}

	tree, err := env.Tree()
	if err != nil {
		return err
	}
	shelf := publish.NewBookshelf(tree, log.Named("shelf"))
	if _, err := shelf.AddBook("", dir); err != nil {
		return err
	}

	p, err := New(shelf, env.Parsers(), &env.Cfg.Epub, env.MarkupOptions(), log)
	if err != nil {
		return err
	}
	if env.Rpt != nil {
		p.WithReport(env.Rpt)
	}

	opts := publish.Options{
		Destination: dst,
		Exclude:     cmd.StringSlice("exclude"),
		Overwrite:   cmd.Bool("overwrite"),
	}
	log.Debug("Export requested", zap.String("book", dir), zap.String("destination", dst), zap.Strings("exclude", opts.Exclude))
	return p.ExportBook(ctx, "", opts)
}
