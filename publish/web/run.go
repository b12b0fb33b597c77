package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"vbook/cache"
	"vbook/publish"
	"vbook/state"
)

const shutdownTimeout = 5 * time.Second

// parseBookArg splits "INDEX=BOOK_DIR", index defaults to directory name.
// Served books are routed by the first path segment, so index may not be
// empty.
func parseBookArg(arg string) (index, dir string, err error) {
	index, dir, ok := strings.Cut(arg, "=")
	if !ok {
		index, dir = filepath.Base(filepath.Clean(arg)), arg
	}
	if len(index) == 0 || index == "." || len(dir) == 0 {
		return "", "", fmt.Errorf("book '%s' must have index and directory", arg)
	}
	return index, dir, nil
}

// Run serves books given on the command line until context is canceled.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")
	cfg := &env.Cfg.Web

	if cmd.IsSet("listen") {
		cfg.Listen = cmd.String("listen")
	}
	if cmd.Bool("watch") {
		cfg.Watch = true
	}

	undo, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf))
	if err != nil {
		log.Debug("Unable to adjust GOMAXPROCS", zap.Error(err))
	}
	defer undo()

	if cmd.Args().Len() == 0 {
		return errors.New("no books have been specified")
	}

	tree, err := env.Tree()
	if err != nil {
		return err
	}
	shelf := publish.NewBookshelf(tree, log.Named("shelf"))
	for _, arg := range cmd.Args().Slice() {
		index, dir, err := parseBookArg(arg)
		if err != nil {
			return err
		}
		if _, err := shelf.AddBook(index, dir); err != nil {
			return err
		}
	}

	c, err := cache.New(&cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("unable to prepare cache: %w", err)
	}
	if c != nil {
		defer c.Close()
	}

	h, err := NewHandler(shelf, env.Parsers(), c, cfg, env.MarkupOptions(), log.Named("http"))
	if err != nil {
		return err
	}

	if cmd.Bool("warm") {
		for _, index := range shelf.Indexes() {
			if err := h.ExportBook(ctx, index, publish.Options{}); err != nil {
				return fmt.Errorf("unable to warm cache for '%s': %w", index, err)
			}
		}
	}

	if cfg.Watch {
		w, err := NewWatcher(shelf, log.Named("watch"))
		if err != nil {
			return fmt.Errorf("unable to start watcher: %w", err)
		}
		go func() {
			_ = w.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          zap.NewStdLog(log.Named("server")),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("Serving books", zap.String("listen", cfg.Listen), zap.Strings("books", shelf.Indexes()), zap.Bool("watch", cfg.Watch))

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("unable to stop server: %w", err)
		}
		log.Info("Server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}
