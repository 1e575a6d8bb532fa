package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/medqa/internal/server"
	"github.com/hyperjump/medqa/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var (
		host  string
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load or build the index and serve the HTTP API",
		Long: `Load or build the index and serve the HTTP API.

With --watch (or server.watch_corpus) the corpus file is watched; after it changes
the index is rebuilt in the background and swapped in once complete. Queries keep
being answered from the previous index until then, and a failed rebuild leaves it
in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.WatchCorpus = watch
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
			if err != nil {
				logger.Error("Failed to initialize components", zap.Error(err))
				return err
			}
			defer components.Close()

			if cfg.Server.WatchCorpus {
				w := watcher.New(cfg.Corpus.Path, func() {
					if err := components.Index.Rebuild(ctx); err != nil {
						logger.Warn("corpus rebuild skipped", zap.Error(err))
					}
				}, watcher.WithDebounce(cfg.Server.WatchDebounce), watcher.WithLogger(logger))
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("watch corpus: %w", err)
				}
				defer w.Stop()
			}

			srv := server.NewServer(
				components.Pipeline,
				components.Index,
				components.Metrics,
				&cfg.Server,
				cfg.Pipeline.QueryTimeout,
				logger,
			)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("Server failed", zap.Error(err))
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the index when the corpus file changes (overrides server.watch_corpus)")
	return cmd
}
