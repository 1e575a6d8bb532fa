package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/hyperjump/medqa/internal/cli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func indexCmd(g *globalFlags) *cobra.Command {
	var (
		rebuild    bool
		noProgress bool
		output     string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the embedding index from the corpus, or load it if it exists",
		Long: `Build the embedding index from the corpus.

An existing index is reused unless --rebuild is given. A build either completes
or leaves the previous index untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			opts := componentOptions{rebuild: rebuild}
			var bar *buildProgress
			if !noProgress {
				bar = newBuildProgress(cmd.ErrOrStderr())
				opts.progress = bar.Update
			}
			components, err := initializeComponents(ctx, cfg, logger, opts)
			if bar != nil {
				bar.Finish(err == nil)
			}
			if err != nil {
				logger.Error("index failed", zap.String("path", cfg.Index.Path), zap.Error(err))
				return fmt.Errorf("index %s: %w", cfg.Index.Path, err)
			}
			defer components.Close()
			return cli.WriteStats(cmd.OutOrStdout(), components.Index.Stats(), format)
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild even if an index exists")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
