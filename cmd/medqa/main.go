// Package main is the medqa CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/medqa/internal/answer"
	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/corpus"
	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/indexer"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/pipeline"
	"github.com/hyperjump/medqa/internal/search"
	"github.com/hyperjump/medqa/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/medqa/config.yaml"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
}

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "medqa",
		Short:         "medqa: answers clinical questions from a transcript corpus, with citations",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		initCmd(g),
		serveCmd(g),
		askCmd(g),
		indexCmd(g),
		evalCmd(g),
		statusCmd(g),
		inspectCmd(),
		versionCmd(),
	)
	root.SetErr(os.Stderr)
	return root
}

// execute runs root and prints any error to its error writer.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medqa version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); when neither exists the
// built-in defaults are used with paths relative to the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default(cwd)
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads config and creates the logger.
func setup(g *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || g.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Embedder embedding.Embedder
	Index    *index.Live
	Pipeline *pipeline.Pipeline
}

// Close releases all resources held by components.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	_ = c.Logger.Sync()
}

// componentOptions tune initializeComponents for a command.
type componentOptions struct {
	rebuild  bool
	topK     int
	progress indexer.ProgressFunc
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	logger = utils.OrNop(logger)
	m := metrics.New()
	c := &Components{Config: cfg, Logger: logger, Metrics: m}

	emb, err := embedding.NewFromConfig(cfg.Embedding, cfg.Index.BatchSize, m, logger)
	if err != nil {
		return nil, err
	}
	c.Embedder = emb

	iopts, err := indexOptions(cfg, emb, m, logger, opts.progress)
	if err != nil {
		c.Close()
		return nil, err
	}
	idx, err := openIndex(ctx, iopts, opts.rebuild)
	if err != nil {
		c.Close()
		return nil, err
	}
	// Rebuilds triggered later (serve --watch) report no progress.
	iopts.Progress = nil
	c.Index = index.NewLive(idx, iopts)

	gen, err := answer.NewGeneratorFromConfig(cfg.Generation, m, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	k := cfg.Retrieval.TopK
	if opts.topK > 0 {
		k = opts.topK
	}
	var ropts []search.RetrieverOption
	if cfg.Retrieval.Mode == config.RetrievalHybrid {
		if !c.Index.HasKeywords() {
			logger.Warn("hybrid retrieval requested but the index has no keyword index; rebuild with `medqa index --rebuild`")
		}
		ropts = append(ropts, search.WithKeywords(c.Index, cfg.Retrieval.KeywordWeight))
	}
	c.Pipeline = pipeline.New(
		search.NewRetriever(c.Index, k, ropts...),
		answer.NewSynthesizer(gen,
			answer.WithMaxContextChars(cfg.Retrieval.MaxContextChars),
			answer.WithSynthesizerLogger(logger)),
		pipeline.WithQueryTimeout(cfg.Pipeline.QueryTimeout),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logger),
	)
	return c, nil
}

func indexOptions(cfg *config.Config, emb embedding.Embedder, m *metrics.Metrics, logger *zap.Logger, progress indexer.ProgressFunc) (index.Options, error) {
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.Separators)
	if err != nil {
		return index.Options{}, err
	}
	return index.Options{
		Path:     cfg.Index.Path,
		Embedder: emb,
		Chunker:  chunker,
		Records: func() ([]models.Record, error) {
			return corpus.Load(cfg.Corpus.Path, corpus.Options{Columns: cfg.Corpus.Columns})
		},
		CorpusPath:  cfg.Corpus.Path,
		Concurrency: cfg.Index.BuildConcurrency,
		BatchSize:   cfg.Index.BatchSize,
		Progress:    progress,
		Logger:      logger,
		Metrics:     m,
	}, nil
}

func openIndex(ctx context.Context, iopts index.Options, rebuild bool) (*index.Index, error) {
	if rebuild {
		return index.Build(ctx, iopts)
	}
	return index.OpenOrBuild(ctx, iopts)
}

// joinArgs joins positional args with spaces so multi-word queries work the same with
// or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
