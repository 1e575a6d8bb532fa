package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/hyperjump/medqa/internal/cli"
	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/spf13/cobra"
)

func statusCmd(g *globalFlags) *cobra.Command {
	var (
		output    string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Long: `Show index statistics. The index is loaded read-only and never built; a model
or dimension mismatch with the configured embedder is reported as an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				stats, err := statusViaHTTP(cmd.Context(), serverURL)
				if err != nil {
					return err
				}
				return cli.WriteStats(cmd.OutOrStdout(), *stats, format)
			}

			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if _, err := os.Stat(cfg.Index.Path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No index at %s; run \"medqa index\" to build it.\n", cfg.Index.Path)
				return nil
			}
			emb, err := embedding.NewFromConfig(cfg.Embedding, cfg.Index.BatchSize, nil, logger)
			if err != nil {
				return err
			}
			defer emb.Close()
			x, err := index.Load(cmd.Context(), cfg.Index.Path, emb, logger)
			if err != nil {
				return err
			}
			defer x.Close()
			return cli.WriteStats(cmd.OutOrStdout(), x.Stats(), format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server at this URL")
	return cmd
}

func statusViaHTTP(ctx context.Context, serverURL string) (*index.Stats, error) {
	endpoint, err := url.JoinPath(serverURL, "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var stats index.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("invalid server response: %w", err)
	}
	return &stats, nil
}
