package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/hyperjump/medqa/internal/cli"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/server"
	"github.com/spf13/cobra"
)

func askCmd(g *globalFlags) *cobra.Command {
	var (
		output    string
		serverURL string
		topK      int
		showRows  bool
	)
	cmd := &cobra.Command{
		Use:   "ask [flags] <query>",
		Short: "Answer one clinical question with citations",
		Long: `Answer one clinical question from the corpus.

The query is all remaining arguments joined by spaces; quoting is optional.
With --server the question is sent to a running "medqa serve" instead of
loading the index in this process.`,
		Example: `  medqa ask What anesthesia was used for the laparoscopic cholecystectomy?
  medqa ask --output json "Describe the incision made for the carpal tunnel release."
  medqa ask --server http://localhost:8080 What sutures were used to close the fascia?`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseFormat(output)
			if err != nil {
				return err
			}
			query := joinArgs(args)
			if query == "" {
				return errors.New(server.EmptyQueryWarning)
			}

			if showRows && (format != cli.OutputText || serverURL != "") {
				return errors.New("--rows needs text output and a local index")
			}
			if serverURL != "" {
				res, err := askViaHTTP(cmd.Context(), serverURL, query)
				if err != nil {
					return err
				}
				return cli.WriteAnswer(cmd.OutOrStdout(), res, format)
			}

			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			components, err := initializeComponents(ctx, cfg, logger, componentOptions{topK: topK})
			if err != nil {
				return err
			}
			defer components.Close()

			res, err := components.Pipeline.Run(ctx, query)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", server.PipelineFailure, models.Classify(err), err)
			}
			if err := cli.WriteAnswer(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
			if showRows {
				return writeCitedRows(ctx, cmd.OutOrStdout(), components.Index, res)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "ask a running server at this URL instead of loading the index")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks to retrieve (overrides retrieval.top_k)")
	cmd.Flags().BoolVar(&showRows, "rows", false, "print the full text of every cited row")
	return cmd
}

// writeCitedRows prints each grounded cited row once, in citation order.
func writeCitedRows(ctx context.Context, w io.Writer, rows server.RowProvider, res *models.Result) error {
	ungrounded := make(map[int]bool, len(res.Answer.Ungrounded))
	for _, id := range res.Answer.Ungrounded {
		ungrounded[id] = true
	}
	seen := make(map[int]bool)
	for _, id := range res.Answer.Citations {
		if seen[id] || ungrounded[id] {
			continue
		}
		seen[id] = true
		chunks, err := rows.Row(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "--- Row %d ---\n%s\n\n", id, index.RowText(chunks))
	}
	return nil
}

type remoteSource struct {
	RowID   int     `json:"row_id"`
	ChunkID string  `json:"chunk_id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// remoteAnswer mirrors the /api/v1/ask response body, success or error.
type remoteAnswer struct {
	Query      string         `json:"query"`
	Answer     string         `json:"answer"`
	Refused    bool           `json:"refused"`
	Citations  []int          `json:"citations"`
	Ungrounded []int          `json:"ungrounded_citations"`
	Sources    []remoteSource `json:"sources"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error"`
	Kind       string         `json:"kind"`
}

func (r *remoteAnswer) result() *models.Result {
	res := &models.Result{
		Query: r.Query,
		Answer: &models.Answer{
			Text:       r.Answer,
			Refused:    r.Refused,
			Citations:  r.Citations,
			Ungrounded: r.Ungrounded,
		},
		Duration: time.Duration(r.DurationMS) * time.Millisecond,
	}
	for _, s := range r.Sources {
		res.Context = append(res.Context, models.ScoredChunk{
			Chunk: models.Chunk{ID: s.ChunkID, RowID: s.RowID, Text: s.Snippet},
			Score: s.Score,
		})
	}
	res.Answer.Sources = res.Context
	return res
}

func askViaHTTP(ctx context.Context, serverURL, query string) (*models.Result, error) {
	endpoint, err := url.JoinPath(serverURL, "/api/v1/ask")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out remoteAnswer
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid server response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Kind != "" {
			return nil, fmt.Errorf("%s (%s)", out.Error, out.Kind)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, out.Error)
	}
	return out.result(), nil
}
