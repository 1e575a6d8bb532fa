package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hyperjump/medqa/internal/cli"
	"github.com/hyperjump/medqa/internal/eval"
	"github.com/spf13/cobra"
)

const defaultEvalOutput = "rag_evaluation_results_with_content.csv"

func evalCmd(g *globalFlags) *cobra.Command {
	var (
		queriesPath string
		outPath     string
		concurrency int
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation query set and write the answers to CSV or XLSX",
		Long: `Run a set of queries through the pipeline and record each answer with the
source chunks it was generated from.

Without --queries the built-in set of 40 questions is used (medical, non-medical
and mixed). A failed query is recorded as ERROR and the run continues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := eval.DefaultQueries
			if queriesPath != "" {
				qs, err := eval.ReadQueries(queriesPath)
				if err != nil {
					return err
				}
				queries = qs
			}

			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.Eval.Concurrency
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
			if err != nil {
				return err
			}
			defer components.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting evaluation of %d queries...\n", len(queries))
			report := eval.Evaluate(ctx, components.Pipeline, queries, concurrency, logger)
			if verbose {
				for i, r := range report.Rows {
					fmt.Fprintf(out, "%2d. %s\n    -> %s\n", i+1, r.Query, cli.TruncateWords(r.Answer, 16))
				}
			}
			if err := eval.WriteFile(outPath, report.Rows); err != nil {
				return fmt.Errorf("write results: %w", err)
			}
			fmt.Fprintf(out, "Evaluation complete in %s: %d answered, %d refused, %d failed. Results saved to '%s'\n",
				report.Took.Round(time.Millisecond), report.Answered, report.Refused, report.Failed, outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queriesPath, "queries", "q", "", "file with one query per line (default: built-in set)")
	cmd.Flags().StringVar(&outPath, "out", defaultEvalOutput, "output file (.csv or .xlsx)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "queries in flight (overrides eval.concurrency)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print each query and a preview of its answer")
	return cmd
}
