package main

import (
	"fmt"

	"github.com/hyperjump/medqa/internal/inspect"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var (
		outPath  string
		examples int
		noSize   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Write a report of a dataset directory's layout",
		Long: `Scan a dataset directory recursively and write its tree, the file extensions
and counts in each folder, and example file names with sizes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "dataset"
			if len(args) == 1 {
				root = args[0]
			}
			r, err := inspect.WriteFile(root, outPath, inspect.Options{ExamplesPerExt: examples}, noSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Full scan complete. Report saved to '%s'. Total files: %d\n", outPath, r.TotalFiles)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "dataset_structure.txt", "report file")
	cmd.Flags().IntVar(&examples, "examples", inspect.DefaultExamplesPerExt, "example files listed per extension")
	cmd.Flags().BoolVar(&noSize, "no-size", false, "omit file sizes")
	return cmd
}
