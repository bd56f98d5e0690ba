package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestCount    int
	backfillLimit  int
	backfillRepeat bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Ingest new articles from a literature source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		if err := app.index.EnsureIndex(cmd.Context()); err != nil {
			return err
		}

		run, err := app.ingest.Ingest(cmd.Context(), args[0], ingestCount)
		if run != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encodeErr := enc.Encode(run); encodeErr != nil {
				return encodeErr
			}
		}
		return err
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed articles that were indexed without a vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for {
			report, err := app.ingest.Backfill(cmd.Context(), backfillLimit)
			if err != nil {
				return err
			}
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !backfillRepeat || report.Scanned == 0 {
				return nil
			}
		}
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestCount, "count", 10, "number of new articles to ingest")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 50, "articles per backfill pass")
	backfillCmd.Flags().BoolVar(&backfillRepeat, "all", false, "repeat passes until no vectorless articles remain")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(backfillCmd)
}
