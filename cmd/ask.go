package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"medrag/internal/retrieval"
)

var (
	askLimit     int
	askThreshold float64
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed literature",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		opts := retrieval.Options{Limit: askLimit}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = askThreshold
			opts.HasThreshold = true
		}

		resp, err := app.answer.Ask(cmd.Context(), strings.Join(args, " "), opts)
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		cmd.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			cmd.Println("\nSources:")
			for i, src := range resp.Sources {
				cmd.Printf("%d. %s", i+1, src.Title)
				if src.DOI != "" {
					cmd.Printf(" (%s)", src.DOI)
				}
				cmd.Println()
			}
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the index without generating an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		opts := retrieval.Options{Limit: askLimit}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = askThreshold
			opts.HasThreshold = true
		}

		resp, err := app.retrieval.Search(cmd.Context(), strings.Join(args, " "), opts)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, searchCmd} {
		c.Flags().IntVar(&askLimit, "limit", 0, "maximum number of results (0 = configured default)")
		c.Flags().Float64Var(&askThreshold, "threshold", 0, "minimum relevance score")
	}
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
}
