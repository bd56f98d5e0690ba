package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"medrag/internal/answer"
	"medrag/internal/config"
	"medrag/internal/ingest"
	"medrag/internal/retrieval"
	"medrag/internal/stats"
	"medrag/services/embed"
	"medrag/services/index"
	"medrag/services/llm"
	"medrag/services/source"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "medrag",
	Short: "Retrieval-augmented assistant over medical literature",
	Long: `medrag indexes medical-literature articles into a hybrid
lexical+vector search backend and answers questions grounded in the
retrieved sources.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.JSONFormatter{})

		if err := godotenv.Load(); err == nil {
			logrus.Info(".env file loaded successfully")
		}

		cfg = config.Load()

		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired services shared by the commands.
type app struct {
	index     *index.Client
	retrieval *retrieval.Service
	answer    *answer.Service
	ingest    *ingest.Service
	stats     *stats.Service
}

func buildApp() (*app, error) {
	idx, err := index.NewClient(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("connect to search backend: %w", err)
	}

	embedder := embed.NewClient(cfg.Embedding)
	generator := llm.NewClient(cfg.LLM)
	gateway := source.NewGateway(cfg.Source)

	retrievalService := retrieval.NewService(embedder, idx, cfg.Search)

	return &app{
		index:     idx,
		retrieval: retrievalService,
		answer:    answer.NewService(retrievalService, generator, cfg.LLM, cfg.Search),
		ingest: ingest.NewService(ingest.Deps{
			Source:   gateway,
			Index:    idx,
			Embedder: embedder,
			Cfg:      cfg,
		}),
		stats: stats.NewService(idx, cfg.Index.Name),
	}, nil
}
