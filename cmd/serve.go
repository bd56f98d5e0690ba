package cmd

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"medrag/internal/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}

		if err := app.index.EnsureIndex(cmd.Context()); err != nil {
			return err
		}

		router := handlers.NewRouter(handlers.Services{
			Search: &handlers.SearchHandler{
				RetrievalService: app.retrieval,
				AnswerService:    app.answer,
			},
			Ingest: &handlers.IngestHandler{IngestService: app.ingest},
			Article: &handlers.ArticleHandler{
				Index:        app.index,
				StatsService: app.stats,
			},
		})

		logrus.WithField("address", cfg.Server.Addr).Info("server starting")
		return http.ListenAndServe(cfg.Server.Addr, router)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
