package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services bundles everything the router needs.
type Services struct {
	Search  *SearchHandler
	Ingest  *IngestHandler
	Article *ArticleHandler
}

// NewRouter wires all HTTP routes.
func NewRouter(s Services) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/search", s.Search.Search)
		r.Post("/ask", s.Search.Ask)

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/", s.Ingest.Start)
			r.Delete("/", s.Ingest.Cancel)
			r.Get("/status", s.Ingest.Status)
			r.Post("/backfill", s.Ingest.Backfill)
		})

		r.Get("/stats", s.Article.Stats)
		r.Get("/articles/{doi}", s.Article.GetByDOI)
	})

	return r
}
