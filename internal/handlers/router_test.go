package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/answer"
	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ingest"
	"medrag/internal/ports"
	"medrag/internal/retrieval"
	"medrag/internal/stats"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeGenerator struct{}

func (fakeGenerator) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "an answer", nil
}

type fakeIndex struct {
	hits     []domain.SearchHit
	articles map[string]domain.Article
}

func (f *fakeIndex) Search(ctx context.Context, q ports.HybridQuery) ([]domain.SearchHit, error) {
	return f.hits, nil
}
func (f *fakeIndex) Count(ctx context.Context, sourceTag string) (int, error) {
	return len(f.articles), nil
}
func (f *fakeIndex) Upsert(ctx context.Context, docID string, article domain.Article) error {
	return nil
}
func (f *fakeIndex) AggregateTerms(ctx context.Context, field string, size int) (map[string]int, error) {
	return map[string]int{"nejm": len(f.articles)}, nil
}
func (f *fakeIndex) HasArticle(ctx context.Context, key domain.CanonicalKey) (bool, error) {
	return false, nil
}
func (f *fakeIndex) GetByDOI(ctx context.Context, doi string) (*domain.Article, error) {
	if a, ok := f.articles[doi]; ok {
		return &a, nil
	}
	return nil, ports.ErrNotFound
}
func (f *fakeIndex) MissingVector(ctx context.Context, limit int) ([]domain.Article, error) {
	return nil, nil
}

type fakeSource struct{}

func (fakeSource) ListPage(ctx context.Context, sourceTag string, page, pageSize int) ([]domain.ArticleStub, error) {
	return nil, nil
}
func (fakeSource) FetchContent(ctx context.Context, doi, sourceTag string) (*domain.ArticleContent, error) {
	return nil, ports.ErrNotFound
}

func newTestRouter(idx *fakeIndex) (http.Handler, *ingest.Service) {
	searchCfg := config.SearchConfig{Limit: 10, Threshold: 0.4, MaxSources: 3, SourceCharBudget: 8000}
	cfg := config.Config{Search: searchCfg}
	cfg.Source.PageSize = 50
	cfg.Ingest.MaxExtraPages = 3

	retrievalService := retrieval.NewService(fakeEmbedder{}, idx, searchCfg)
	answerService := answer.NewService(retrievalService, fakeGenerator{}, config.LLMConfig{MaxTokens: 100}, searchCfg)
	ingestService := ingest.NewService(ingest.Deps{
		Source: fakeSource{}, Index: idx, Embedder: fakeEmbedder{}, Cfg: cfg,
	})
	statsService := stats.NewService(idx, "test-index")

	router := NewRouter(Services{
		Search:  &SearchHandler{RetrievalService: retrievalService, AnswerService: answerService},
		Ingest:  &IngestHandler{IngestService: ingestService},
		Article: &ArticleHandler{Index: idx, StatsService: statsService},
	})
	return router, ingestService
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestRouter(&fakeIndex{})
	rec := doRequest(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchRoute(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", DOI: "10.1056/a", Title: "Aspirin Trial", RawScore: 2.0},
	}}
	router, _ := newTestRouter(idx)

	rec := doRequest(router, http.MethodPost, "/api/search", `{"query":"aspirin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "aspirin", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Aspirin Trial", resp.Results[0].Title)
}

func TestSearchRouteValidation(t *testing.T) {
	router, _ := newTestRouter(&fakeIndex{})

	rec := doRequest(router, http.MethodPost, "/api/search", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskRoute(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", DOI: "10.1056/a", Title: "Aspirin Trial", Abstract: "text", RawScore: 2.0},
	}}
	router, _ := newTestRouter(idx)

	rec := doRequest(router, http.MethodPost, "/api/ask", `{"question":"does aspirin work?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp answer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "an answer", resp.Answer)
	assert.Len(t, resp.Sources, 1)
}

func TestIngestConflict(t *testing.T) {
	router, ingestService := newTestRouter(&fakeIndex{})

	// Claim the tracker as if a run were in flight.
	require.NoError(t, ingestService.Start("nejm", 1))

	rec := doRequest(router, http.MethodPost, "/api/ingest", `{"source":"nejm","count":5}`)
	// The background run may already have finished; accept either the
	// conflict or a fresh accepted run.
	assert.Contains(t, []int{http.StatusConflict, http.StatusAccepted}, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/ingest", `{"source":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestStatusRoute(t *testing.T) {
	router, _ := newTestRouter(&fakeIndex{})

	rec := doRequest(router, http.MethodGet, "/api/ingest/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status ingest.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
}

func TestCancelWithoutRun(t *testing.T) {
	router, _ := newTestRouter(&fakeIndex{})
	rec := doRequest(router, http.MethodDelete, "/api/ingest", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestArticleLookup(t *testing.T) {
	idx := &fakeIndex{articles: map[string]domain.Article{
		"10.1056/a": {ID: "10_1056_a", DOI: "10.1056/a", Title: "Aspirin Trial"},
	}}
	router, _ := newTestRouter(idx)

	rec := doRequest(router, http.MethodGet, "/api/articles/10.1056%2Fa", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var article domain.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &article))
	assert.Equal(t, "Aspirin Trial", article.Title)

	rec = doRequest(router, http.MethodGet, "/api/articles/10.1056%2Fmissing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsRoute(t *testing.T) {
	idx := &fakeIndex{articles: map[string]domain.Article{
		"10.1056/a": {}, "10.1056/b": {},
	}}
	router, _ := newTestRouter(idx)

	rec := doRequest(router, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var indexStats domain.IndexStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexStats))
	assert.Equal(t, 2, indexStats.TotalArticles)
	assert.Equal(t, map[string]int{"nejm": 2}, indexStats.Sources)
	assert.Equal(t, "test-index", indexStats.IndexName)
}
