package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	hits      []domain.SearchHit
	err       error
	hybridErr error
	queries   []ports.HybridQuery
}

func (f *fakeIndex) Search(ctx context.Context, q ports.HybridQuery) ([]domain.SearchHit, error) {
	f.queries = append(f.queries, q)
	if !q.LexicalOnly && f.hybridErr != nil {
		return nil, f.hybridErr
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Count(ctx context.Context, sourceTag string) (int, error) { return 0, nil }
func (f *fakeIndex) Upsert(ctx context.Context, docID string, article domain.Article) error {
	return nil
}
func (f *fakeIndex) AggregateTerms(ctx context.Context, field string, size int) (map[string]int, error) {
	return nil, nil
}
func (f *fakeIndex) HasArticle(ctx context.Context, key domain.CanonicalKey) (bool, error) {
	return false, nil
}
func (f *fakeIndex) GetByDOI(ctx context.Context, doi string) (*domain.Article, error) {
	return nil, ports.ErrNotFound
}
func (f *fakeIndex) MissingVector(ctx context.Context, limit int) ([]domain.Article, error) {
	return nil, nil
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{Limit: 10, Threshold: 0.4, MaxSources: 3, SourceCharBudget: 8000}
}

func TestSearchDeduplicatesByDOI(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", DOI: "10.1056/abc", Title: "Statin outcomes", RawScore: 1.9, Channel: domain.ChannelLexical},
		{ID: "b", DOI: "10.1056/abc", Title: "Statin outcomes", RawScore: 2.4, Channel: domain.ChannelVector},
		{ID: "c", DOI: "10.1056/xyz", Title: "Beta blockers", RawScore: 1.1, Channel: domain.ChannelBoth},
	}}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1, 0.2}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "statins", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	// The duplicate pair collapses to its best-scoring hit.
	assert.Equal(t, "10.1056/abc", resp.Results[0].DOI)
	assert.Equal(t, 240.0, resp.Results[0].RelevanceScore)
	assert.Equal(t, domain.ChannelVector, resp.Results[0].Channel)
	assert.True(t, resp.Results[0].Deduplicated)
	assert.Equal(t, "10.1056/xyz", resp.Results[1].DOI)
	assert.Equal(t, 2, resp.TotalFound)
}

func TestSearchDeduplicatesByNormalizedTitle(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", Title: "  Sepsis   Management ", RawScore: 1.0},
		{ID: "b", Title: "sepsis management", RawScore: 1.5},
	}}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "sepsis", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 150.0, resp.Results[0].RelevanceScore)
}

func TestSearchKeepsHitsWithoutAnyKey(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", Title: "", DOI: "", RawScore: 1.0},
		{ID: "b", Title: "", DOI: "", RawScore: 0.9},
	}}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "anything", Options{})
	require.NoError(t, err)

	// No usable identity means the hits are never merged with each other.
	require.Len(t, resp.Results, 2)
	assert.False(t, resp.Results[0].Deduplicated)
	assert.False(t, resp.Results[1].Deduplicated)
}

func TestSearchAppliesThreshold(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", DOI: "10.1056/hi", Title: "Strong match", RawScore: 0.9},
		{ID: "b", DOI: "10.1056/lo", Title: "Weak match", RawScore: 0.2},
	}}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "10.1056/hi", resp.Results[0].DOI)

	// An explicit zero threshold lets everything through.
	resp, err = svc.Search(context.Background(), "q", Options{HasThreshold: true, Threshold: 0})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestSearchOrdering(t *testing.T) {
	idx := &fakeIndex{hits: []domain.SearchHit{
		{ID: "a", DOI: "10.1056/older", Title: "Older", Year: 2019, RawScore: 2.0},
		{ID: "b", DOI: "10.1056/newer", Title: "Newer", Year: 2024, RawScore: 2.0},
		{ID: "c", DOI: "10.1056/top", Title: "Top", Year: 2020, RawScore: 3.0},
	}}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "10.1056/top", resp.Results[0].DOI)
	assert.Equal(t, "10.1056/newer", resp.Results[1].DOI)
	assert.Equal(t, "10.1056/older", resp.Results[2].DOI)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	var hits []domain.SearchHit
	for i := 0; i < 8; i++ {
		hits = append(hits, domain.SearchHit{
			ID:       fmt.Sprintf("doc-%d", i),
			DOI:      fmt.Sprintf("10.1056/doc-%d", i),
			Title:    fmt.Sprintf("Article %d", i),
			RawScore: float64(10 - i),
		})
	}
	idx := &fakeIndex{hits: hits}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "q", Options{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 3, resp.Metadata.Limit)

	// The index is over-fetched to survive deduplication.
	require.Len(t, idx.queries, 1)
	assert.Equal(t, 6, idx.queries[0].Size)
	assert.Equal(t, 6, idx.queries[0].K)
}

func TestSearchDegradesToLexicalOnly(t *testing.T) {
	idx := &fakeIndex{
		hits:      []domain.SearchHit{{ID: "a", DOI: "10.1056/abc", Title: "A", RawScore: 1.0, Channel: domain.ChannelLexical}},
		hybridErr: fmt.Errorf("%w: knn rejected", ports.ErrVectorUnsupported),
	}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "q", Options{})
	require.NoError(t, err)

	require.Len(t, idx.queries, 2)
	assert.False(t, idx.queries[0].LexicalOnly)
	assert.True(t, idx.queries[1].LexicalOnly)
	assert.True(t, resp.Metadata.VectorDegraded)
	require.Len(t, resp.Results, 1)
}

func TestSearchFailsWhenEmbeddingFails(t *testing.T) {
	svc := NewService(&fakeEmbedder{err: errors.New("embedder down")}, &fakeIndex{}, testSearchConfig())

	_, err := svc.Search(context.Background(), "q", Options{})
	require.Error(t, err)
}

func TestSearchFailsWhenBothQueriesFail(t *testing.T) {
	idx := &fakeIndex{err: errors.New("backend down")}
	svc := NewService(&fakeEmbedder{vec: []float32{0.1}}, idx, testSearchConfig())

	_, err := svc.Search(context.Background(), "q", Options{})
	require.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestSearchReportsQueryEmbedding(t *testing.T) {
	idx := &fakeIndex{}
	svc := NewService(&fakeEmbedder{vec: []float32{3, 4}}, idx, testSearchConfig())

	resp, err := svc.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Embedding.Dimension)
	assert.InDelta(t, 5.0, resp.Embedding.Norm, 1e-9)
	assert.Equal(t, []float32{3, 4}, resp.Embedding.Preview)
}
