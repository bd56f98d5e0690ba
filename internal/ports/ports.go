package ports

import (
	"context"
	"errors"

	"medrag/internal/domain"
)

var (
	// ErrVectorUnsupported reports that the index rejected the k-NN
	// clause of a hybrid query (typically legacy documents without a
	// vector mapping). Callers may retry lexical-only.
	ErrVectorUnsupported = errors.New("vector search unsupported")

	// ErrMissingCredentials reports that the literature API was called
	// without resolved credentials.
	ErrMissingCredentials = errors.New("missing source credentials")

	// ErrNotFound reports a lookup miss.
	ErrNotFound = errors.New("not found")
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a single-turn prompt under a token
// budget.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// HybridQuery is the engine-level description of one index query. The
// index implementation translates it into backend syntax.
type HybridQuery struct {
	Text string
	// Vector is the query embedding; ignored when LexicalOnly is set.
	Vector []float32
	// Size is the number of raw hits requested; K is the number of
	// nearest neighbours for the vector clause.
	Size        int
	K           int
	LexicalOnly bool
}

// SearchIndex is the narrow contract over the lexical+vector store used
// by retrieval and ingestion.
type SearchIndex interface {
	Search(ctx context.Context, q HybridQuery) ([]domain.SearchHit, error)
	Count(ctx context.Context, sourceTag string) (int, error)
	Upsert(ctx context.Context, docID string, article domain.Article) error
	AggregateTerms(ctx context.Context, field string, size int) (map[string]int, error)
	HasArticle(ctx context.Context, key domain.CanonicalKey) (bool, error)
	GetByDOI(ctx context.Context, doi string) (*domain.Article, error)
	MissingVector(ctx context.Context, limit int) ([]domain.Article, error)
}

// ArticleSource is the paginated external literature API.
type ArticleSource interface {
	ListPage(ctx context.Context, sourceTag string, page, pageSize int) ([]domain.ArticleStub, error)
	FetchContent(ctx context.Context, doi, sourceTag string) (*domain.ArticleContent, error)
}
