package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
)

// ErrSearchUnavailable reports that neither the hybrid query nor the
// lexical-only retry could be executed.
var ErrSearchUnavailable = errors.New("search unavailable")

// previewChars bounds the content excerpt attached to each result.
const previewChars = 300

// Service is the retrieval engine: it embeds the query, runs one hybrid
// lexical+vector query, deduplicates by canonical key and ranks the
// survivors.
type Service struct {
	embedder ports.Embedder
	index    ports.SearchIndex
	cfg      config.SearchConfig
}

// NewService wires the retrieval engine.
func NewService(embedder ports.Embedder, index ports.SearchIndex, cfg config.SearchConfig) *Service {
	return &Service{embedder: embedder, index: index, cfg: cfg}
}

// Options are per-query overrides for the configured defaults. Zero
// values fall back to configuration.
type Options struct {
	Limit     int
	Threshold float64
	// HasThreshold distinguishes an explicit 0 threshold from "use the
	// default".
	HasThreshold bool
}

// Search runs one retrieval round trip for a query. A failing embedding
// is fatal; a rejected knn clause degrades to lexical-only.
func (s *Service) Search(ctx context.Context, query string, opts Options) (*domain.SearchResponse, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	threshold := s.cfg.Threshold
	if opts.HasThreshold {
		threshold = opts.Threshold
	}

	log := logrus.WithFields(logrus.Fields{"query": query, "limit": limit})

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.WithError(err).Error("query embedding failed")
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so deduplication and threshold filtering still leave
	// enough results to fill the limit.
	q := ports.HybridQuery{
		Text:   query,
		Vector: vector,
		Size:   limit * 2,
		K:      limit * 2,
	}

	degraded := false
	hits, err := s.index.Search(ctx, q)
	if errors.Is(err, ports.ErrVectorUnsupported) {
		log.WithError(err).Warn("vector clause rejected, retrying lexical-only")
		degraded = true
		q.LexicalOnly = true
		hits, err = s.index.Search(ctx, q)
	}
	if err != nil {
		log.WithError(err).Error("search failed")
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	results := rank(hits, threshold, limit)

	log.WithFields(logrus.Fields{
		"raw_hits":        len(hits),
		"results":         len(results),
		"vector_degraded": degraded,
	}).Info("search completed")

	return &domain.SearchResponse{
		Query:      query,
		Results:    results,
		TotalFound: len(results),
		Embedding:  describeEmbedding(vector),
		Metadata:   domain.SearchMetadata{Limit: limit, VectorDegraded: degraded},
		Threshold:  threshold,
	}, nil
}

// rank deduplicates raw hits by canonical key, filters by threshold and
// orders the survivors.
func rank(hits []domain.SearchHit, threshold float64, limit int) []domain.RankedResult {
	type group struct {
		best domain.SearchHit
		dup  bool
	}

	byKey := make(map[string]*group)
	order := make([]*group, 0, len(hits))

	for _, h := range hits {
		key := domain.KeyFor(h.DOI, h.Title)
		if key.Kind == domain.KeyNone {
			// No usable identity; keep the hit but never merge it.
			order = append(order, &group{best: h})
			continue
		}

		mapKey := fmt.Sprintf("%d:%s", key.Kind, key.Value)
		if g, ok := byKey[mapKey]; ok {
			if h.RawScore > g.best.RawScore {
				g.best = h
			}
			continue
		}
		g := &group{best: h, dup: true}
		byKey[mapKey] = g
		order = append(order, g)
	}

	results := make([]domain.RankedResult, 0, len(order))
	for _, g := range order {
		if g.best.RawScore < threshold {
			continue
		}
		results = append(results, domain.RankedResult{
			Title:          g.best.Title,
			DOI:            g.best.DOI,
			Abstract:       g.best.Abstract,
			Year:           g.best.Year,
			Source:         g.best.Source,
			RelevanceScore: relevance(g.best.RawScore),
			ContentPreview: preview(g.best),
			Channel:        g.best.Channel,
			Deduplicated:   g.dup,
			RawScore:       g.best.RawScore,
			Content:        g.best.Content,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RawScore != results[j].RawScore {
			return results[i].RawScore > results[j].RawScore
		}
		if results[i].Year != results[j].Year {
			return results[i].Year > results[j].Year
		}
		return resultKey(results[i]) < resultKey(results[j])
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// resultKey is the deterministic tiebreaker for equal score and year.
func resultKey(r domain.RankedResult) string {
	if r.DOI != "" {
		return r.DOI
	}
	return r.Title
}

// relevance maps an engine-native score to a 0-100 display scale with
// two decimals.
func relevance(raw float64) float64 {
	return math.Round(raw*100*100) / 100
}

// preview returns a short excerpt, preferring the backend highlight.
func preview(h domain.SearchHit) string {
	if h.Highlight != "" {
		return h.Highlight
	}
	text := h.Content
	if text == "" {
		text = h.Abstract
	}
	if len(text) > previewChars {
		return domain.Truncate(text, previewChars) + "..."
	}
	return text
}

// describeEmbedding summarizes the query vector for the response payload.
func describeEmbedding(vector []float32) domain.QueryEmbedding {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	previewLen := 10
	if len(vector) < previewLen {
		previewLen = len(vector)
	}
	return domain.QueryEmbedding{
		Dimension: len(vector),
		Norm:      math.Sqrt(sum),
		Preview:   vector[:previewLen],
	}
}
