package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medrag/internal/domain"
	"medrag/internal/ports"
)

// lexicalClauseName tags the lexical clause so hits report which side of
// the hybrid query they matched through.
const lexicalClauseName = "lexical"

// hitFields is the _source projection shared by all hit-returning queries.
var hitFields = []string{"title", "doi", "abstract", "content", "year", "source", "ingestion_timestamp"}

// buildQueryBody translates a HybridQuery into the backend query DSL.
// The lexical clause weighs title over abstract over content; the knn
// clause is slightly down-weighted so exact phrase matches stay on top.
func (c *Client) buildQueryBody(q ports.HybridQuery) map[string]any {
	lexical := map[string]any{
		"multi_match": map[string]any{
			"query":  q.Text,
			"fields": []string{"title^3", "abstract^2", "content"},
			"boost":  1.2,
			"_name":  lexicalClauseName,
		},
	}

	should := []any{lexical}
	if !q.LexicalOnly && len(q.Vector) > 0 {
		should = append(should, map[string]any{
			"knn": map[string]any{
				"vector": map[string]any{
					"vector": q.Vector,
					"k":      q.K,
					"boost":  0.8,
				},
			},
		})
	}

	return map[string]any{
		"size":    q.Size,
		"_source": hitFields,
		"query": map[string]any{
			"bool": map[string]any{"should": should},
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				"abstract": map[string]any{"fragment_size": 200, "number_of_fragments": 1},
				"content":  map[string]any{"fragment_size": 200, "number_of_fragments": 1},
			},
		},
	}
}

type hitSource struct {
	DOI                string    `json:"doi"`
	Title              string    `json:"title"`
	Abstract           string    `json:"abstract"`
	Content            string    `json:"content"`
	Year               int       `json:"year"`
	Source             string    `json:"source"`
	IngestionTimestamp time.Time `json:"ingestion_timestamp"`
}

type searchEnvelope struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    hitSource           `json:"_source"`
			Matched   []string            `json:"matched_queries"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs one hybrid (or lexical-only) query and returns raw hits.
// A backend rejection of the knn clause surfaces as ErrVectorUnsupported
// so the caller can degrade to lexical-only.
func (c *Client) Search(ctx context.Context, q ports.HybridQuery) ([]domain.SearchHit, error) {
	body, err := json.Marshal(c.buildQueryBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	raw, err := c.search(ctx, body)
	if err != nil {
		if !q.LexicalOnly && isVectorRejection(err) {
			return nil, fmt.Errorf("%w: %v", ports.ErrVectorUnsupported, err)
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	var out searchEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hybrid := !q.LexicalOnly && len(q.Vector) > 0
	hits := make([]domain.SearchHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, domain.SearchHit{
			ID:        h.ID,
			DOI:       h.Source.DOI,
			Title:     h.Source.Title,
			Abstract:  h.Source.Abstract,
			Content:   h.Source.Content,
			Year:      h.Source.Year,
			Source:    h.Source.Source,
			RawScore:  h.Score,
			Channel:   channelFor(hybrid, h.Matched),
			Highlight: firstHighlight(h.Highlight),
		})
	}
	return hits, nil
}

// channelFor attributes a hit to the lexical and/or vector clause. The
// knn clause cannot carry a name, so under a hybrid query a hit that also
// matched the named lexical clause counts as both.
func channelFor(hybrid bool, matched []string) domain.MatchChannel {
	lexical := false
	for _, name := range matched {
		if name == lexicalClauseName {
			lexical = true
		}
	}
	if !hybrid {
		return domain.ChannelLexical
	}
	if lexical {
		return domain.ChannelBoth
	}
	return domain.ChannelVector
}

func firstHighlight(highlight map[string][]string) string {
	for _, field := range []string{"abstract", "content"} {
		if fragments := highlight[field]; len(fragments) > 0 {
			return fragments[0]
		}
	}
	return ""
}

// HasArticle reports whether an article with the given canonical key is
// already indexed. DOI keys use an exact match; title keys use a phrase
// match, which is best-effort against formatting drift. Non-deduplicable
// keys always report false.
func (c *Client) HasArticle(ctx context.Context, key domain.CanonicalKey) (bool, error) {
	var query map[string]any
	switch key.Kind {
	case domain.KeyDOI:
		query = map[string]any{"term": map[string]any{"doi": key.Value}}
	case domain.KeyTitle:
		query = map[string]any{"match_phrase": map[string]any{"title": key.Value}}
	default:
		return false, nil
	}

	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return false, fmt.Errorf("marshal lookup query: %w", err)
	}

	res, err := c.count(ctx, body)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key.Value, err)
	}
	return res > 0, nil
}

// GetByDOI fetches a single article by exact DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Article, error) {
	body, err := json.Marshal(map[string]any{
		"size":    1,
		"_source": hitFields,
		"query":   map[string]any{"term": map[string]any{"doi": doi}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal lookup query: %w", err)
	}

	raw, err := c.search(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", doi, err)
	}

	var out searchEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(out.Hits.Hits) == 0 {
		return nil, fmt.Errorf("article %s: %w", doi, ports.ErrNotFound)
	}

	h := out.Hits.Hits[0]
	return &domain.Article{
		ID:                 h.ID,
		DOI:                h.Source.DOI,
		Title:              h.Source.Title,
		Abstract:           h.Source.Abstract,
		Content:            h.Source.Content,
		Year:               h.Source.Year,
		Source:             h.Source.Source,
		IngestionTimestamp: h.Source.IngestionTimestamp,
	}, nil
}

// MissingVector lists articles indexed without an embedding, oldest
// ingestion first, for the backfill pass.
func (c *Client) MissingVector(ctx context.Context, limit int) ([]domain.Article, error) {
	body, err := json.Marshal(map[string]any{
		"size":    limit,
		"_source": hitFields,
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": map[string]any{"exists": map[string]any{"field": "vector"}},
			},
		},
		"sort": []any{map[string]any{"ingestion_timestamp": map[string]any{"order": "asc"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal backfill query: %w", err)
	}

	raw, err := c.search(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("list articles missing vectors: %w", err)
	}

	var out searchEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode backfill response: %w", err)
	}

	articles := make([]domain.Article, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		articles = append(articles, domain.Article{
			ID:                 h.ID,
			DOI:                h.Source.DOI,
			Title:              h.Source.Title,
			Abstract:           h.Source.Abstract,
			Content:            h.Source.Content,
			Year:               h.Source.Year,
			Source:             h.Source.Source,
			IngestionTimestamp: h.Source.IngestionTimestamp,
		})
	}
	return articles, nil
}
