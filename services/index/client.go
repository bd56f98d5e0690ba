package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/sirupsen/logrus"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
)

// Client implements ports.SearchIndex over an OpenSearch-compatible
// backend holding both the lexical fields and the knn vector field.
type Client struct {
	os        *opensearch.Client
	indexName string
	vectorDim int
}

var _ ports.SearchIndex = (*Client)(nil)

// NewClient connects to the search backend and verifies it is reachable.
func NewClient(cfg config.IndexConfig) (*Client, error) {
	log := logrus.WithField("endpoint", cfg.Endpoint)
	log.Info("connecting to search backend")

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.Endpoint},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	c := &Client{os: osClient, indexName: cfg.Name, vectorDim: cfg.VectorDim}

	// Simple health check, same as on the vector-store side.
	res, err := opensearchapi.PingRequest{}.Do(context.Background(), osClient)
	if err != nil {
		log.WithError(err).Error("search backend health check failed")
		return nil, fmt.Errorf("search backend health check failed: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search backend health check failed: %s", res.Status())
	}

	log.Info("successfully connected to search backend")
	return c, nil
}

// EnsureIndex checks whether the article index exists and creates it
// with the lexical + knn mappings if it doesn't.
func (c *Client) EnsureIndex(ctx context.Context) error {
	log := logrus.WithField("index_name", c.indexName)

	res, err := opensearchapi.IndicesExistsRequest{Index: []string{c.indexName}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("could not check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Info("index already exists")
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status checking index: %s", res.Status())
	}

	log.Info("index not found, creating it now...")

	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"title":               map[string]any{"type": "text"},
				"abstract":            map[string]any{"type": "text"},
				"content":             map[string]any{"type": "text"},
				"doi":                 map[string]any{"type": "keyword"},
				"source":              map[string]any{"type": "keyword"},
				"year":                map[string]any{"type": "integer"},
				"ingestion_timestamp": map[string]any{"type": "date"},
				"vector": map[string]any{
					"type":      "knn_vector",
					"dimension": c.vectorDim,
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	res, err = opensearchapi.IndicesCreateRequest{
		Index: c.indexName,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("could not create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("could not create index: %s", res.Status())
	}

	log.Info("index created successfully")
	return nil
}

// Upsert writes an article under the given document id. Repeated writes
// with the same id overwrite in place, making ingestion retries safe.
func (c *Client) Upsert(ctx context.Context, docID string, article domain.Article) error {
	body, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: docID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", docID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("upsert document %s: %s", docID, res.Status())
	}
	return nil
}

// Count returns the number of indexed documents, optionally filtered by
// source tag.
func (c *Client) Count(ctx context.Context, sourceTag string) (int, error) {
	query := map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	if sourceTag != "" {
		query = map[string]any{"query": map[string]any{"term": map[string]any{"source": sourceTag}}}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("marshal count query: %w", err)
	}

	n, err := c.count(ctx, body)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// count runs a raw count query body.
func (c *Client) count(ctx context.Context, body []byte) (int, error) {
	res, err := opensearchapi.CountRequest{
		Index: []string{c.indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if res.IsError() {
		return 0, &backendError{status: res.StatusCode, payload: string(payload)}
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count, nil
}

// AggregateTerms buckets documents by the given keyword field.
func (c *Client) AggregateTerms(ctx context.Context, field string, size int) (map[string]int, error) {
	body, err := json.Marshal(map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"buckets": map[string]any{
				"terms": map[string]any{"field": field, "size": size},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal aggregation query: %w", err)
	}

	raw, err := c.search(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", field, err)
	}

	var out struct {
		Aggregations struct {
			Buckets struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode aggregation response: %w", err)
	}

	buckets := make(map[string]int, len(out.Aggregations.Buckets.Buckets))
	for _, b := range out.Aggregations.Buckets.Buckets {
		buckets[b.Key] = b.DocCount
	}
	return buckets, nil
}

// search runs a raw query body and returns the raw response payload.
func (c *Client) search(ctx context.Context, body []byte) ([]byte, error) {
	res, err := opensearchapi.SearchRequest{
		Index: []string{c.indexName},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.IsError() {
		return nil, &backendError{status: res.StatusCode, payload: string(payload)}
	}
	return payload, nil
}

// backendError keeps the backend's error payload for classification.
type backendError struct {
	status  int
	payload string
}

func (e *backendError) Error() string {
	return fmt.Sprintf("search backend returned %d: %s", e.status, e.payload)
}

// isVectorRejection reports whether a backend error looks like a rejected
// knn clause (legacy documents or indexes without the vector mapping).
func isVectorRejection(err error) bool {
	be, ok := err.(*backendError)
	if !ok || be.status != http.StatusBadRequest {
		return false
	}
	reason := strings.ToLower(be.payload)
	return strings.Contains(reason, "knn") || strings.Contains(reason, "vector")
}
