package domain

import "time"

// Article is the canonical indexed entity. The vector stays nil until the
// article has been embedded; a backfill pass picks those up later.
type Article struct {
	ID                 string    `json:"id"`
	DOI                string    `json:"doi,omitempty"`
	Title              string    `json:"title"`
	Abstract           string    `json:"abstract,omitempty"`
	Content            string    `json:"content,omitempty"`
	Year               int       `json:"year,omitempty"`
	Source             string    `json:"source"`
	Vector             []float32 `json:"vector,omitempty"`
	IngestionTimestamp time.Time `json:"ingestion_timestamp"`
}

// ArticleStub is the listing-level view returned by the literature API
// before full content has been fetched.
type ArticleStub struct {
	DOI     string
	Title   string
	PubDate string
	Journal string
	Year    int
}

// ArticleContent is the full-text payload for a single article.
type ArticleContent struct {
	Title    string
	Abstract string
	Body     string
}

// MatchChannel records which side of the hybrid query produced a hit.
type MatchChannel string

const (
	ChannelLexical MatchChannel = "lexical"
	ChannelVector  MatchChannel = "vector"
	ChannelBoth    MatchChannel = "both"
)

// SearchHit is a single raw hit from the index. Raw scores are
// engine-native and only comparable within one query.
type SearchHit struct {
	ID        string
	DOI       string
	Title     string
	Abstract  string
	Content   string
	Year      int
	Source    string
	RawScore  float64
	Channel   MatchChannel
	Highlight string
}

// RankedResult is the post-deduplication view of an article: at most one
// per canonical key, with a display score normalized to 0-100.
type RankedResult struct {
	Title          string       `json:"title"`
	DOI            string       `json:"doi,omitempty"`
	Abstract       string       `json:"abstract,omitempty"`
	Year           int          `json:"year,omitempty"`
	Source         string       `json:"source"`
	RelevanceScore float64      `json:"relevance_score"`
	ContentPreview string       `json:"content_preview,omitempty"`
	Channel        MatchChannel `json:"matched_channel"`
	Deduplicated   bool         `json:"-"`

	// RawScore keeps the engine-native score for internal comparisons.
	RawScore float64 `json:"-"`

	// Content carries the full article text for context building; it is
	// never serialized into search responses.
	Content string `json:"-"`
}

// QueryEmbedding describes the query vector attached to a search response
// for observability. Never persisted.
type QueryEmbedding struct {
	Dimension int       `json:"dimension"`
	Norm      float64   `json:"vector_norm"`
	Preview   []float32 `json:"vector_preview,omitempty"`
}

// SearchMetadata reports how the query was actually executed.
type SearchMetadata struct {
	Limit          int  `json:"limit"`
	VectorDegraded bool `json:"vector_degraded"`
}

// SearchResponse is the RetrievalEngine's result for one query.
type SearchResponse struct {
	Query      string         `json:"query"`
	Results    []RankedResult `json:"results"`
	TotalFound int            `json:"total_found"`
	Embedding  QueryEmbedding `json:"query_embedding"`
	Metadata   SearchMetadata `json:"search_params"`
	Threshold  float64        `json:"threshold"`
}

// IndexStats summarizes the index contents by source.
type IndexStats struct {
	TotalArticles int            `json:"total_articles"`
	Sources       map[string]int `json:"sources"`
	IndexName     string         `json:"index_name"`
	Status        string         `json:"status"`
}
