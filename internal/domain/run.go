package domain

// RunState tracks the ingestion run through its lifecycle.
type RunState string

const (
	RunStarted     RunState = "started"
	RunDiscovering RunState = "discovering"
	RunFetching    RunState = "fetching"
	RunEmbedding   RunState = "embedding"
	RunStoring     RunState = "storing"
	RunCompleted   RunState = "completed"
	RunFailed      RunState = "failed"
)

// Per-candidate skip reasons tallied into the run report.
const (
	SkipNoContent       = "no_content"
	SkipEmbeddingFailed = "embedding_failed"
	SkipIndexingFailed  = "indexing_failed"
	SkipNoKey           = "no_key"
)

// IngestedArticle is the brief per-article summary in a run report.
type IngestedArticle struct {
	Title   string `json:"title"`
	DOI     string `json:"doi,omitempty"`
	PubDate string `json:"date,omitempty"`
}

// IngestionRun is the report for a single ingestion run. It is built
// while the run executes and returned to the caller; it is not persisted.
type IngestionRun struct {
	Source           string            `json:"source"`
	State            RunState          `json:"state"`
	RequestedCount   int               `json:"requested_count"`
	FoundUniqueCount int               `json:"found_unique_count"`
	IngestedCount    int               `json:"ingested_count"`
	SkipReasons      map[string]int    `json:"skip_reasons"`
	Articles         []IngestedArticle `json:"articles"`
}

// Skip tallies a per-candidate skip reason.
func (r *IngestionRun) Skip(reason string) {
	if r.SkipReasons == nil {
		r.SkipReasons = map[string]int{}
	}
	r.SkipReasons[reason]++
}
