package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/ports"
)

// ErrAlreadyRunning reports that an ingestion run is already in flight;
// only one run may execute at a time.
var ErrAlreadyRunning = errors.New("an ingestion run is already in progress")

// Deps are the collaborators the ingestion pipeline needs.
type Deps struct {
	Source   ports.ArticleSource
	Index    ports.SearchIndex
	Embedder ports.Embedder
	Cfg      config.Config
}

// Service runs the duplicate-avoiding ingestion pipeline: discover new
// articles page by page, fetch their full text, embed and index them.
type Service struct {
	deps     Deps
	progress Progress
}

// NewService wires the ingestion pipeline.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// Status returns a snapshot of the current (or last) run.
func (s *Service) Status() Status {
	return s.progress.Snapshot()
}

// Cancel asks the in-flight run to stop at the next article boundary.
func (s *Service) Cancel() bool {
	return s.progress.Cancel()
}

// Start launches an ingestion run in the background. The claim on the
// tracker is taken synchronously so a concurrent start fails fast.
func (s *Service) Start(sourceTag string, count int) error {
	if !s.progress.begin(sourceTag, count) {
		return ErrAlreadyRunning
	}
	go s.execute(context.Background(), sourceTag, count)
	return nil
}

// Ingest runs an ingestion run synchronously and returns the final
// report. Used by the CLI path.
func (s *Service) Ingest(ctx context.Context, sourceTag string, count int) (*domain.IngestionRun, error) {
	if !s.progress.begin(sourceTag, count) {
		return nil, ErrAlreadyRunning
	}
	s.execute(ctx, sourceTag, count)

	status := s.progress.Snapshot()
	if status.Run.State == domain.RunFailed {
		return status.Run, fmt.Errorf("ingestion run failed")
	}
	return status.Run, nil
}

// candidate is a listing stub that passed the duplicate check.
type candidate struct {
	stub domain.ArticleStub
	key  domain.CanonicalKey
}

func (s *Service) execute(ctx context.Context, sourceTag string, count int) {
	log := logrus.WithFields(logrus.Fields{"source": sourceTag, "requested": count})
	log.Info("ingestion run started")

	candidates, err := s.discover(ctx, sourceTag, count)
	if err != nil {
		log.WithError(err).Error("discovery failed")
		s.progress.finish(domain.RunFailed)
		return
	}

	s.progress.update(func(run *domain.IngestionRun) {
		run.FoundUniqueCount = len(candidates)
	})
	log.WithField("found_unique", len(candidates)).Info("discovery completed")

	for _, c := range candidates {
		if s.progress.isCancelled() {
			log.Warn("ingestion run cancelled")
			break
		}
		s.ingestOne(ctx, sourceTag, c)
	}

	s.progress.finish(domain.RunCompleted)
	log.Info("ingestion run finished")
}

// discover walks listing pages newest-first and collects up to count
// articles not yet in the index. Page 1 always gets checked; when it is
// exhausted, discovery jumps near the backfill frontier estimated from
// the current index size, bounded by a few extra pages.
func (s *Service) discover(ctx context.Context, sourceTag string, count int) ([]candidate, error) {
	s.progress.update(func(run *domain.IngestionRun) { run.State = domain.RunDiscovering })

	pageSize := s.deps.Cfg.Source.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	existing, err := s.deps.Index.Count(ctx, sourceTag)
	if err != nil {
		return nil, fmt.Errorf("count existing articles: %w", err)
	}

	var candidates []candidate
	seen := make(map[string]bool)

	scan := func(page int) (empty bool, err error) {
		stubs, err := s.deps.Source.ListPage(ctx, sourceTag, page, pageSize)
		if err != nil {
			return false, fmt.Errorf("list page %d: %w", page, err)
		}
		for _, stub := range stubs {
			if len(candidates) >= count {
				break
			}
			key := domain.KeyFor(stub.DOI, stub.Title)
			if key.Kind == domain.KeyNone {
				s.progress.update(func(run *domain.IngestionRun) { run.Skip(domain.SkipNoKey) })
				continue
			}
			mapKey := fmt.Sprintf("%d:%s", key.Kind, key.Value)
			if seen[mapKey] {
				continue
			}
			seen[mapKey] = true

			exists, err := s.deps.Index.HasArticle(ctx, key)
			if err != nil {
				return false, fmt.Errorf("duplicate check: %w", err)
			}
			if exists {
				continue
			}
			candidates = append(candidates, candidate{stub: stub, key: key})
		}
		return len(stubs) == 0, nil
	}

	// Newest publications first.
	if _, err := scan(1); err != nil {
		return nil, err
	}

	if len(candidates) < count {
		// Jump to where previous runs likely stopped: the index already
		// holds roughly existing/pageSize full pages. Best-effort; the
		// duplicate check keeps overlapping pages harmless.
		start := existing/pageSize + 1
		if start < 2 {
			start = 2
		}
		for page := start; page < start+s.deps.Cfg.Ingest.MaxExtraPages && len(candidates) < count; page++ {
			empty, err := scan(page)
			if err != nil {
				return nil, err
			}
			if empty {
				break
			}
		}
	}

	return candidates, nil
}

// ingestOne fetches, embeds and indexes a single candidate. Any failing
// step skips the article and tallies the reason, so the run report adds
// up: ingested + per-candidate skips equals the unique candidates found.
func (s *Service) ingestOne(ctx context.Context, sourceTag string, c candidate) {
	log := logrus.WithFields(logrus.Fields{"doi": c.stub.DOI, "title": c.stub.Title})

	s.progress.update(func(run *domain.IngestionRun) { run.State = domain.RunFetching })
	content, err := s.deps.Source.FetchContent(ctx, c.stub.DOI, sourceTag)
	if err != nil {
		log.WithError(err).Warn("content fetch failed, skipping article")
		s.progress.update(func(run *domain.IngestionRun) { run.Skip(domain.SkipNoContent) })
		return
	}

	title := content.Title
	if title == "" {
		title = c.stub.Title
	}
	if content.Abstract == "" && content.Body == "" {
		log.Warn("article has no text content, skipping")
		s.progress.update(func(run *domain.IngestionRun) { run.Skip(domain.SkipNoContent) })
		return
	}

	article := domain.Article{
		ID:                 docID(c.stub.DOI),
		DOI:                c.stub.DOI,
		Title:              title,
		Abstract:           content.Abstract,
		Content:            content.Body,
		Year:               c.stub.Year,
		Source:             sourceTag,
		IngestionTimestamp: time.Now().UTC(),
	}

	s.progress.update(func(run *domain.IngestionRun) { run.State = domain.RunEmbedding })
	embedText := strings.TrimSpace(title + "\n" + content.Abstract + "\n" + content.Body)
	vector, err := s.deps.Embedder.Embed(ctx, embedText)
	if err != nil {
		log.WithError(err).Warn("embedding failed, skipping article")
		s.progress.update(func(run *domain.IngestionRun) { run.Skip(domain.SkipEmbeddingFailed) })
		return
	}
	article.Vector = vector

	s.progress.update(func(run *domain.IngestionRun) { run.State = domain.RunStoring })
	if err := s.upsertWithRetry(ctx, article); err != nil {
		log.WithError(err).Error("indexing failed, skipping article")
		s.progress.update(func(run *domain.IngestionRun) { run.Skip(domain.SkipIndexingFailed) })
		return
	}

	s.progress.update(func(run *domain.IngestionRun) {
		run.IngestedCount++
		run.Articles = append(run.Articles, domain.IngestedArticle{
			Title:   title,
			DOI:     c.stub.DOI,
			PubDate: c.stub.PubDate,
		})
	})
	log.Info("article ingested")
}

// upsertWithRetry retries transient index write failures with a fixed
// delay. The write is idempotent, keyed by the document id.
func (s *Service) upsertWithRetry(ctx context.Context, article domain.Article) error {
	var err error
	for attempt := 0; attempt <= s.deps.Cfg.Ingest.UpsertRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.deps.Cfg.Ingest.RetryDelay)
		}
		if err = s.deps.Index.Upsert(ctx, article.ID, article); err == nil {
			return nil
		}
	}
	return err
}

// docID derives a stable document id from the DOI; slashes and dots are
// not safe in document ids. Articles without a DOI get a random id.
func docID(doi string) string {
	if strings.TrimSpace(doi) == "" {
		return uuid.NewString()
	}
	replacer := strings.NewReplacer("/", "_", ".", "_")
	return replacer.Replace(doi)
}
