package ingest

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// backfillWorkers bounds the concurrent embedding calls during a
// backfill pass.
const backfillWorkers = 4

// BackfillReport summarizes one backfill pass over vectorless articles.
type BackfillReport struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Backfill embeds and re-indexes articles that were stored without a
// vector. One bounded pass; callers repeat until Scanned is zero.
func (s *Service) Backfill(ctx context.Context, limit int) (*BackfillReport, error) {
	articles, err := s.deps.Index.MissingVector(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{Scanned: len(articles)}
	if len(articles) == 0 {
		return report, nil
	}

	var embedded, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)
	for _, article := range articles {
		article := article
		g.Go(func() error {
			log := logrus.WithField("doc_id", article.ID)

			text := strings.TrimSpace(article.Title + "\n" + article.Abstract + "\n" + article.Content)
			vector, err := s.deps.Embedder.Embed(ctx, text)
			if err != nil {
				log.WithError(err).Warn("backfill embedding failed")
				failed.Add(1)
				return nil
			}

			article.Vector = vector
			if err := s.deps.Index.Upsert(ctx, article.ID, article); err != nil {
				log.WithError(err).Warn("backfill reindex failed")
				failed.Add(1)
				return nil
			}

			embedded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Embedded = int(embedded.Load())
	report.Failed = int(failed.Load())

	logrus.WithFields(logrus.Fields{
		"scanned":  report.Scanned,
		"embedded": report.Embedded,
		"failed":   report.Failed,
	}).Info("vector backfill pass completed")
	return report, nil
}
