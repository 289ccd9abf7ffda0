// Package enricher fetches detail pages for catalogue records with a fixed
// pool of workers.
package enricher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/metrics"
	"github.com/JakeFAU/catalogue-crawler/internal/queue/memory"
)

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithLimiter paces detail fetches through l.
func WithLimiter(l Limiter) Option {
	return func(e *Enricher) {
		e.limiter = l
	}
}

// Enricher turns summary records into enrichments.
type Enricher struct {
	fetcher catalogue.PageFetcher
	limiter Limiter
	logger  *zap.Logger
}

type job struct {
	index  int
	record catalogue.SummaryRecord
}

// New builds an Enricher.
func New(fetcher catalogue.PageFetcher, logger *zap.Logger, opts ...Option) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Enricher{
		fetcher: fetcher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichAll fetches the detail page of every record using at most concurrency
// workers. It returns one Enrichment per input record, in completion order.
// A record whose detail page could not be used carries a nil Fragment.
func (e *Enricher) EnrichAll(ctx context.Context, records []catalogue.SummaryRecord, concurrency int) []catalogue.Enrichment {
	if concurrency <= 0 {
		concurrency = 1
	}
	if len(records) == 0 {
		return []catalogue.Enrichment{}
	}
	workers := min(concurrency, len(records))

	// The queue holds every record up front so enqueueing never blocks.
	q := memory.NewQueue[job](len(records))
	for i, rec := range records {
		if err := q.Enqueue(context.Background(), job{index: i, record: rec}); err != nil {
			// Unreachable with a queue sized to the input.
			panic(fmt.Sprintf("enqueue detail job: %v", err))
		}
	}
	q.Close()

	results := make(chan catalogue.Enrichment, len(records))
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			e.work(ctx, w, q, results)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	out := make([]catalogue.Enrichment, 0, len(records))
	for res := range results {
		out = append(out, res)
		e.logger.Debug("detail progress",
			zap.Int("done", len(out)),
			zap.Int("total", len(records)),
		)
	}
	e.logger.Info("detail enrichment finished",
		zap.Int("records", len(records)),
		zap.Int("workers", workers),
	)
	return out
}

// work drains the queue. Queued jobs are always drained, even after ctx is
// done, so that every record yields exactly one result.
func (e *Enricher) work(ctx context.Context, id int, q *memory.Queue[job], results chan<- catalogue.Enrichment) {
	logger := e.logger.With(zap.Int("worker_id", id))
	for {
		j, err := q.Dequeue(context.Background())
		if err != nil {
			if !errors.Is(err, memory.ErrClosed) {
				logger.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			metrics.ObserveDetail(metrics.DetailFetchFailed)
			results <- catalogue.Enrichment{Record: j.record}
			continue
		}
		results <- e.enrichOne(ctx, logger, j)
	}
}

func (e *Enricher) enrichOne(ctx context.Context, logger *zap.Logger, j job) (out catalogue.Enrichment) {
	out = catalogue.Enrichment{Record: j.record}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker exception",
				zap.String("url", j.record.URL),
				zap.Any("panic", r),
			)
			metrics.ObserveDetail(metrics.DetailPanic)
			out.Fragment = nil
		}
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, j.record.URL); err != nil {
			logger.Warn("rate limit wait aborted", zap.String("url", j.record.URL), zap.Error(err))
			metrics.ObserveDetail(metrics.DetailFetchFailed)
			return out
		}
	}

	metrics.IncDetailInFlight()
	defer metrics.DecDetailInFlight()

	doc, err := e.fetcher.Fetch(ctx, j.record.URL)
	if err != nil {
		// The fetcher has already logged the failure.
		metrics.ObserveDetail(metrics.DetailFetchFailed)
		return out
	}
	fragment, err := catalogue.ExtractDetail(doc)
	if err != nil {
		logger.Warn("Error parsing detail page",
			zap.String("url", j.record.URL),
			zap.Error(err),
		)
		metrics.ObserveDetail(metrics.DetailParseFailed)
		return out
	}
	metrics.ObserveDetail(metrics.DetailOK)
	out.Fragment = &fragment
	return out
}
