// Package pipeline runs one crawl: walk the listing pages, enrich every record
// from its detail page, merge, export, and optionally persist and announce
// the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/export"
	"github.com/JakeFAU/catalogue-crawler/internal/walker"
)

// ErrNoData reports a run that gathered no summary records. Nothing is
// exported in that case.
var ErrNoData = errors.New("no data to save")

// Walker gathers summary records from listing pages.
type Walker interface {
	Walk(ctx context.Context, seedURL string, maxPages int) walker.Result
}

// Enricher attaches detail fragments to records.
type Enricher interface {
	EnrichAll(ctx context.Context, records []catalogue.SummaryRecord, concurrency int) []catalogue.Enrichment
}

// Exporter writes merged rows.
type Exporter interface {
	Export(ctx context.Context, rows []catalogue.OutputRow) (export.Result, error)
}

// Deps are the collaborators of a Pipeline. Rows and Publisher are optional.
type Deps struct {
	Walker    Walker
	Enricher  Enricher
	Exporter  Exporter
	Rows      catalogue.RowStore
	Publisher catalogue.Publisher
	// Topic receives the run summary when Publisher is set.
	Topic  string
	Clock  catalogue.Clock
	IDs    catalogue.IDGenerator
	Logger *zap.Logger
}

// Params select what a single run crawls.
type Params struct {
	SeedURL  string
	MaxPages int
	Workers  int
}

// Summary describes a finished run. It is also the completion notice payload.
type Summary struct {
	RunID        string            `json:"run_id"`
	SeedURL      string            `json:"seed_url"`
	PagesVisited int               `json:"pages_visited"`
	Stop         walker.StopReason `json:"stop_reason"`
	Records      int               `json:"records"`
	Enriched     int               `json:"enriched"`
	Fallbacks    int               `json:"fallbacks"`
	RowsWritten  int               `json:"rows_written"`
	URI          string            `json:"uri,omitempty"`
	Digest       string            `json:"sha256,omitempty"`
	Schema       []string          `json:"schema,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// Pipeline wires the crawl stages together.
type Pipeline struct {
	deps   Deps
	logger *zap.Logger
}

// New validates deps and builds a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Walker == nil:
		return nil, fmt.Errorf("walker is required")
	case deps.Enricher == nil:
		return nil, fmt.Errorf("enricher is required")
	case deps.Exporter == nil:
		return nil, fmt.Errorf("exporter is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: logger}, nil
}

// Run executes one crawl. A run that gathers no records returns ErrNoData
// alongside its summary; an export failure fails the run. Row persistence and
// the completion notice are best effort.
func (p *Pipeline) Run(ctx context.Context, params Params) (Summary, error) {
	if params.SeedURL == "" {
		return Summary{}, fmt.Errorf("seed url is required")
	}
	runID, err := p.deps.IDs.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	sum := Summary{
		RunID:     runID,
		SeedURL:   params.SeedURL,
		StartedAt: p.deps.Clock.Now(),
	}
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("run started",
		zap.String("seed_url", params.SeedURL),
		zap.Int("max_pages", params.MaxPages),
		zap.Int("workers", params.Workers),
	)

	walked := p.deps.Walker.Walk(ctx, params.SeedURL, params.MaxPages)
	sum.PagesVisited = walked.PagesVisited
	sum.Stop = walked.Stop
	sum.Records = len(walked.Records)
	logger.Info("catalogue walk finished",
		zap.Int("pages", walked.PagesVisited),
		zap.Int("records", len(walked.Records)),
		zap.String("stop_reason", string(walked.Stop)),
	)

	if len(walked.Records) == 0 {
		if _, err := p.deps.Exporter.Export(ctx, nil); err != nil {
			return p.finish(sum), fmt.Errorf("export: %w", err)
		}
		return p.finish(sum), ErrNoData
	}

	enriched := p.deps.Enricher.EnrichAll(ctx, walked.Records, params.Workers)
	for _, e := range enriched {
		if e.Fragment != nil {
			sum.Enriched++
		} else {
			sum.Fallbacks++
		}
	}

	rows := catalogue.MergeAll(enriched)
	res, err := p.deps.Exporter.Export(ctx, rows)
	if err != nil {
		return p.finish(sum), fmt.Errorf("export: %w", err)
	}
	sum.RowsWritten = res.Rows
	sum.URI = res.URI
	sum.Digest = res.Digest
	sum.Schema = res.Schema

	if p.deps.Rows != nil {
		if err := p.deps.Rows.SaveRows(ctx, runID, rows); err != nil {
			logger.Warn("row persistence failed", zap.Error(err))
		} else {
			logger.Debug("rows persisted", zap.Int("rows", len(rows)))
		}
	}

	sum = p.finish(sum)
	p.announce(ctx, logger, sum)
	logger.Info("run finished",
		zap.Int("records", sum.Records),
		zap.Int("enriched", sum.Enriched),
		zap.Int("fallbacks", sum.Fallbacks),
		zap.String("uri", sum.URI),
		zap.Duration("duration", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (p *Pipeline) finish(sum Summary) Summary {
	sum.FinishedAt = p.deps.Clock.Now()
	return sum
}

func (p *Pipeline) announce(ctx context.Context, logger *zap.Logger, sum Summary) {
	if p.deps.Publisher == nil || p.deps.Topic == "" {
		return
	}
	id, err := p.deps.Publisher.Publish(ctx, p.deps.Topic, sum)
	if err != nil {
		logger.Warn("completion notice failed", zap.String("topic", p.deps.Topic), zap.Error(err))
		return
	}
	logger.Debug("completion notice published", zap.String("topic", p.deps.Topic), zap.String("message_id", id))
}
