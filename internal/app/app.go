// Package app builds the long-lived services of one crawl from configuration
// and acts as the dependency container handed to the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/clock/system"
	"github.com/JakeFAU/catalogue-crawler/internal/config"
	"github.com/JakeFAU/catalogue-crawler/internal/enricher"
	"github.com/JakeFAU/catalogue-crawler/internal/export"
	collyfetcher "github.com/JakeFAU/catalogue-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalogue-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalogue-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalogue-crawler/internal/pipeline"
	"github.com/JakeFAU/catalogue-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalogue-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalogue-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalogue-crawler/internal/storage/local"
	"github.com/JakeFAU/catalogue-crawler/internal/storage/postgres"
	"github.com/JakeFAU/catalogue-crawler/internal/walker"
)

// App holds the services wired for a crawl.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	closers  []closer
}

type closer struct {
	name  string
	close func() error
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Pipeline returns the wired crawl pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Params returns the run parameters implied by the configuration.
func (a *App) Params() pipeline.Params {
	return pipeline.Params{
		SeedURL:  a.cfg.Catalogue.BaseURL,
		MaxPages: a.cfg.Catalogue.MaxPages,
		Workers:  a.cfg.Enricher.Workers,
	}
}

// New wires every service named by cfg. Cloud sinks are only dialed when
// configured; the export goes to the local filesystem unless a GCS bucket is
// set. On error, anything already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	resolver, err := catalogue.NewResolver(cfg.Catalogue.BaseURL, cfg.Catalogue.PathSegment)
	if err != nil {
		return nil, fmt.Errorf("catalogue resolver: %w", err)
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	}, logger.Named("fetcher"))

	var enricherOpts []enricher.Option
	if cfg.Enricher.RequestsPerSecond > 0 {
		enricherOpts = append(enricherOpts, enricher.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Enricher.RequestsPerSecond,
			DefaultBurst: cfg.Enricher.Burst,
		})))
	}

	store, object, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(store, sha256.New(), export.Config{
		Object:      object,
		ContentType: cfg.Output.ContentType,
	}, logger.Named("export"))
	if err != nil {
		return nil, fmt.Errorf("exporter: %w", err)
	}

	deps := pipeline.Deps{
		Walker: walker.New(fetcher, resolver, walker.Config{
			DelayMin: cfg.Walker.DelayMin,
			DelayMax: cfg.Walker.DelayMax,
		}, logger.Named("walker")),
		Enricher: enricher.New(fetcher, logger.Named("enricher"), enricherOpts...),
		Exporter: exporter,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Logger:   logger.Named("pipeline"),
	}

	if cfg.DB.DSN != "" {
		rows, err := postgres.NewRowStore(ctx, postgres.RowStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("row store: %w", err)
		}
		a.track("postgres", func() error { rows.Close(); return nil })
		deps.Rows = rows
		logger.Info("Persisting rows to Postgres", zap.String("table", cfg.DB.Table))
	}

	if cfg.PubSub.TopicName != "" {
		pub, err := pubsub.Open(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("publisher: %w", err)
		}
		a.track("pubsub", pub.Close)
		deps.Publisher = pub
		deps.Topic = cfg.PubSub.TopicName
		logger.Info("Publishing run summaries", zap.String("topic", cfg.PubSub.TopicName))
	}

	p, err := pipeline.New(deps)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a.pipeline = p
	return a, nil
}

func (a *App) openBlobStore(ctx context.Context) (catalogue.BlobStore, string, error) {
	dir, object := a.cfg.Destination()
	if a.cfg.Output.GCSBucket != "" {
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Output.GCSBucket})
		if err != nil {
			return nil, "", fmt.Errorf("gcs store: %w", err)
		}
		a.track("gcs", store.Close)
		a.logger.Info("Using GCS output", zap.String("bucket", a.cfg.Output.GCSBucket), zap.String("object", object))
		return store, object, nil
	}
	store, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		return nil, "", fmt.Errorf("local store: %w", err)
	}
	return store, object, nil
}

func (a *App) track(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Close releases every service in reverse order of creation. It is safe to
// call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("Error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
