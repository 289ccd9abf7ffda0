// Package walker follows a catalogue's "next page" links from a seed URL,
// collecting one summary record per item card.
//
// The walk is strictly sequential: the next URL is only known once the current
// page is parsed, and pages are paced by a randomized politeness pause.
package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/metrics"
)

// StopReason tells why a walk ended.
type StopReason string

// Walk termination reasons.
const (
	StopNoNextLink  StopReason = "no_next_link"
	StopPageBudget  StopReason = "page_budget"
	StopFetchFailed StopReason = "fetch_failed"
	StopParseFailed StopReason = "parse_failed"
	StopCanceled    StopReason = "canceled"
)

// Config bounds the pause between consecutive listing pages.
type Config struct {
	DelayMin time.Duration
	DelayMax time.Duration
}

// Result is the outcome of one walk.
type Result struct {
	Records      []catalogue.SummaryRecord
	PagesVisited int
	Stop         StopReason
}

// Walker traverses listing pages.
type Walker struct {
	fetcher  catalogue.PageFetcher
	resolver catalogue.Resolver
	cfg      Config
	pauser   Pauser
	jitter   JitterFunc
	logger   *zap.Logger
}

// Option customizes a Walker.
type Option func(*Walker)

// WithPauser replaces the timer-based pause.
func WithPauser(p Pauser) Option {
	return func(w *Walker) { w.pauser = p }
}

// WithJitter replaces the uniform delay picker.
func WithJitter(j JitterFunc) Option {
	return func(w *Walker) { w.jitter = j }
}

// New constructs a Walker.
func New(fetcher catalogue.PageFetcher, resolver catalogue.Resolver, cfg Config, logger *zap.Logger, opts ...Option) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Walker{
		fetcher:  fetcher,
		resolver: resolver,
		cfg:      cfg,
		pauser:   timerPauser{},
		jitter:   uniformJitter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// page is what one listing page contributes.
type page struct {
	records []catalogue.SummaryRecord
	skipped int
	next    string
}

// Walk visits at most maxPages listing pages starting at seedURL. It never
// fails as a whole: a page that cannot be fetched or parsed ends the walk and
// the records gathered so far are returned.
func (w *Walker) Walk(ctx context.Context, seedURL string, maxPages int) Result {
	var res Result
	current := seedURL

	for current != "" && res.PagesVisited < maxPages {
		if ctx.Err() != nil {
			res.Stop = StopCanceled
			return res
		}
		w.logger.Info("Scraping page",
			zap.String("url", current),
			zap.Int("page", res.PagesVisited+1),
			zap.Int("max_pages", maxPages),
		)

		doc, err := w.fetcher.Fetch(ctx, current)
		res.PagesVisited++
		if err != nil {
			// The fetcher has already logged the cause.
			metrics.ObservePage(false, 0, 0)
			res.Stop = StopFetchFailed
			if ctx.Err() != nil {
				res.Stop = StopCanceled
			}
			return res
		}

		p, err := w.scrapePage(doc, current)
		if err != nil {
			w.logger.Error("Error parsing catalogue page", zap.String("url", current), zap.Error(err))
			metrics.ObservePage(true, 0, 0)
			res.Stop = StopParseFailed
			return res
		}
		metrics.ObservePage(true, len(p.records), p.skipped)
		res.Records = append(res.Records, p.records...)
		w.logger.Debug("page scraped",
			zap.String("url", current),
			zap.Int("records", len(p.records)),
			zap.Int("skipped", p.skipped),
			zap.Int("total", len(res.Records)),
		)

		current = p.next
		if current == "" {
			res.Stop = StopNoNextLink
			break
		}
		if res.PagesVisited < maxPages {
			w.pauser.Pause(ctx, w.jitter(w.cfg.DelayMin, w.cfg.DelayMax))
		}
	}

	if res.Stop == "" {
		res.Stop = StopPageBudget
	}
	return res
}

// scrapePage extracts the cards and the next URL from one listing page. Any
// panic raised while reading the markup is confined to this page.
func (w *Walker) scrapePage(doc *goquery.Document, current string) (p page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected parse failure: %v", r)
		}
	}()

	records, skipped := catalogue.ExtractCards(doc, w.resolver)
	for _, s := range skipped {
		w.logger.Warn("Error parsing book card", zap.String("url", current), zap.Error(s))
	}
	p.records = records
	p.skipped = len(skipped)

	href := catalogue.ExtractNextHref(doc)
	if !href.OK() {
		return p, nil
	}
	next, rerr := w.resolver.NextURL(current, href.Value)
	if rerr != nil {
		w.logger.Warn("Unusable next page link", zap.String("url", current), zap.String("href", href.Value), zap.Error(rerr))
		return p, nil
	}
	p.next = next
	return p, nil
}
