package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-quotes/config"
	"github.com/aluiziolira/go-scrape-quotes/models"
	"github.com/aluiziolira/go-scrape-quotes/parser"
)

// Scraper walks the paginated quote listing and resolves every author it
// links to.
type Scraper struct {
	cfg     *config.Config
	baseURL string
	fetcher Fetcher
	colly   *CollyFetcher
	Metrics *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewCollyFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	s := NewScraperWithFetcher(cfg, fetcher, metrics)
	s.colly = fetcher
	return s, nil
}

// NewScraperWithFetcher builds a scraper around an arbitrary Fetcher.
func NewScraperWithFetcher(cfg *config.Config, fetcher Fetcher, metrics *Metrics) *Scraper {
	return &Scraper{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
		Metrics: metrics,
	}
}

// PageURL returns the listing URL of page n, counting from 1.
func (s *Scraper) PageURL(n int) string {
	if n <= 1 {
		return s.baseURL + "/"
	}
	return fmt.Sprintf("%s/page/%d/", s.baseURL, n)
}

// Run crawls every listing page in order. Each page is fetched once and
// its next link decides whether the walk continues. The author cache lives
// for this call only.
func (s *Scraper) Run(ctx context.Context) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	fetcher := &countingFetcher{Fetcher: s.fetcher}
	cache := NewAuthorCache()
	resolver := NewAuthorResolver(fetcher, cache, s.Metrics)
	seen, err := lru.New[uint64, string](s.cfg.PageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}

	result := &models.ScraperResult{StartTime: time.Now()}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(fmt.Errorf("crawl interrupted at page %d: %w", page, err))
		}

		pageURL := s.PageURL(page)
		doc, err := s.fetchListing(ctx, fetcher, pageURL, seen)
		if err != nil {
			return nil, s.fail(err)
		}

		quotes, err := s.extractQuotes(ctx, pageURL, doc, resolver)
		if err != nil {
			return nil, s.fail(err)
		}
		result.Quotes = append(result.Quotes, quotes...)
		result.PageCount = page
		s.Metrics.IncPages()
		s.Metrics.AddQuotes(len(quotes))

		slog.Debug("listing page done",
			slog.Int("page", page),
			slog.Int("quotes", len(quotes)),
			slog.Int("authors", cache.Len()),
		)

		if !parser.HasNextPage(doc) {
			break
		}
		if page >= s.cfg.MaxPages {
			slog.Warn("page limit reached before last page",
				slog.Int("max_pages", s.cfg.MaxPages),
				slog.String("url", pageURL),
			)
			result.Truncated = true
			break
		}
	}

	result.Authors = cache.Authors()
	result.CacheHits, result.CacheMisses = resolver.Stats()
	result.RequestCount = fetcher.Calls()
	result.EndTime = time.Now()
	return result, nil
}

// CountPages probes listing pages until one has no next link and returns
// its number. The walk stops at MaxPages, reporting truncated.
func (s *Scraper) CountPages(ctx context.Context) (pages int, truncated bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	seen, err := lru.New[uint64, string](s.cfg.PageCacheSize)
	if err != nil {
		return 0, false, fmt.Errorf("create page cache: %w", err)
	}

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return 0, false, s.fail(fmt.Errorf("probe interrupted at page %d: %w", page, err))
		}
		doc, err := s.fetchListing(ctx, s.fetcher, s.PageURL(page), seen)
		if err != nil {
			return 0, false, s.fail(err)
		}
		if !parser.HasNextPage(doc) {
			return page, false, nil
		}
	}
	return s.cfg.MaxPages, true, nil
}

func (s *Scraper) fetchListing(ctx context.Context, fetcher Fetcher, pageURL string, seen *lru.Cache[uint64, string]) (*goquery.Document, error) {
	body, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	fingerprint := xxhash.Sum64(body)
	if first, ok := seen.Get(fingerprint); ok {
		slog.Error("listing page repeats earlier content",
			slog.String("url", pageURL),
			slog.String("first_seen", first),
		)
		return nil, ErrRepeatedPage{URL: pageURL}
	}
	seen.Add(fingerprint, pageURL)

	doc, err := parser.ParseDocument(body)
	if err != nil {
		return nil, ErrParse{URL: pageURL, Err: err}
	}
	return doc, nil
}

// extractQuotes returns the page's quotes in document order, resolving each
// quote's author before moving to the next one.
func (s *Scraper) extractQuotes(ctx context.Context, pageURL string, doc *goquery.Document, resolver *AuthorResolver) ([]*models.Quote, error) {
	blocks, err := parser.ExtractQuotes(doc)
	if err != nil {
		return nil, ErrParse{URL: pageURL, Err: err}
	}

	quotes := make([]*models.Quote, 0, len(blocks))
	for _, block := range blocks {
		authorURL := s.baseURL + block.AuthorHref
		if _, err := resolver.Resolve(ctx, authorURL); err != nil {
			return nil, err
		}
		block.Quote.AuthorURL = authorURL
		quotes = append(quotes, block.Quote)
	}
	return quotes, nil
}

func (s *Scraper) fail(err error) error {
	s.Metrics.IncError(errorTypeLabel(err))
	return err
}

// Collector exposes the colly-backed fetcher, or nil when the scraper was
// built around another Fetcher.
func (s *Scraper) Collector() *CollyFetcher {
	return s.colly
}
