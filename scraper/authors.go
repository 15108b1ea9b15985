package scraper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/aluiziolira/go-scrape-quotes/models"
	"github.com/aluiziolira/go-scrape-quotes/parser"
)

// AuthorCache maps author profile URLs to their biography for one crawl
// run. Entries keep their insertion order.
type AuthorCache struct {
	mu      sync.RWMutex
	entries map[string]*models.Author
	order   []string
}

// NewAuthorCache returns an empty cache.
func NewAuthorCache() *AuthorCache {
	return &AuthorCache{entries: make(map[string]*models.Author)}
}

// Get looks up url by exact string match.
func (c *AuthorCache) Get(url string) (*models.Author, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	author, ok := c.entries[url]
	return author, ok
}

// Len returns the number of cached authors.
func (c *AuthorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Authors returns the cached authors, first resolved first.
func (c *AuthorCache) Authors() []*models.Author {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Author, 0, len(c.order))
	for _, url := range c.order {
		out = append(out, c.entries[url])
	}
	return out
}

// add stores author under url unless an entry already exists, and returns
// the entry that ends up cached.
func (c *AuthorCache) add(url string, author *models.Author) *models.Author {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[url]; ok {
		return existing
	}
	c.entries[url] = author
	c.order = append(c.order, url)
	return author
}

// AuthorResolver fetches and parses author profile pages, at most once per
// URL for the lifetime of its cache.
type AuthorResolver struct {
	fetcher Fetcher
	cache   *AuthorCache
	metrics *Metrics
	group   singleflight.Group

	hits   int64
	misses int64
}

// NewAuthorResolver wires a resolver to fetcher and cache.
func NewAuthorResolver(fetcher Fetcher, cache *AuthorCache, metrics *Metrics) *AuthorResolver {
	return &AuthorResolver{
		fetcher: fetcher,
		cache:   cache,
		metrics: metrics,
	}
}

// Resolve returns the biography behind authorURL, fetching it on a cache
// miss. Concurrent callers for the same URL share a single fetch.
func (r *AuthorResolver) Resolve(ctx context.Context, authorURL string) (*models.Author, error) {
	if author, ok := r.cache.Get(authorURL); ok {
		r.hit()
		return author, nil
	}

	fetched := false
	value, err, _ := r.group.Do(authorURL, func() (interface{}, error) {
		if author, ok := r.cache.Get(authorURL); ok {
			return author, nil
		}
		fetched = true
		return r.load(ctx, authorURL)
	})
	if fetched {
		atomic.AddInt64(&r.misses, 1)
		r.metrics.IncAuthorCache("miss")
	} else {
		r.hit()
	}
	if err != nil {
		return nil, err
	}
	return value.(*models.Author), nil
}

func (r *AuthorResolver) load(ctx context.Context, authorURL string) (*models.Author, error) {
	body, err := r.fetcher.Fetch(ctx, authorURL)
	if err != nil {
		return nil, err
	}
	doc, err := parser.ParseDocument(body)
	if err != nil {
		return nil, ErrParse{URL: authorURL, Err: err}
	}
	author, err := parser.ExtractAuthor(doc)
	if err != nil {
		return nil, ErrParse{URL: authorURL, Err: err}
	}
	author.URL = authorURL

	slog.Debug("author resolved",
		slog.String("url", authorURL),
		slog.String("name", author.FullName),
	)
	return r.cache.add(authorURL, author), nil
}

func (r *AuthorResolver) hit() {
	atomic.AddInt64(&r.hits, 1)
	r.metrics.IncAuthorCache("hit")
}

// Stats returns cache hits and misses seen by this resolver.
func (r *AuthorResolver) Stats() (hits, misses int) {
	return int(atomic.LoadInt64(&r.hits)), int(atomic.LoadInt64(&r.misses))
}
