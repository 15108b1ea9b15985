package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-quotes/config"
)

const (
	ctxStart  = "start"
	ctxBody   = "body"
	ctxStatus = "status"
)

// Fetcher retrieves the raw body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CollyFetcher is a synchronous Fetcher backed by a colly collector.
type CollyFetcher struct {
	collector *colly.Collector
	metrics   *Metrics
	requests  int64
}

// NewCollyFetcher builds a fetcher restricted to the configured host.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &CollyFetcher{
		collector: collector,
		metrics:   metrics,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		atomic.AddInt64(&f.requests, 1)
		f.metrics.IncRequest(pageKind(r.URL))
		slog.Debug("fetching page", slog.String("url", r.URL.String()))
	})

	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		r.Ctx.Put(ctxBody, r.Body)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
	})

	return f, nil
}

// WithTransport replaces the HTTP transport used by the collector.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Requests returns the number of requests issued so far.
func (f *CollyFetcher) Requests() int {
	return int(atomic.LoadInt64(&f.requests))
}

// Fetch issues a GET for rawURL and returns the response body. Transport
// failures and non-success statuses are returned as ErrNetwork.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil); err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, ErrNetwork{URL: rawURL, Err: classifyError(err, status)}
	}

	body, ok := reqCtx.GetAny(ctxBody).([]byte)
	if !ok {
		return nil, ErrNetwork{URL: rawURL, Err: errors.New("no response body")}
	}
	return body, nil
}

func pageKind(u *url.URL) string {
	if u != nil && strings.HasPrefix(u.Path, "/author/") {
		return "author"
	}
	return "listing"
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}

// countingFetcher counts calls made through it during one run.
type countingFetcher struct {
	Fetcher
	calls int64
}

func (c *countingFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.Fetcher.Fetch(ctx, rawURL)
}

func (c *countingFetcher) Calls() int {
	return int(atomic.LoadInt64(&c.calls))
}
