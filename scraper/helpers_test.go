package scraper

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/jarcoal/httpmock"
)

type quoteFixture struct {
	text   string
	author string
	slug   string
	tags   []string
}

func buildListingPage(quotes []quoteFixture, hasNext bool, nextPage int) string {
	var builder strings.Builder
	builder.WriteString("<html><body><div class=\"col-md-8\">")
	for _, q := range quotes {
		builder.WriteString("<div class=\"quote\">")
		fmt.Fprintf(&builder, "<span class=\"text\">%s</span>", html.EscapeString(q.text))
		fmt.Fprintf(&builder, "<span>by <small class=\"author\">%s</small> <a href=\"/author/%s\">(about)</a></span>", html.EscapeString(q.author), q.slug)
		builder.WriteString("<div class=\"tags\">Tags: ")
		for _, tag := range q.tags {
			fmt.Fprintf(&builder, "<a class=\"tag\" href=\"/tag/%s/page/1/\">%s</a>", tag, html.EscapeString(tag))
		}
		builder.WriteString("</div></div>")
	}
	if hasNext {
		fmt.Fprintf(&builder, "<nav><ul class=\"pager\"><li class=\"next\"><a href=\"/page/%d/\">Next</a></li></ul></nav>", nextPage)
	}
	builder.WriteString("</div></body></html>")
	return builder.String()
}

func buildAuthorPage(name, born, description string) string {
	return fmt.Sprintf(`<html><body><div class="author-details">
<h3 class="author-title">%s
</h3>
<p><strong>Born:</strong> <span class="author-born-date">%s</span></p>
<div class="author-description">
  %s
</div></div></body></html>`, html.EscapeString(name), html.EscapeString(born), html.EscapeString(description))
}

// twoPageSite is the two page scenario: Einstein on both pages, Twain on
// the second.
func twoPageSite(base string) map[string]string {
	return map[string]string{
		base + "/": buildListingPage([]quoteFixture{
			{text: "A", author: "Einstein", slug: "Einstein", tags: []string{"physics"}},
		}, true, 2),
		base + "/page/2/": buildListingPage([]quoteFixture{
			{text: "B", author: "Einstein", slug: "Einstein", tags: []string{"wisdom"}},
			{text: "C", author: "Twain", slug: "Twain", tags: []string{"humor"}},
		}, false, 0),
		base + "/author/Einstein": buildAuthorPage("Albert Einstein", "March 14, 1879", "Physicist."),
		base + "/author/Twain":    buildAuthorPage("Mark Twain", "November 30, 1835", "Writer."),
	}
}

type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
	delay time.Duration
}

func newMapFetcher(pages map[string]string) *mapFetcher {
	return &mapFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.pages[url]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if !ok {
		return nil, ErrNetwork{URL: url, Err: ErrNotFound{Err: fmt.Errorf("http status 404")}}
	}
	return []byte(body), nil
}

func (f *mapFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *mapFetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func mockSite(pages map[string]string) *httpmock.MockTransport {
	transport := httpmock.NewMockTransport()
	for url, body := range pages {
		transport.RegisterResponder("GET", url, htmlResponder(body))
	}
	return transport
}
