// Package parser extracts quotes, author biographies and pagination state
// from quotes.toscrape.com style HTML.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-quotes/models"
)

// Selectors used against listing and author pages.
const (
	SelectorQuote       = ".quote"
	SelectorText        = ".text"
	SelectorAuthor      = ".author"
	SelectorTag         = ".tag"
	SelectorAuthorLink  = "a[href^='/author/']"
	SelectorNextPage    = ".next a"
	SelectorAuthorTitle = ".author-title"
	SelectorBornDate    = ".author-born-date"
	SelectorDescription = ".author-description"
)

// ErrMissingElement reports a selector that matched nothing where one
// element was required.
type ErrMissingElement struct {
	Selector string
}

func (e ErrMissingElement) Error() string {
	return fmt.Sprintf("missing element %q", e.Selector)
}

// QuoteBlock is a quote together with the raw author profile link found
// next to it.
type QuoteBlock struct {
	Quote      *models.Quote
	AuthorHref string
}

// ParseDocument builds a goquery document from raw HTML.
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractQuotes returns every quote block on a listing page in document order.
func ExtractQuotes(doc *goquery.Document) ([]QuoteBlock, error) {
	var (
		blocks []QuoteBlock
		err    error
	)
	doc.Find(SelectorQuote).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var block QuoteBlock
		block, err = extractQuote(s)
		if err != nil {
			return false
		}
		blocks = append(blocks, block)
		return true
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func extractQuote(s *goquery.Selection) (QuoteBlock, error) {
	text, err := requireOne(s, SelectorText)
	if err != nil {
		return QuoteBlock{}, err
	}
	author, err := requireOne(s, SelectorAuthor)
	if err != nil {
		return QuoteBlock{}, err
	}
	link, err := requireOne(s, SelectorAuthorLink)
	if err != nil {
		return QuoteBlock{}, err
	}

	tags := []string{}
	s.Find(SelectorTag).Each(func(_ int, tag *goquery.Selection) {
		tags = append(tags, tag.Text())
	})

	href, _ := link.Attr("href")
	return QuoteBlock{
		Quote: &models.Quote{
			Text:   text.Text(),
			Author: author.Text(),
			Tags:   tags,
		},
		AuthorHref: href,
	}, nil
}

// ExtractAuthor reads the biography fields from an author profile page.
func ExtractAuthor(doc *goquery.Document) (*models.Author, error) {
	title, err := requireOne(doc.Selection, SelectorAuthorTitle)
	if err != nil {
		return nil, err
	}
	born, err := requireOne(doc.Selection, SelectorBornDate)
	if err != nil {
		return nil, err
	}
	description, err := requireOne(doc.Selection, SelectorDescription)
	if err != nil {
		return nil, err
	}

	return &models.Author{
		FullName:    strings.TrimSpace(title.Text()),
		BirthDate:   strings.TrimSpace(born.Text()),
		Description: strings.TrimSpace(description.Text()),
	}, nil
}

// HasNextPage reports whether the listing page links to a following page.
func HasNextPage(doc *goquery.Document) bool {
	return doc.Find(SelectorNextPage).Length() > 0
}

func requireOne(s *goquery.Selection, selector string) (*goquery.Selection, error) {
	found := s.Find(selector).First()
	if found.Length() == 0 {
		return nil, ErrMissingElement{Selector: selector}
	}
	return found, nil
}
