// Package models defines data structures for the scraper.
package models

import "time"

// Quote is one quotation block from a listing page.
type Quote struct {
	Text   string   `csv:"text" json:"text"`
	Author string   `csv:"author" json:"author"`
	Tags   []string `csv:"tags" json:"tags"`

	// AuthorURL is the absolute profile URL the quote links to. It is not
	// part of the CSV schema.
	AuthorURL string `csv:"-" json:"author_url"`
}

// Author is the biography scraped from an author profile page.
type Author struct {
	FullName    string `csv:"full_name" json:"full_name"`
	BirthDate   string `csv:"birth_date" json:"birth_date"`
	Description string `csv:"description" json:"description"`

	URL string `csv:"-" json:"url"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	Quotes       []*Quote
	Authors      []*Author
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	CacheHits    int
	CacheMisses  int
	// Truncated is set when the page limit stopped the walk before the
	// last listing page.
	Truncated bool
}
