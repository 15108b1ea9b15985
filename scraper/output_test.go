package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-quotes/pipeline"
)

func crawlToFiles(t *testing.T, s *Scraper, dir string) (string, string) {
	t.Helper()

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	quotesPath := filepath.Join(dir, "quotes.csv")
	authorsPath := filepath.Join(dir, "authors.csv")
	if err := pipeline.WriteQuotes("csv", quotesPath, result.Quotes); err != nil {
		t.Fatalf("write quotes: %v", err)
	}
	if err := pipeline.WriteAuthors("csv", authorsPath, result.Authors); err != nil {
		t.Fatalf("write authors: %v", err)
	}
	return quotesPath, authorsPath
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestCrawlOutputIsIdempotent(t *testing.T) {
	s, err := NewScraper(testConfig())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.Collector().WithTransport(mockSite(twoPageSite(testBase)))

	firstQuotes, firstAuthors := crawlToFiles(t, s, t.TempDir())
	secondQuotes, secondAuthors := crawlToFiles(t, s, t.TempDir())

	if !bytes.Equal(readFile(t, firstQuotes), readFile(t, secondQuotes)) {
		t.Fatalf("quotes output differs between runs")
	}
	if !bytes.Equal(readFile(t, firstAuthors), readFile(t, secondAuthors)) {
		t.Fatalf("authors output differs between runs")
	}

	quotes, err := csv.NewReader(bytes.NewReader(readFile(t, firstQuotes))).ReadAll()
	if err != nil {
		t.Fatalf("parse quotes csv: %v", err)
	}
	if len(quotes) != 4 {
		t.Fatalf("quote rows=%d, want 4", len(quotes))
	}
	if quotes[1][2] != "['physics']" {
		t.Fatalf("tags column=%q", quotes[1][2])
	}

	authors, err := csv.NewReader(bytes.NewReader(readFile(t, firstAuthors))).ReadAll()
	if err != nil {
		t.Fatalf("parse authors csv: %v", err)
	}
	if len(authors) != 3 {
		t.Fatalf("author rows=%d, want 3", len(authors))
	}
	if authors[1][0] != "Albert Einstein" || authors[2][0] != "Mark Twain" {
		t.Fatalf("author order=%q,%q", authors[1][0], authors[2][0])
	}
}
