package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-quotes/models"
)

func TestTagsLiteral(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{name: "empty", tags: []string{}, want: "[]"},
		{name: "nil", tags: nil, want: "[]"},
		{name: "single", tags: []string{"physics"}, want: "['physics']"},
		{name: "duplicates kept", tags: []string{"change", "deep-thoughts", "change"}, want: "['change', 'deep-thoughts', 'change']"},
		{name: "apostrophe", tags: []string{"don't"}, want: `["don't"]`},
		{name: "both quotes", tags: []string{`it's "x"`}, want: `['it\'s "x"']`},
		{name: "backslash", tags: []string{`a\b`}, want: `['a\\b']`},
		{name: "newline", tags: []string{"a\nb"}, want: `['a\nb']`},
		{name: "unicode", tags: []string{"café"}, want: "['café']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TagsLiteral(tt.tags); got != tt.want {
				t.Fatalf("TagsLiteral(%q) = %s, want %s", tt.tags, got, tt.want)
			}
		})
	}
}

func TestWriteQuotesRowCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "quotes.csv")
	quotes := []*models.Quote{
		{Text: "A", Author: "Einstein", Tags: []string{"physics"}},
		{Text: "B", Author: "Einstein", Tags: []string{"wisdom"}},
		{Text: "C", Author: "Twain", Tags: []string{"humor"}},
	}

	if err := WriteQuotes("csv", path, quotes); err != nil {
		t.Fatalf("write quotes: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != len(quotes)+1 {
		t.Fatalf("records=%d, want %d", len(records), len(quotes)+1)
	}
	for i, quote := range quotes {
		if records[i+1][0] != quote.Text {
			t.Fatalf("row %d text=%q, want %q", i+1, records[i+1][0], quote.Text)
		}
	}
}

func TestWriteAuthorsInsertionOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.csv")
	authors := []*models.Author{
		{FullName: "Mark Twain", BirthDate: "November 30, 1835", Description: "Writer, humorist."},
		{FullName: "Albert Einstein", BirthDate: "March 14, 1879", Description: "Physicist."},
	}

	if err := WriteAuthors("csv", path, authors); err != nil {
		t.Fatalf("write authors: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "full_name" || records[0][1] != "birth_date" || records[0][2] != "description" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "Mark Twain" || records[2][0] != "Albert Einstein" {
		t.Fatalf("order=%q,%q", records[1][0], records[2][0])
	}
	if records[1][2] != "Writer, humorist." {
		t.Fatalf("description=%q", records[1][2])
	}
}

func TestWriteEmptyAuthorsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.jsonl")
	if err := WriteAuthors("json", path, nil); err != nil {
		t.Fatalf("write authors: %v", err)
	}
}

func TestWriteDualSibling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.csv")
	quotes := []*models.Quote{{Text: "A", Author: "Einstein", Tags: []string{"physics"}}}

	if err := WriteQuotes("dual", path, quotes); err != nil {
		t.Fatalf("write quotes: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "quotes.json")); err != nil {
		t.Fatalf("json sibling missing: %v", err)
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	if err := WriteQuotes("xml", filepath.Join(t.TempDir(), "q.xml"), nil); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestWriteQuotesDeterministic(t *testing.T) {
	dir := t.TempDir()
	quotes := []*models.Quote{
		{Text: "“Quoted, with comma”", Author: "Einstein", Tags: []string{"a", "b"}},
		{Text: "line\nbreak", Author: "Twain", Tags: nil},
	}

	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	if err := WriteQuotes("csv", first, quotes); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := WriteQuotes("csv", second, quotes); err != nil {
		t.Fatalf("write second: %v", err)
	}

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("outputs differ")
	}
}
