package pipeline

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-quotes/models"
)

// Column names of the two CSV files.
var (
	QuoteHeader  = []string{"text", "author", "tags"}
	AuthorHeader = []string{"full_name", "birth_date", "description"}
)

// QuoteRow renders a quote as a CSV record. Tags stay in one column.
func QuoteRow(q *models.Quote) []string {
	return []string{q.Text, q.Author, TagsLiteral(q.Tags)}
}

// AuthorRow renders an author as a CSV record.
func AuthorRow(a *models.Author) []string {
	return []string{a.FullName, a.BirthDate, a.Description}
}

// NewWriter creates the writer for format ("csv", "json" or "dual").
func NewWriter[T any](format, filename string, header []string, row func(T) []string) (OutputWriter[T], error) {
	switch format {
	case "json":
		return NewJSONWriter[T](filename)
	case "csv":
		return NewCSVWriter(filename, header, row)
	case "dual":
		return NewDualWriter(filename, JSONSibling(filename), header, row)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONSibling returns the JSON file name used next to a CSV file in dual mode.
func JSONSibling(filename string) string {
	return strings.TrimSuffix(filename, ".csv") + ".json"
}

// Export writes items in one pass and closes the writer.
func Export[T any](w OutputWriter[T], items []T) error {
	if err := w.Write(items); err != nil {
		w.Close()
		return err
	}
	if err := w.Validate(); err != nil {
		w.Close()
		return fmt.Errorf("output validation failed: %w", err)
	}
	return w.Close()
}

// WriteQuotes writes quotes in crawl order.
func WriteQuotes(format, filename string, quotes []*models.Quote) error {
	w, err := NewWriter(format, filename, QuoteHeader, QuoteRow)
	if err != nil {
		return err
	}
	return Export(w, quotes)
}

// WriteAuthors writes authors in cache insertion order.
func WriteAuthors(format, filename string, authors []*models.Author) error {
	w, err := NewWriter(format, filename, AuthorHeader, AuthorRow)
	if err != nil {
		return err
	}
	return Export(w, authors)
}
