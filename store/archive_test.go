package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-quotes/models"
)

func setupArchive(t *testing.T) *Archive {
	t.Helper()

	archive, err := Open(filepath.Join(t.TempDir(), "runs", "quotes.db"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() {
		_ = archive.Close()
	})
	return archive
}

func sampleRun() ([]*models.Quote, []*models.Author) {
	einstein := "http://example.test/author/Einstein"
	twain := "http://example.test/author/Twain"
	quotes := []*models.Quote{
		{Text: "A", Author: "Einstein", Tags: []string{"physics"}, AuthorURL: einstein},
		{Text: "B", Author: "Einstein", Tags: []string{"wisdom", "wisdom"}, AuthorURL: einstein},
		{Text: "C", Author: "Twain", Tags: nil, AuthorURL: twain},
	}
	authors := []*models.Author{
		{FullName: "Albert Einstein", BirthDate: "March 14, 1879", Description: "Physicist.", URL: einstein},
		{FullName: "Mark Twain", BirthDate: "November 30, 1835", Description: "Writer.", URL: twain},
	}
	return quotes, authors
}

func TestSaveRunLinksQuotesToAuthors(t *testing.T) {
	archive := setupArchive(t)
	ctx := context.Background()
	quotes, authors := sampleRun()

	if err := archive.SaveRun(ctx, quotes, authors); err != nil {
		t.Fatalf("save run: %v", err)
	}

	linked, err := archive.QuotesByAuthor(ctx, "http://example.test/author/Einstein")
	if err != nil {
		t.Fatalf("quotes by author: %v", err)
	}
	if len(linked) != 2 || linked[0].Text != "A" || linked[1].Text != "B" {
		t.Fatalf("unexpected quotes: %+v", linked)
	}
	if len(linked[1].Tags) != 2 {
		t.Fatalf("tags=%v, want duplicates preserved", linked[1].Tags)
	}

	stored, err := archive.Authors(ctx)
	if err != nil {
		t.Fatalf("authors: %v", err)
	}
	if len(stored) != 2 || stored[0].FullName != "Albert Einstein" || stored[1].FullName != "Mark Twain" {
		t.Fatalf("unexpected authors: %+v", stored)
	}
}

func TestSaveRunReplacesPreviousRun(t *testing.T) {
	archive := setupArchive(t)
	ctx := context.Background()
	quotes, authors := sampleRun()

	for i := 0; i < 2; i++ {
		if err := archive.SaveRun(ctx, quotes, authors); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	linked, err := archive.QuotesByAuthor(ctx, "http://example.test/author/Twain")
	if err != nil {
		t.Fatalf("quotes by author: %v", err)
	}
	if len(linked) != 1 {
		t.Fatalf("quotes=%d, want 1 after re-saving", len(linked))
	}
	if linked[0].Tags == nil || len(linked[0].Tags) != 0 {
		t.Fatalf("tags=%#v, want empty slice", linked[0].Tags)
	}
}

func TestSaveRunRejectsUnknownAuthor(t *testing.T) {
	archive := setupArchive(t)
	ctx := context.Background()
	quotes, authors := sampleRun()

	if err := archive.SaveRun(ctx, quotes, authors[:1]); err == nil {
		t.Fatalf("expected foreign key violation")
	}

	stored, err := archive.Authors(ctx)
	if err != nil {
		t.Fatalf("authors: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("failed save must roll back, found %d authors", len(stored))
	}
}
