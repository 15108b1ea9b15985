// Package store keeps an optional SQLite copy of one crawl run in which
// every quote references its author by profile URL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aluiziolira/go-scrape-quotes/models"
)

// Archive is a SQLite database holding the latest crawl run.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens or creates the archive at path and ensures the schema exists.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	a := &Archive{db: db, path: path}
	if err := a.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archive tables: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS authors (
		url TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		full_name TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		author TEXT NOT NULL,
		author_url TEXT NOT NULL REFERENCES authors(url),
		tags TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quotes_author_url ON quotes(author_url);
	`
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveRun replaces the archive contents with one run's quotes and authors
// inside a single transaction.
func (a *Archive) SaveRun(ctx context.Context, quotes []*models.Quote, authors []*models.Author) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM quotes", "DELETE FROM authors"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear archive: %w", err)
		}
	}

	for i, author := range authors {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO authors (url, position, full_name, birth_date, description) VALUES (?, ?, ?, ?, ?)`,
			author.URL, i, author.FullName, author.BirthDate, author.Description,
		); err != nil {
			return fmt.Errorf("insert author %s: %w", author.URL, err)
		}
	}

	for i, quote := range quotes {
		tags := quote.Tags
		if tags == nil {
			tags = []string{}
		}
		var tagsJSON []byte
		tagsJSON, err = json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("serialize tags: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO quotes (position, text, author, author_url, tags) VALUES (?, ?, ?, ?, ?)`,
			i, quote.Text, quote.Author, quote.AuthorURL, string(tagsJSON),
		); err != nil {
			return fmt.Errorf("insert quote %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// QuotesByAuthor returns the archived quotes linked to authorURL in crawl order.
func (a *Archive) QuotesByAuthor(ctx context.Context, authorURL string) ([]*models.Quote, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT text, author, author_url, tags FROM quotes WHERE author_url = ? ORDER BY position`,
		authorURL,
	)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		var (
			q    models.Quote
			tags string
		)
		if err := rows.Scan(&q.Text, &q.Author, &q.AuthorURL, &tags); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		quotes = append(quotes, &q)
	}
	return quotes, rows.Err()
}

// Authors returns the archived authors in insertion order.
func (a *Archive) Authors(ctx context.Context) ([]*models.Author, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url, full_name, birth_date, description FROM authors ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	var authors []*models.Author
	for rows.Next() {
		var author models.Author
		if err := rows.Scan(&author.URL, &author.FullName, &author.BirthDate, &author.Description); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, &author)
	}
	return authors, rows.Err()
}
