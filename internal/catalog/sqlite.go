// Package catalog reads the book site's SQLite database. The schema belongs
// to the catalog web app; this package only queries articles_category and
// articles_book.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Catalog is a read-only handle on the catalog database.
type Catalog struct {
	db *sql.DB
}

// Open opens the catalog at path read-only. A missing file or missing tables
// yield an error wrapping ErrCatalogMissing; the file is never created.
func Open(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogMissing, path)
		}
		return nil, fmt.Errorf("checking catalog file: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging catalog: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	c := &Catalog{db: db}
	for _, table := range []string{"articles_category", "articles_book"} {
		ok, err := c.hasTable(table)
		if err != nil {
			db.Close()
			return nil, err
		}
		if !ok {
			db.Close()
			return nil, fmt.Errorf("%w: table %s not found in %s", ErrCatalogMissing, table, path)
		}
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) hasTable(name string) (bool, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

// Categories returns every category with id >= 1 in id order. Names are
// returned as stored, blank ones included.
func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT id, name FROM articles_category WHERE id >= 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var cat Category
		var name sql.NullString
		if err := rows.Scan(&cat.ID, &name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cat.Name = name.String
		out = append(out, cat)
	}
	return out, rows.Err()
}

// BooksByCategory returns the books filed under categoryID, in id order, as
// Local DB records. A book with a NULL title or author yields a
// *RowMappingError. No rows is not an error.
func (c *Catalog) BooksByCategory(ctx context.Context, categoryID int64) ([]Book, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, author, description
		FROM articles_book WHERE category_id = ? ORDER BY id`, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying books for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var id int64
		var title, author, description sql.NullString
		if err := rows.Scan(&id, &title, &author, &description); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		if !title.Valid {
			return nil, &RowMappingError{BookID: id, Column: "title"}
		}
		if !author.Valid {
			return nil, &RowMappingError{BookID: id, Column: "author"}
		}
		books = append(books, Book{
			Title:       title.String,
			Author:      author.String,
			Description: description.String,
			Source:      SourceLocal,
		})
	}
	return books, rows.Err()
}

// CountBooks returns the number of books per category id.
func (c *Catalog) CountBooks(ctx context.Context) (map[int64]int, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT category_id, COUNT(*) FROM articles_book GROUP BY category_id")
	if err != nil {
		return nil, fmt.Errorf("counting books: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// SeedBook is one sample row written by Init.
type SeedBook struct {
	Category    string
	Title       string
	Author      string
	Description string
}

// Init creates the catalog schema at path (creating the file if needed) and
// inserts the given sample books, creating their categories on demand. It is
// meant for local development; production catalogs belong to the web app.
func Init(ctx context.Context, path string, seed []SeedBook) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	if len(seed) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range seed {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO articles_category (name) VALUES (?)", b.Category); err != nil {
			return fmt.Errorf("seeding category %q: %w", b.Category, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO articles_book (title, description, author, category_id)
			SELECT ?, ?, ?, id FROM articles_category WHERE name = ?`,
			b.Title, b.Description, b.Author, b.Category,
		); err != nil {
			return fmt.Errorf("seeding book %q: %w", b.Title, err)
		}
	}
	return tx.Commit()
}
