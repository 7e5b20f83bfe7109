package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestCatalog(t *testing.T, seed []SeedBook) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	if err := Init(context.Background(), path, seed); err != nil {
		t.Fatalf("Init: %v", err)
	}
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.sqlite3"))
	if !errors.Is(err, ErrCatalogMissing) {
		t.Fatalf("err = %v, want ErrCatalogMissing", err)
	}
}

func TestOpen_MissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("CREATE TABLE articles_category (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrCatalogMissing) {
		t.Fatalf("err = %v, want ErrCatalogMissing for missing articles_book", err)
	}
}

func TestCategories(t *testing.T) {
	c, _ := newTestCatalog(t, []SeedBook{
		{Category: "소설", Title: "채식주의자", Author: "한강", Description: "연작 소설"},
		{Category: "심리학", Title: "미움받을 용기", Author: "기시미 이치로", Description: "아들러 심리학"},
	})

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2", len(cats))
	}
	if cats[0].Name != "소설" || cats[1].Name != "심리학" {
		t.Errorf("categories = %+v", cats)
	}
	if cats[0].ID < 1 {
		t.Errorf("category id = %d, want >= 1", cats[0].ID)
	}
}

func TestBooksByCategory(t *testing.T) {
	c, _ := newTestCatalog(t, []SeedBook{
		{Category: "소설", Title: "채식주의자", Author: "한강", Description: "연작 소설"},
		{Category: "소설", Title: "소년이 온다", Author: "한강", Description: "광주"},
		{Category: "심리학", Title: "미움받을 용기", Author: "기시미 이치로", Description: "아들러"},
	})
	cats, _ := c.Categories(context.Background())

	books, err := c.BooksByCategory(context.Background(), cats[0].ID)
	if err != nil {
		t.Fatalf("BooksByCategory: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2", len(books))
	}
	if books[0].Title != "채식주의자" || books[0].Author != "한강" || books[0].Description != "연작 소설" {
		t.Errorf("books[0] = %+v", books[0])
	}
	for _, b := range books {
		if b.Source != SourceLocal {
			t.Errorf("Source = %q, want %q", b.Source, SourceLocal)
		}
	}
}

func TestBooksByCategory_NoRows(t *testing.T) {
	c, _ := newTestCatalog(t, nil)

	books, err := c.BooksByCategory(context.Background(), 42)
	if err != nil {
		t.Fatalf("BooksByCategory: %v", err)
	}
	if books == nil || len(books) != 0 {
		t.Errorf("books = %#v, want empty non-nil slice", books)
	}
}

func TestBooksByCategory_NullAuthor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE articles_category (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE articles_book (id INTEGER PRIMARY KEY, title TEXT, author TEXT, description TEXT, category_id INTEGER);
		INSERT INTO articles_category (id, name) VALUES (1, '소설');
		INSERT INTO articles_book (id, title, author, description, category_id) VALUES (7, '무명', NULL, '', 1);
	`)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, err = c.BooksByCategory(context.Background(), 1)
	var rme *RowMappingError
	if !errors.As(err, &rme) {
		t.Fatalf("err = %v, want *RowMappingError", err)
	}
	if rme.BookID != 7 || rme.Column != "author" {
		t.Errorf("RowMappingError = %+v", rme)
	}
}

func TestCountBooks(t *testing.T) {
	c, _ := newTestCatalog(t, []SeedBook{
		{Category: "소설", Title: "a", Author: "x", Description: ""},
		{Category: "소설", Title: "b", Author: "y", Description: ""},
		{Category: "에세이", Title: "c", Author: "z", Description: ""},
	})
	cats, _ := c.Categories(context.Background())

	counts, err := c.CountBooks(context.Background())
	if err != nil {
		t.Fatalf("CountBooks: %v", err)
	}
	if counts[cats[0].ID] != 2 || counts[cats[1].ID] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	c, _ := newTestCatalog(t, nil)
	if _, err := c.db.Exec("INSERT INTO articles_category (name) VALUES ('x')"); err == nil {
		t.Error("expected write to read-only catalog to fail")
	}
}

func TestInit_Idempotent(t *testing.T) {
	_, path := newTestCatalog(t, []SeedBook{{Category: "소설", Title: "a", Author: "x"}})
	if err := Init(context.Background(), path, nil); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}
