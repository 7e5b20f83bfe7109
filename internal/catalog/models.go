package catalog

import (
	"errors"
	"fmt"
)

// Book sources, set by whichever lookup produced the record.
const (
	SourceLocal    = "Local DB"
	SourceExternal = "External"
)

// ErrCatalogMissing is returned when the catalog database file or one of its
// tables does not exist.
var ErrCatalogMissing = errors.New("catalog database missing")

// Category is one row of articles_category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is a recommendation candidate. Only external hits carry the optional
// display fields.
type Book struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Source      string `json:"source"`
	ISBN        string `json:"isbn,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Cover       string `json:"cover,omitempty"`
	Link        string `json:"link,omitempty"`
	PubDate     string `json:"pub_date,omitempty"`
}

// RowMappingError reports a catalog row that cannot be turned into a Book.
type RowMappingError struct {
	BookID int64
	Column string
}

func (e *RowMappingError) Error() string {
	return fmt.Sprintf("catalog: book %d has no %s", e.BookID, e.Column)
}
