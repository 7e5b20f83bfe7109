package aladin

import "github.com/kalambet/bookwise/internal/catalog"

// searchResponse is the subset of the ItemSearch (output=js) payload we read.
type searchResponse struct {
	TotalResults int    `json:"totalResults"`
	Items        []item `json:"item"`
	ErrorCode    int    `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type item struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	ISBN        string `json:"isbn"`
	ISBN13      string `json:"isbn13"`
	Publisher   string `json:"publisher"`
	Cover       string `json:"cover"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
}

func (it item) book() catalog.Book {
	isbn := it.ISBN13
	if isbn == "" {
		isbn = it.ISBN
	}
	return catalog.Book{
		Title:       it.Title,
		Author:      it.Author,
		Description: it.Description,
		Source:      catalog.SourceExternal,
		ISBN:        isbn,
		Publisher:   it.Publisher,
		Cover:       it.Cover,
		Link:        it.Link,
		PubDate:     it.PubDate,
	}
}
