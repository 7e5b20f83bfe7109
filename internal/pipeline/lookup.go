package pipeline

import "github.com/kalambet/bookwise/internal/catalog"

// Lookup is the outcome of a local catalog lookup: either Found with at
// least one book, or NotFound, which sends the request to the external
// search fallback.
type Lookup struct {
	items []catalog.Book
}

// Found wraps items. An empty items slice is the same as NotFound.
func Found(items []catalog.Book) Lookup { return Lookup{items: items} }

func NotFound() Lookup { return Lookup{} }

func (l Lookup) IsFound() bool { return len(l.items) > 0 }

func (l Lookup) Items() []catalog.Book { return l.items }
