package api

import (
	"context"

	"giftscope/internal/filter"
)

// Source is the Data Source API consumed by the filter engine.
type Source interface {
	// Attributes returns the attribute catalog of a collection.
	Attributes(ctx context.Context, collection string) (filter.Catalog, error)
	// Items returns one page of matching items; the engine uses page size 1
	// and reads only TotalItems.
	Items(ctx context.Context, q filter.Query) (*ItemsPage, error)
	// CollectionData is the primary fetch path. Attributes in the result is
	// empty unless q.RefreshCatalog was set.
	CollectionData(ctx context.Context, q filter.Query) (*CollectionResult, error)
}

// Item is one collectible gift.
type Item struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Number     int               `json:"number"`
	Attributes map[string]string `json:"attributes"`
	Price      float64           `json:"price,omitempty"`
	Currency   string            `json:"currency,omitempty"`
}

// Trait returns the item's value for a trait, matching the name case-insensitively.
func (it Item) Trait(name string) string {
	want := filter.CanonicalTrait(name)
	for k, v := range it.Attributes {
		if filter.CanonicalTrait(k) == want {
			return v
		}
	}
	return ""
}

// ItemsPage is the response of the items endpoint.
type ItemsPage struct {
	Items       []Item `json:"items"`
	TotalItems  int    `json:"totalItems"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// CollectionData is the visible slice of a collection.
type CollectionData struct {
	GiftName    string `json:"giftName"`
	Items       []Item `json:"items"`
	TotalItems  int    `json:"totalItems"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// CollectionResult bundles collection data with an optional catalog fragment.
type CollectionResult struct {
	CollectionData CollectionData `json:"collectionData"`
	Attributes     filter.Catalog `json:"attributes"`
}

// wire shapes

type queryBody struct {
	Page              int         `json:"page"`
	PageSize          int         `json:"page_size"`
	Filters           filtersBody `json:"filters"`
	Sort              string      `json:"sort,omitempty"`
	IncludeAttributes *bool       `json:"include_attributes,omitempty"`
}

type filtersBody struct {
	Attributes filter.Selection `json:"attributes"`
}

func newQueryBody(q filter.Query, withInclude bool) queryBody {
	attrs := q.Filters
	if attrs == nil {
		attrs = filter.Selection{}
	}
	b := queryBody{
		Page:     q.Page,
		PageSize: q.PageSize,
		Filters:  filtersBody{Attributes: attrs},
		Sort:     string(q.Sort),
	}
	if withInclude {
		inc := q.RefreshCatalog
		b.IncludeAttributes = &inc
	}
	return b
}

type rawCollectionResult struct {
	CollectionData CollectionData                    `json:"collectionData"`
	Attributes     map[string]map[string]filter.Stat `json:"attributes"`
}
