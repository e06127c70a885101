package filter

import (
	"fmt"
	"strings"

	apperrors "giftscope/internal/errors"
)

// Sort is the server-side ordering of a collection page. Empty means the
// server's default order.
type Sort string

const (
	SortDefault    Sort = ""
	SortPriceAsc   Sort = "price_asc"
	SortPriceDesc  Sort = "price_desc"
	SortNumberAsc  Sort = "number_asc"
	SortNumberDesc Sort = "number_desc"
	SortNewest     Sort = "newest"
)

// Sorts lists the sort options in the order the UI cycles through them.
var Sorts = []Sort{SortPriceAsc, SortPriceDesc, SortNumberAsc, SortNumberDesc, SortNewest}

func ParseSort(s string) (Sort, error) {
	v := Sort(strings.ToLower(strings.TrimSpace(s)))
	if v == SortDefault {
		return v, nil
	}
	for _, k := range Sorts {
		if v == k {
			return v, nil
		}
	}
	return SortDefault, fmt.Errorf("unknown sort option %q", s)
}

// Next returns the sort option after s in Sorts, wrapping around.
func (s Sort) Next() Sort {
	for i, k := range Sorts {
		if k == s {
			return Sorts[(i+1)%len(Sorts)]
		}
	}
	return Sorts[0]
}

func (s Sort) Label() string {
	switch s {
	case SortPriceAsc:
		return "price ↑"
	case SortPriceDesc:
		return "price ↓"
	case SortNumberAsc:
		return "number ↑"
	case SortNumberDesc:
		return "number ↓"
	case SortNewest:
		return "newest"
	default:
		return "default"
	}
}

// Query is the full request shape sent to the data source.
type Query struct {
	Collection     string
	Page           int
	PageSize       int
	Filters        Selection
	Sort           Sort
	RefreshCatalog bool
}

// Validate rejects queries the data source would refuse anyway.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return apperrors.Validation("query", "collection name is required")
	}
	if q.Page < 1 {
		return apperrors.Validation("query", fmt.Sprintf("page must be >= 1, got %d", q.Page))
	}
	if q.PageSize < 1 {
		return apperrors.Validation("query", fmt.Sprintf("page size must be >= 1, got %d", q.PageSize))
	}
	if _, err := ParseSort(string(q.Sort)); err != nil {
		return apperrors.Validation("query", err.Error())
	}
	return nil
}

// CountQuery is the page-1, size-1 query used only for its total.
func CountQuery(collection string, filters Selection, sort Sort) Query {
	return Query{Collection: collection, Page: 1, PageSize: 1, Filters: filters, Sort: sort}
}

// ParseAssignments turns ["Model=Red", "backdrop=Gold,Onyx"] into a selection.
// Values are toggled in, so repeats collapse.
func ParseAssignments(in []string) (Selection, error) {
	s := Clear()
	for _, a := range in {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return nil, apperrors.Validation("filter", fmt.Sprintf("expected Trait=Value, got %q", a))
		}
		if CanonicalTrait(k) == IDTrait {
			var err error
			if s, err = SetID(s, v); err != nil {
				return nil, err
			}
			continue
		}
		for _, val := range strings.Split(v, ",") {
			val = strings.TrimSpace(val)
			if val == "" || s.Has(k, val) {
				continue
			}
			s = Toggle(s, k, val)
		}
	}
	return s, nil
}
