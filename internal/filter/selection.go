// Package filter holds the canonical representation of attribute filters:
// trait selections, attribute catalogs and the query sent to the data source.
//
// Every operation returns a fresh value and never mutates its input, so a
// committed selection and a draft copied from it can not alias each other.
package filter

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "giftscope/internal/errors"
)

const (
	// All is the quick-bar sentinel meaning "no constraint on this trait".
	All = "All"
	// IDTrait is the pseudo-trait holding a literal item identifier.
	IDTrait = "ID"
)

// Well-known traits shown by the quick filter bar.
const (
	TraitModel    = "Model"
	TraitBackdrop = "Backdrop"
	TraitSymbol   = "Symbol"
)

// Selection maps a canonical trait name to its selected values. A trait with
// no selected values is absent.
type Selection map[string][]string

// CanonicalTrait folds a trait name to the single spelling used for map keys:
// "id" in any case becomes "ID", anything else is first-letter upper, rest lower.
func CanonicalTrait(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if lower == "id" {
		return IDTrait
	}
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

// Clone returns a deep copy; nil clones to an empty selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, vs := range s {
		if len(vs) == 0 {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Canonical rebuilds s with canonical trait keys, merging case variants and
// dropping empty entries and duplicate values.
func (s Selection) Canonical() Selection {
	out := make(Selection, len(s))
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ck := CanonicalTrait(k)
		if ck == "" {
			continue
		}
		for _, v := range s[k] {
			if v == "" || contains(out[ck], v) {
				continue
			}
			out[ck] = append(out[ck], v)
		}
	}
	return out
}

func (s Selection) Empty() bool { return len(s) == 0 }

// Count is the total number of selected values across traits.
func (s Selection) Count() int {
	n := 0
	for _, vs := range s {
		n += len(vs)
	}
	return n
}

// Has reports whether value is selected for trait (case-insensitive trait).
func (s Selection) Has(trait, value string) bool {
	return contains(s[CanonicalTrait(trait)], value)
}

// Values returns the selected values for trait.
func (s Selection) Values(trait string) []string {
	return s[CanonicalTrait(trait)]
}

// First returns the first selected value for trait or All.
func (s Selection) First(trait string) string {
	if vs := s.Values(trait); len(vs) > 0 {
		return vs[0]
	}
	return All
}

// Traits returns the selected trait names sorted, with ID last.
func (s Selection) Traits() []string {
	out := make([]string, 0, len(s))
	hasID := false
	for k := range s {
		if k == IDTrait {
			hasID = true
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	if hasID {
		out = append(out, IDTrait)
	}
	return out
}

// SameValues compares two selections ignoring value order.
func (s Selection) SameValues(o Selection) bool {
	if len(s) != len(o) {
		return false
	}
	for k, vs := range s {
		ov, ok := o[k]
		if !ok || len(ov) != len(vs) {
			return false
		}
		for _, v := range vs {
			if !contains(ov, v) {
				return false
			}
		}
	}
	return true
}

// String renders "Backdrop=Gold Model=Red,Blue ID=12" for logs and chips.
func (s Selection) String() string {
	var parts []string
	for _, k := range s.Traits() {
		parts = append(parts, k+"="+strings.Join(s[k], ","))
	}
	return strings.Join(parts, " ")
}

// SetSingle replaces every value of trait with value, or removes the trait
// when value is All.
func SetSingle(s Selection, trait, value string) Selection {
	out := s.Clone()
	t := CanonicalTrait(trait)
	if t == "" {
		return out
	}
	if value == All {
		delete(out, t)
		return out
	}
	out[t] = []string{value}
	return out
}

// Toggle removes value from trait when present (dropping the trait once
// empty) and appends it otherwise.
func Toggle(s Selection, trait, value string) Selection {
	out := s.Clone()
	t := CanonicalTrait(trait)
	if t == "" || value == "" {
		return out
	}
	cur := out[t]
	if contains(cur, value) {
		next := make([]string, 0, len(cur)-1)
		for _, v := range cur {
			if v != value {
				next = append(next, v)
			}
		}
		if len(next) == 0 {
			delete(out, t)
		} else {
			out[t] = next
		}
		return out
	}
	out[t] = append(append([]string(nil), cur...), value)
	return out
}

// SetID stores the trimmed identifier under ID, overwriting any previous one.
// A blank id leaves the selection unchanged and returns a validation error
// that callers treat as a silent no-op.
func SetID(s Selection, raw string) (Selection, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return s.Clone(), apperrors.Validation("set id", "id is empty")
	}
	out := s.Clone()
	out[IDTrait] = []string{id}
	return out, nil
}

// Clear returns an empty selection.
func Clear() Selection { return Selection{} }

// Effective is the part of s that is shown and sent given catalog c. Values
// that the catalog no longer lists are inert and dropped; ID always passes.
// With an empty catalog nothing can be judged and s is returned as is.
func (s Selection) Effective(c Catalog) Selection {
	if c.Empty() {
		return s.Clone()
	}
	out := make(Selection, len(s))
	for k, vs := range s {
		if k == IDTrait {
			if len(vs) > 0 {
				out[k] = append([]string(nil), vs...)
			}
			continue
		}
		values, ok := c.Lookup(k)
		if !ok {
			continue
		}
		var keep []string
		for _, v := range vs {
			if _, ok := values[v]; ok {
				keep = append(keep, v)
			}
		}
		if len(keep) > 0 {
			out[k] = keep
		}
	}
	return out
}

func contains(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
