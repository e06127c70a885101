package filter

import "sort"

// Stat is the population of one trait value within a collection.
type Stat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Catalog maps canonical trait names to value statistics. It is replaced
// wholesale, never edited in place.
type Catalog map[string]map[string]Stat

// NormalizeCatalog canonicalises trait keys; case variants of the same trait
// are merged, later keys in sorted order winning on value collisions.
func NormalizeCatalog(raw map[string]map[string]Stat) Catalog {
	out := make(Catalog, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ck := CanonicalTrait(k)
		if ck == "" || len(raw[k]) == 0 {
			continue
		}
		dst := out[ck]
		if dst == nil {
			dst = make(map[string]Stat, len(raw[k]))
			out[ck] = dst
		}
		for v, st := range raw[k] {
			if st.Count < 0 {
				st.Count = 0
			}
			if st.Percentage < 0 {
				st.Percentage = 0
			}
			if st.Percentage > 100 {
				st.Percentage = 100
			}
			dst[v] = st
		}
	}
	return out
}

func (c Catalog) Empty() bool { return len(c) == 0 }

// Lookup finds a trait case-insensitively.
func (c Catalog) Lookup(trait string) (map[string]Stat, bool) {
	vs, ok := c[CanonicalTrait(trait)]
	return vs, ok
}

// Stat returns the statistics for one value of a trait.
func (c Catalog) Stat(trait, value string) (Stat, bool) {
	vs, ok := c.Lookup(trait)
	if !ok {
		return Stat{}, false
	}
	st, ok := vs[value]
	return st, ok
}

// Traits lists trait names with the quick-bar traits first, then the rest sorted.
func (c Catalog) Traits() []string {
	order := map[string]int{TraitModel: 0, TraitBackdrop: 1, TraitSymbol: 2}
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		}
		return out[i] < out[j]
	})
	return out
}

// Options lists the values of a trait, most common first, ties by name.
// Unknown traits yield nil.
func (c Catalog) Options(trait string) []string {
	vs, ok := c.Lookup(trait)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vs))
	for v := range vs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := vs[out[i]], vs[out[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return out[i] < out[j]
	})
	return out
}

// Size is the number of trait values across all traits.
func (c Catalog) Size() int {
	n := 0
	for _, vs := range c {
		n += len(vs)
	}
	return n
}
