package filter

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giftscope/internal/errors"
)

func TestCanonicalTrait(t *testing.T) {
	cases := map[string]string{
		"model":     "Model",
		"MODEL":     "Model",
		" Backdrop": "Backdrop",
		"id":        "ID",
		"Id":        "ID",
		"":          "",
		"éclat":     "Éclat",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalTrait(in), "CanonicalTrait(%q)", in)
	}
}

func TestToggleScenario(t *testing.T) {
	s := Toggle(Selection{}, "Model", "Red")
	if diff := cmp.Diff(Selection{"Model": {"Red"}}, s); diff != "" {
		t.Fatalf("toggle on (-want +got):\n%s", diff)
	}
	s = Toggle(s, "Model", "Red")
	if diff := cmp.Diff(Selection{}, s); diff != "" {
		t.Fatalf("toggle off (-want +got):\n%s", diff)
	}
}

func TestToggleKeepsInsertionOrderAndNoDuplicates(t *testing.T) {
	s := Toggle(Selection{}, "Model", "Red")
	s = Toggle(s, "model", "Blue")
	s = Toggle(s, "MODEL", "Green")
	assert.Equal(t, []string{"Red", "Blue", "Green"}, s["Model"])
	s = Toggle(s, "Model", "Blue")
	assert.Equal(t, []string{"Red", "Green"}, s["Model"])
}

func TestToggleDoesNotMutateInput(t *testing.T) {
	in := Selection{"Model": {"Red"}}
	_ = Toggle(in, "Model", "Blue")
	_ = Toggle(in, "Model", "Red")
	assert.Equal(t, Selection{"Model": {"Red"}}, in)
}

func randomSelection(r *rand.Rand) Selection {
	traits := []string{"Model", "Backdrop", "Symbol", "ID"}
	values := []string{"a", "b", "c", "d"}
	s := Clear()
	for i := 0; i < r.Intn(8); i++ {
		s = Toggle(s, traits[r.Intn(len(traits))], values[r.Intn(len(values))])
	}
	return s
}

func noEmptyKeys(t *testing.T, s Selection) {
	t.Helper()
	for k, vs := range s {
		require.NotEmpty(t, vs, "key %q maps to empty slice in %v", k, s)
	}
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	traits := []string{"Model", "backdrop", "SYMBOL"}
	values := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 500; i++ {
		s := randomSelection(r)
		tr, v := traits[r.Intn(len(traits))], values[r.Intn(len(values))]
		once := Toggle(s, tr, v)
		twice := Toggle(once, tr, v)
		noEmptyKeys(t, once)
		noEmptyKeys(t, twice)
		require.True(t, twice.SameValues(s), "toggle twice changed %v -> %v", s, twice)
		if !s.Has(tr, v) {
			diff := cmp.Diff(s, twice, cmpopts.EquateEmpty())
			require.Empty(t, diff, "adding then removing must restore order")
		}
	}
}

func TestSetSingle(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		s := randomSelection(r)
		cleared := SetSingle(s, "Backdrop", All)
		_, ok := cleared["Backdrop"]
		require.False(t, ok)
		noEmptyKeys(t, cleared)

		set := SetSingle(s, "backdrop", "Gold")
		require.Equal(t, []string{"Gold"}, set["Backdrop"])
		noEmptyKeys(t, set)
	}
}

func TestQuickBarAllScenario(t *testing.T) {
	cur := Selection{"Backdrop": {"Gold"}, "Model": {"X"}}
	got := SetSingle(cur, "Backdrop", All)
	assert.Equal(t, Selection{"Model": {"X"}}, got)
	assert.Equal(t, Selection{"Backdrop": {"Gold"}, "Model": {"X"}}, cur, "input untouched")
}

func TestSetID(t *testing.T) {
	s, err := SetID(Selection{"Model": {"X"}}, "  12345 ")
	require.NoError(t, err)
	assert.Equal(t, Selection{"Model": {"X"}, "ID": {"12345"}}, s)

	s, err = SetID(s, "777")
	require.NoError(t, err)
	assert.Equal(t, []string{"777"}, s["ID"])

	same, err := SetID(s, "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, s, same)
}

func TestClearAndCount(t *testing.T) {
	assert.True(t, Clear().Empty())
	s := Selection{"Model": {"a", "b"}, "ID": {"1"}}
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []string{"Model", "ID"}, s.Traits())
	assert.Equal(t, "Model=a,b ID=1", s.String())
	assert.Equal(t, "a", s.First("model"))
	assert.Equal(t, All, s.First("Symbol"))
}

func TestCanonicalMergesCaseVariants(t *testing.T) {
	in := Selection{"model": {"Red"}, "MODEL": {"Red", "Blue"}, "symbol": {}, "id": {"9"}}
	got := in.Canonical()
	assert.ElementsMatch(t, []string{"Red", "Blue"}, got["Model"])
	assert.Equal(t, []string{"9"}, got["ID"])
	_, ok := got["Symbol"]
	assert.False(t, ok)
}

func TestEffectivePrunesInertValues(t *testing.T) {
	cat := Catalog{
		"Model":    {"Red": {Count: 10, Percentage: 10}, "Blue": {Count: 90, Percentage: 90}},
		"Backdrop": {"Gold": {Count: 5, Percentage: 5}},
	}
	draft := Selection{
		"Model":  {"Red", "Purple"},
		"Symbol": {"Star"},
		"ID":     {"12345"},
	}
	got := draft.Effective(cat)
	assert.Equal(t, Selection{"Model": {"Red"}, "ID": {"12345"}}, got)

	assert.Equal(t, draft, draft.Effective(nil), "empty catalog judges nothing")
}
