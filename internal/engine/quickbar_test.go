package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftscope/internal/api"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
	"giftscope/internal/store"
)

func TestQuickBarAllRemovesTrait(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Backdrop": {"Gold"}, "Model": {"X"}}})

	require.NoError(t, h.e.Bar.SetTrait(context.Background(), "Backdrop", filter.All))

	q := h.src.lastData()
	assert.Equal(t, filter.Selection{"Model": {"X"}}, q.Filters)
	assert.True(t, q.RefreshCatalog)
	assert.Equal(t, filter.Selection{"Model": {"X"}}, h.st.Snapshot().Filters)
	assert.Empty(t, h.note.all(), "quick bar is silent on success")
}

func TestQuickBarSetTraitReplacesAndRefreshesCatalog(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Model": {"Red", "Blue"}}})
	fragment := filter.Catalog{"Model": {"Red": {Count: 3, Percentage: 100}}}
	h.src.dataFn = func(q filter.Query) (*api.CollectionResult, error) {
		return &api.CollectionResult{CollectionData: api.CollectionData{GiftName: "Foo", TotalItems: 3}, Attributes: fragment}, nil
	}

	require.NoError(t, h.e.Bar.SetTrait(context.Background(), "model", "Red"))
	snap := h.st.Snapshot()
	assert.Equal(t, filter.Selection{"Model": {"Red"}}, snap.Filters)
	assert.Equal(t, fragment, snap.Catalog)
	assert.Equal(t, 3, snap.Data.TotalItems)
	assert.Equal(t, "Red", h.e.Bar.Current("Model"))
	assert.Equal(t, filter.All, h.e.Bar.Current("Symbol"))
}

func TestQuickBarEmptyFragmentKeepsCatalog(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.Bar.SetTrait(context.Background(), "Model", "Red"))
	assert.Equal(t, testCatalog(), h.st.Snapshot().Catalog)
}

func TestQuickBarApplyID(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Model": {"Red"}}})

	require.NoError(t, h.e.Bar.ApplyID(context.Background(), "   "))
	_, _, data := h.src.counts()
	assert.Zero(t, data, "blank id is a silent no-op")

	require.NoError(t, h.e.Bar.ApplyID(context.Background(), " 42 "))
	assert.Equal(t, filter.Selection{"Model": {"Red"}, "ID": {"42"}}, h.src.lastData().Filters)
}

func TestQuickBarClearAndFailure(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Model": {"Red"}}})
	require.NoError(t, h.e.Bar.Clear(context.Background()))
	assert.Equal(t, filter.Selection{}, h.src.lastData().Filters)

	h.src.dataFn = func(filter.Query) (*api.CollectionResult, error) {
		return nil, apperrors.API("collection data", 500, "internal error")
	}
	require.Error(t, h.e.Bar.SetTrait(context.Background(), "Model", "Blue"))
	assert.Equal(t, []note{{false, "internal error"}}, h.note.all())
	assert.False(t, h.e.Busy())
}

func TestQuickBarOptions(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"Blue", "Red"}, h.e.Bar.Options("MODEL"))
	assert.Nil(t, h.e.Bar.Options("Symbol"))
}

type recents struct {
	mu    sync.Mutex
	names []string
}

func (r *recents) TouchCollection(_ context.Context, name string) error {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	return nil
}

func TestSelectCollectionLoadsPageAndCatalog(t *testing.T) {
	h := newHarness(t)
	rec := &recents{}
	h.e.recents = rec
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Model": {"Red"}}})
	h.open(t)

	fragment := filter.Catalog{"Symbol": {"Star": {Count: 1, Percentage: 100}}}
	h.src.dataFn = func(q filter.Query) (*api.CollectionResult, error) {
		return &api.CollectionResult{CollectionData: api.CollectionData{GiftName: q.Collection, TotalItems: 10, TotalPages: 1}, Attributes: fragment}, nil
	}
	require.NoError(t, h.e.SelectCollection(context.Background(), " Bar "))

	q := h.src.lastData()
	assert.Equal(t, "Bar", q.Collection)
	assert.True(t, q.RefreshCatalog)
	assert.Empty(t, q.Filters)
	snap := h.st.Snapshot()
	assert.Equal(t, "Bar", snap.Collection)
	assert.Equal(t, fragment, snap.Catalog)
	assert.Empty(t, snap.Filters)
	assert.False(t, h.e.Sheet.IsOpen())
	assert.Equal(t, []string{"Bar"}, rec.names)

	assert.True(t, apperrors.IsValidation(h.e.SelectCollection(context.Background(), "  ")))
}

func TestLoadPageUsesCommittedFilters(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SetFilters{Filters: filter.Selection{"Model": {"Red"}}})
	h.st.Dispatch(store.SetCollectionData{Data: api.CollectionData{GiftName: "Foo", TotalPages: 3}})

	require.NoError(t, h.e.LoadPage(context.Background(), 2))
	q := h.src.lastData()
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, filter.Selection{"Model": {"Red"}}, q.Filters)
	assert.Equal(t, 2, h.st.Snapshot().CurrentPage)

	h.st.Dispatch(store.SetCollectionData{Data: api.CollectionData{GiftName: "Foo", TotalPages: 3}})
	assert.True(t, apperrors.IsValidation(h.e.LoadPage(context.Background(), 4)))
	assert.True(t, apperrors.IsValidation(h.e.LoadPage(context.Background(), 0)))
}

func TestSetSortReloadsAndRefreshesPreview(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	h.e.Sheet.Toggle("Model", "Red")
	h.clock.Advance(debounce)

	require.NoError(t, h.e.SetSort(context.Background(), filter.SortNewest))
	assert.Equal(t, filter.SortNewest, h.src.lastData().Sort)
	assert.Equal(t, 1, h.clock.Pending())
	h.clock.Advance(debounce)
	assert.Equal(t, filter.SortNewest, h.src.lastItems().Sort)
}

func TestSetSortWhileBusyKeepsSort(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.src.dataFn = func(q filter.Query) (*api.CollectionResult, error) {
		close(entered)
		<-release
		return &api.CollectionResult{CollectionData: api.CollectionData{GiftName: "Foo", TotalItems: 3, TotalPages: 1}}, nil
	}

	errc := make(chan error, 1)
	go func() { errc <- h.e.Bar.SetTrait(context.Background(), "Model", "Red") }()
	<-entered

	assert.ErrorIs(t, h.e.SetSort(context.Background(), filter.SortNewest), ErrBusy)
	assert.Equal(t, filter.SortPriceAsc, h.st.Snapshot().Sort)

	close(release)
	require.NoError(t, <-errc)
	_, _, data := h.src.counts()
	assert.Equal(t, 1, data)
	assert.Equal(t, filter.SortPriceAsc, h.src.lastData().Sort)
	assert.Equal(t, filter.SortPriceAsc, h.st.Snapshot().Sort)
}

func TestSetSortFailureRestoresSort(t *testing.T) {
	h := newHarness(t)
	h.src.dataFn = func(filter.Query) (*api.CollectionResult, error) {
		return nil, apperrors.API("collection data", 503, "unavailable")
	}
	require.Error(t, h.e.SetSort(context.Background(), filter.SortNewest))
	assert.Equal(t, filter.SortNewest, h.src.lastData().Sort)
	assert.Equal(t, filter.SortPriceAsc, h.st.Snapshot().Sort)
	assert.Equal(t, []note{{false, "unavailable"}}, h.note.all())
	assert.False(t, h.e.Busy())
}

func TestSetSortWithoutCollectionOnlyStores(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SelectCollection{Name: ""})
	require.NoError(t, h.e.SetSort(context.Background(), filter.SortNewest))
	assert.Equal(t, filter.SortNewest, h.st.Snapshot().Sort)
	_, _, data := h.src.counts()
	assert.Zero(t, data)
}

func TestQuickBarWithoutCollectionIsNoop(t *testing.T) {
	h := newHarness(t)
	h.st.Dispatch(store.SelectCollection{Name: ""})
	h.e.busy.Store(true)
	require.NoError(t, h.e.Bar.SetTrait(context.Background(), "Model", "Red"))
	require.NoError(t, h.e.Bar.ApplyID(context.Background(), "1007"))
	require.NoError(t, h.e.Bar.Clear(context.Background()))
	h.e.busy.Store(false)

	_, _, data := h.src.counts()
	assert.Zero(t, data)
	assert.Empty(t, h.st.Snapshot().Filters)
	assert.Empty(t, h.note.all())
}
