// Package store holds the process-wide UI state: the selected collection, its
// visible page, the committed filters and the attribute catalog. State only
// changes through Dispatch, one action at a time.
package store

import (
	"sync"

	"giftscope/internal/api"
	"giftscope/internal/filter"
)

type State struct {
	Collection   string
	Data         api.CollectionData
	Filters      filter.Selection
	Catalog      filter.Catalog
	CurrentPage  int
	ItemsPerPage int
	Sort         filter.Sort
	// Version increases with every dispatched action.
	Version uint64
}

// Action is one of the typed actions below.
type Action interface {
	actionName() string
}

// SetFilters replaces the committed selection (SET_FILTERS).
type SetFilters struct{ Filters filter.Selection }

// SetCollectionData replaces the visible page (SET_COLLECTION_DATA).
type SetCollectionData struct{ Data api.CollectionData }

// SetCurrentPage (SET_CURRENT_PAGE).
type SetCurrentPage struct{ Page int }

// SetAttributesWithPercentages replaces the catalog wholesale (SET_ATTRIBUTES_WITH_PERCENTAGES).
type SetAttributesWithPercentages struct{ Catalog filter.Catalog }

// SelectCollection switches collection and resets everything scoped to the old one.
type SelectCollection struct{ Name string }

type SetSort struct{ Sort filter.Sort }

func (SetFilters) actionName() string                   { return "SET_FILTERS" }
func (SetCollectionData) actionName() string            { return "SET_COLLECTION_DATA" }
func (SetCurrentPage) actionName() string               { return "SET_CURRENT_PAGE" }
func (SetAttributesWithPercentages) actionName() string { return "SET_ATTRIBUTES_WITH_PERCENTAGES" }
func (SelectCollection) actionName() string             { return "SELECT_COLLECTION" }
func (SetSort) actionName() string                      { return "SET_SORT" }

// Name returns the wire-style name of an action, for logs.
func Name(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}

// Reduce returns the state after applying a. It never mutates s and copies
// every map it stores.
func Reduce(s State, a Action) State {
	next := s
	switch act := a.(type) {
	case SetFilters:
		next.Filters = act.Filters.Canonical()
	case SetCollectionData:
		d := act.Data
		d.Items = append([]api.Item(nil), act.Data.Items...)
		next.Data = d
	case SetCurrentPage:
		if act.Page < 1 {
			next.CurrentPage = 1
		} else {
			next.CurrentPage = act.Page
		}
	case SetAttributesWithPercentages:
		next.Catalog = copyCatalog(act.Catalog)
	case SelectCollection:
		next.Collection = act.Name
		next.Filters = filter.Selection{}
		next.Catalog = nil
		next.Data = api.CollectionData{}
		next.CurrentPage = 1
	case SetSort:
		next.Sort = act.Sort
	default:
		return s
	}
	next.Version = s.Version + 1
	return next
}

func copyCatalog(c filter.Catalog) filter.Catalog {
	if c == nil {
		return nil
	}
	out := make(filter.Catalog, len(c))
	for trait, vals := range c {
		m := make(map[string]filter.Stat, len(vals))
		for v, st := range vals {
			m[v] = st
		}
		out[trait] = m
	}
	return out
}

// Store serializes dispatches and fans out snapshots to subscribers.
type Store struct {
	mu    sync.Mutex
	state State
	subs  map[int]chan State
	next  int
}

func New(initial State) *Store {
	if initial.CurrentPage < 1 {
		initial.CurrentPage = 1
	}
	if initial.Filters == nil {
		initial.Filters = filter.Selection{}
	}
	return &Store{state: initial, subs: map[int]chan State{}}
}

// Dispatch applies a atomically and returns the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	for _, ch := range s.subs {
		// latest wins: drop the unread snapshot
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
	return s.state
}

// Snapshot returns the current state. Its maps are shared and must be
// treated as read-only; Reduce always replaces them instead of editing.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that always holds the newest unread snapshot,
// and a function that unsubscribes and closes it.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan State, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}
