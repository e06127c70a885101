package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
	"giftscope/internal/schedule"
)

// Preview is the advisory count for the draft selection. Known is false when
// there is no count to show.
type Preview struct {
	Total   int
	Known   bool
	Loading bool
}

// Sheet is the multi-select filter editor. It edits a private draft and only
// touches the store on Apply or Clear.
type Sheet struct {
	e *Engine

	mu             sync.Mutex
	open           bool
	draft          filter.Selection
	preview        Preview
	gen            uint64
	pending        schedule.Handle
	loadingCatalog bool
	reqCtx         context.Context
	reqCancel      context.CancelFunc
}

// Open starts editing a copy of the committed filters and, when the store has
// no catalog yet, blocks until the catalog fetch finishes.
func (s *Sheet) Open(ctx context.Context) error {
	s.Begin()
	return s.LoadCatalog(ctx)
}

// Begin opens the sheet on a copy of the committed filters without waiting
// for the network. LoadCatalog completes the open.
func (s *Sheet) Begin() {
	snap := s.e.store.Snapshot()
	s.mu.Lock()
	if s.reqCancel != nil {
		s.reqCancel()
	}
	s.reqCtx, s.reqCancel = context.WithCancel(context.Background())
	s.open = true
	s.draft = snap.Filters.Clone()
	s.preview = Preview{}
	s.loadingCatalog = snap.Collection != "" && snap.Catalog.Empty()
	s.triggerLocked()
	s.mu.Unlock()
	s.e.changed()
}

// LoadCatalog runs the catalog fetch for an open sheet that has none.
func (s *Sheet) LoadCatalog(ctx context.Context) error {
	s.mu.Lock()
	need := s.open && s.loadingCatalog
	s.mu.Unlock()
	if !need {
		return nil
	}
	err := s.e.EnsureCatalog(ctx)
	s.mu.Lock()
	s.loadingCatalog = false
	// previews sent so far counted the unpruned draft
	if err == nil && s.open && !s.draft.Effective(s.e.store.Snapshot().Catalog).SameValues(s.draft) {
		s.triggerLocked()
	}
	s.mu.Unlock()
	s.e.changed()
	return err
}

// Close discards the draft and any pending or in-flight preview.
func (s *Sheet) Close() {
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.draft = nil
	s.resetPreviewLocked()
	if s.reqCancel != nil {
		s.reqCancel()
		s.reqCancel = nil
	}
	s.mu.Unlock()
	if wasOpen {
		s.e.changed()
	}
}

// Toggle flips one value in the draft. It does nothing while the sheet is closed.
func (s *Sheet) Toggle(trait, value string) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.draft = filter.Toggle(s.draft, trait, value)
	s.triggerLocked()
	s.mu.Unlock()
	s.e.changed()
}

// SetID sets the draft's ID filter. A blank id is a validation error and
// leaves the draft alone. A closed sheet ignores it.
func (s *Sheet) SetID(raw string) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	next, err := filter.SetID(s.draft, raw)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.draft = next
	s.triggerLocked()
	s.mu.Unlock()
	s.e.changed()
	return nil
}

// Refresh re-counts the current draft, e.g. after the sort changed.
func (s *Sheet) Refresh() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.triggerLocked()
	s.mu.Unlock()
	s.e.changed()
}

func (s *Sheet) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Draft returns a copy of the draft selection.
func (s *Sheet) Draft() filter.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Sheet) SelectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Count()
}

func (s *Sheet) Preview() Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

func (s *Sheet) LoadingCatalog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingCatalog
}

func (s *Sheet) Busy() bool { return s.e.Busy() }

// Apply commits the draft and reloads page 1. On success the sheet closes; on
// failure it stays open with the draft intact.
func (s *Sheet) Apply(ctx context.Context) error {
	snap := s.e.store.Snapshot()
	if snap.Collection == "" {
		return nil
	}
	release, err := s.e.acquire()
	if err != nil {
		return err
	}
	defer release()

	sel := s.Draft().Effective(snap.Catalog)
	res, err := s.e.commit(ctx, sel, false)
	if err != nil {
		s.e.notify.Error("Failed to apply filters: " + apperrors.Message(err))
		return err
	}
	s.Close()
	s.e.notify.Success(fmt.Sprintf("Filter applied: %d items found", res.CollectionData.TotalItems))
	return nil
}

// Clear empties the draft and, with a collection selected, commits the empty
// selection.
func (s *Sheet) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.draft = filter.Selection{}
	s.resetPreviewLocked()
	s.mu.Unlock()
	s.e.changed()

	if s.e.store.Snapshot().Collection == "" {
		return nil
	}
	release, err := s.e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.e.commit(ctx, filter.Selection{}, false); err != nil {
		s.e.notify.Error("Failed to clear filters: " + apperrors.Message(err))
		return err
	}
	s.Close()
	s.e.notify.Success("All filters cleared")
	return nil
}

// resetPreviewLocked cancels the pending task and invalidates in-flight queries.
func (s *Sheet) resetPreviewLocked() {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	s.gen++
	s.preview = Preview{}
}

// triggerLocked (re)schedules the preview query for the current draft. The
// guard is evaluated now; the query itself runs after the debounce.
func (s *Sheet) triggerLocked() {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	s.gen++
	snap := s.e.store.Snapshot()
	sel := s.draft.Effective(snap.Catalog)
	if !s.open || snap.Collection == "" || sel.Empty() {
		s.preview = Preview{}
		return
	}
	gen := s.gen
	ctx := s.reqCtx
	q := filter.CountQuery(snap.Collection, sel, snap.Sort)
	s.pending = s.e.sched.After(s.e.opts.Debounce, func() { s.runPreview(ctx, gen, q) })
}

func (s *Sheet) runPreview(ctx context.Context, gen uint64, q filter.Query) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.preview.Loading = true
	s.mu.Unlock()
	s.e.changed()

	s.e.metrics.IncPreviewIssued()
	page, err := s.e.src.Items(ctx, q)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.e.metrics.IncPreviewStale()
		s.e.log.Debugf("preview %s [%s]: superseded, result dropped", q.Collection, q.Filters)
		return
	}
	if err != nil {
		s.preview = Preview{}
	} else {
		s.preview = Preview{Total: page.TotalItems, Known: true}
	}
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.e.metrics.IncPreviewFailed()
		}
		s.e.log.Debugf("preview %s [%s]: %v", q.Collection, q.Filters, err)
	} else {
		s.e.metrics.ObservePreviewCount(page.TotalItems)
	}
	s.e.changed()
}
