// Package engine reconciles filter edits with the Data Source API: the sheet
// editor with its debounced preview count, the quick filter bar, and the
// collection/page/sort flows that commit through the shared store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"giftscope/internal/api"
	"giftscope/internal/config"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
	"giftscope/internal/logging"
	"giftscope/internal/schedule"
	"giftscope/internal/store"
)

// ErrBusy is returned when a commit is requested while another is in flight.
var ErrBusy = errors.New("another filter request is still running")

// Notifier shows fire-and-forget messages to the user. Implementations must
// not block.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Metrics is the subset of *metrics.Manager the engine reports to.
type Metrics interface {
	IncPreviewIssued()
	IncPreviewStale()
	IncPreviewFailed()
	ObservePreviewCount(n int)
	ObserveApply(ok bool, sec float64)
	IncCatalogFetches()
}

// Recents records collections the user opened. *state.DB satisfies it.
type Recents interface {
	TouchCollection(ctx context.Context, name string) error
}

type Deps struct {
	Source    api.Source
	Store     *store.Store
	Scheduler schedule.Scheduler
	Notifier  Notifier
	Logger    *logging.Logger
	Metrics   Metrics
	Recents   Recents
}

type Options struct {
	// Debounce is the quiet period before a preview query is sent.
	Debounce time.Duration
}

type Engine struct {
	src     api.Source
	store   *store.Store
	sched   schedule.Scheduler
	notify  Notifier
	log     *logging.Logger
	metrics Metrics
	recents Recents
	opts    Options

	busy    atomic.Bool
	catalog singleflight.Group

	mu       sync.Mutex
	onChange func()

	Sheet *Sheet
	Bar   *QuickBar
}

func New(d Deps, o Options) *Engine {
	if o.Debounce <= 0 {
		o.Debounce = time.Duration(config.DefaultPreviewDebounceMS) * time.Millisecond
	}
	e := &Engine{
		src:     d.Source,
		store:   d.Store,
		sched:   d.Scheduler,
		notify:  d.Notifier,
		log:     d.Logger.With("component", "engine"),
		metrics: d.Metrics,
		recents: d.Recents,
		opts:    o,
	}
	if e.sched == nil {
		e.sched = schedule.Real{}
	}
	if e.notify == nil {
		e.notify = LogNotifier{Log: d.Logger}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	e.Sheet = &Sheet{e: e}
	e.Bar = &QuickBar{e: e}
	return e
}

// OnChange registers fn to run after any engine-owned state (preview, busy,
// catalog loading) changes. fn runs on the goroutine that made the change.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) changed() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// dispatch applies a to the store and returns the state it replaced.
func (e *Engine) dispatch(a store.Action) store.State {
	prev := e.store.Snapshot()
	next := e.store.Dispatch(a)
	e.log.Debugf("dispatch %s (v%d)", store.Name(a), next.Version)
	return prev
}

// Busy reports whether a commit (apply, clear, page or collection load) is in flight.
func (e *Engine) Busy() bool { return e.busy.Load() }

func (e *Engine) State() store.State { return e.store.Snapshot() }

// Subscribe forwards store.Store.Subscribe for front ends that redraw on
// committed state changes.
func (e *Engine) Subscribe() (<-chan store.State, func()) { return e.store.Subscribe() }

// acquire takes the busy flag; the returned release must run on every path.
func (e *Engine) acquire() (release func(), err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	e.changed()
	return func() {
		e.busy.Store(false)
		e.changed()
	}, nil
}

func (e *Engine) pageSize(s store.State) int {
	if s.ItemsPerPage > 0 {
		return s.ItemsPerPage
	}
	return config.DefaultPageSize
}

// commit stores sel as the committed selection and loads page 1 with it.
// Callers hold the busy flag.
func (e *Engine) commit(ctx context.Context, sel filter.Selection, refreshCatalog bool) (*api.CollectionResult, error) {
	snap := e.store.Snapshot()
	e.dispatch(store.SetFilters{Filters: sel})
	q := filter.Query{
		Collection:     snap.Collection,
		Page:           1,
		PageSize:       e.pageSize(snap),
		Filters:        sel,
		Sort:           snap.Sort,
		RefreshCatalog: refreshCatalog,
	}
	start := time.Now()
	res, err := e.src.CollectionData(ctx, q)
	if err != nil {
		e.metrics.ObserveApply(false, 0)
		e.log.Warnf("apply %s [%s]: %v", snap.Collection, sel, err)
		return nil, err
	}
	e.metrics.ObserveApply(true, time.Since(start).Seconds())
	e.dispatch(store.SetCollectionData{Data: res.CollectionData})
	e.dispatch(store.SetCurrentPage{Page: 1})
	if refreshCatalog && !res.Attributes.Empty() {
		e.dispatch(store.SetAttributesWithPercentages{Catalog: res.Attributes})
	}
	e.log.Infof("applied %s [%s]: %d items", snap.Collection, sel, res.CollectionData.TotalItems)
	return res, nil
}

// EnsureCatalog fetches the attribute catalog when the store has none for the
// selected collection. Concurrent callers share one request.
func (e *Engine) EnsureCatalog(ctx context.Context) error {
	snap := e.store.Snapshot()
	if snap.Collection == "" || !snap.Catalog.Empty() {
		return nil
	}
	name := snap.Collection
	_, err, _ := e.catalog.Do(strings.ToLower(name), func() (any, error) {
		e.metrics.IncCatalogFetches()
		cat, err := e.src.Attributes(ctx, name)
		if err != nil {
			e.log.Errorf("load attributes %s: %v", name, err)
			e.notify.Error("Failed to load attributes: " + apperrors.Message(err))
			return nil, err
		}
		if e.store.Snapshot().Collection != name {
			e.log.Debugf("load attributes %s: collection switched, dropping catalog", name)
			return nil, nil
		}
		e.dispatch(store.SetAttributesWithPercentages{Catalog: cat})
		e.log.Debugf("load attributes %s: %d traits, %d values", name, len(cat), cat.Size())
		return nil, nil
	})
	return err
}

// SelectCollection switches to name and loads its first page together with
// its catalog.
func (e *Engine) SelectCollection(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.Validation("select collection", "collection name is empty")
	}
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	e.Sheet.Close()
	e.dispatch(store.SelectCollection{Name: name})
	if _, err := e.commit(ctx, filter.Selection{}, true); err != nil {
		e.notify.Error(fmt.Sprintf("Failed to load %s: %s", name, apperrors.Message(err)))
		return err
	}
	if e.recents != nil {
		if err := e.recents.TouchCollection(ctx, name); err != nil {
			e.log.Warnf("record recent collection %s: %v", name, err)
		}
	}
	return nil
}

// LoadPage fetches page with the committed filters.
func (e *Engine) LoadPage(ctx context.Context, page int) error {
	snap := e.store.Snapshot()
	if snap.Collection == "" {
		return nil
	}
	if page < 1 || (snap.Data.TotalPages > 0 && page > snap.Data.TotalPages) {
		return apperrors.Validation("load page", fmt.Sprintf("page %d out of range", page))
	}
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	q := filter.Query{
		Collection: snap.Collection,
		Page:       page,
		PageSize:   e.pageSize(snap),
		Filters:    snap.Filters,
		Sort:       snap.Sort,
	}
	res, err := e.src.CollectionData(ctx, q)
	if err != nil {
		e.log.Warnf("load page %d of %s: %v", page, snap.Collection, err)
		e.notify.Error(apperrors.Message(err))
		return err
	}
	e.dispatch(store.SetCollectionData{Data: res.CollectionData})
	e.dispatch(store.SetCurrentPage{Page: page})
	return nil
}

// SetSort changes the ordering, reloads page 1 and refreshes an open sheet's
// preview. The sort only changes once the busy flag is held, and a failed
// reload restores the previous sort so the store matches the visible page.
func (e *Engine) SetSort(ctx context.Context, s filter.Sort) error {
	if e.store.Snapshot().Collection == "" {
		e.dispatch(store.SetSort{Sort: s})
		e.Sheet.Refresh()
		return nil
	}
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	prev := e.dispatch(store.SetSort{Sort: s})
	e.Sheet.Refresh()
	snap := e.store.Snapshot()
	if _, err := e.commit(ctx, snap.Filters, false); err != nil {
		e.dispatch(store.SetSort{Sort: prev.Sort})
		e.Sheet.Refresh()
		e.notify.Error(apperrors.Message(err))
		return err
	}
	return nil
}

// LogNotifier routes notifications to the logger; used by the CLI.
type LogNotifier struct{ Log *logging.Logger }

func (n LogNotifier) Success(msg string) { n.Log.Infof("%s", msg) }
func (n LogNotifier) Error(msg string)   { n.Log.Errorf("%s", msg) }

type nopMetrics struct{}

func (nopMetrics) IncPreviewIssued()          {}
func (nopMetrics) IncPreviewStale()           {}
func (nopMetrics) IncPreviewFailed()          {}
func (nopMetrics) ObservePreviewCount(int)    {}
func (nopMetrics) ObserveApply(bool, float64) {}
func (nopMetrics) IncCatalogFetches()         {}
