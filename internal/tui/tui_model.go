package tui

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"giftscope/internal/config"
	"giftscope/internal/engine"
	"giftscope/internal/filter"
	"giftscope/internal/state"
	"giftscope/internal/store"
)

// RecentLister is the part of *state.DB the collection switcher reads.
type RecentLister interface {
	RecentCollections(ctx context.Context, limit int) ([]state.RecentCollection, error)
}

type toast struct {
	msg  string
	err  bool
	when time.Time
	ttl  time.Duration
}

// sheetRow is one selectable line of the filter sheet.
type sheetRow struct {
	trait string
	value string
	stat  filter.Stat
}

// TUIModel owns the data the screen shows: the engine, recent collections
// and notifications.
type TUIModel struct {
	cfg     *config.Config
	eng     *engine.Engine
	recents RecentLister
	events  *Events
	toasts  []toast
	recent  []string
	now     func() time.Time
}

func NewTUIModel(cfg *config.Config, eng *engine.Engine, recents RecentLister, events *Events) *TUIModel {
	if events == nil {
		events = NewEvents()
	}
	return &TUIModel{cfg: cfg, eng: eng, recents: recents, events: events, now: time.Now}
}

func (m *TUIModel) State() store.State { return m.eng.State() }

func (m *TUIModel) timeout() time.Duration {
	if m.cfg == nil {
		return time.Duration(config.DefaultTimeoutSeconds) * time.Second
	}
	return m.cfg.Timeout()
}

// run wraps an engine call in a command reporting opDoneMsg.
func (m *TUIModel) run(op string, fn func(ctx context.Context) error) func() opDoneMsg {
	return func() opDoneMsg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout())
		defer cancel()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// LoadRecents reads recent collection names from the state database.
func (m *TUIModel) LoadRecents() recentsMsg {
	if m.recents == nil {
		return recentsMsg{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := m.recents.RecentCollections(ctx, 10)
	if err != nil {
		return recentsMsg{err: err}
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return recentsMsg{names: names}
}

func (m *TUIModel) SetRecents(names []string) { m.recent = names }
func (m *TUIModel) Recents() []string         { return m.recent }

// PickerOptions lists "All" followed by the trait's values that fuzzy-match query.
func (m *TUIModel) PickerOptions(trait, query string) []string {
	out := []string{filter.All}
	query = strings.TrimSpace(query)
	for _, v := range m.eng.Bar.Options(trait) {
		if query == "" || fuzzy.MatchFold(query, v) {
			out = append(out, v)
		}
	}
	return out
}

// MatchRecents filters recent collections by query.
func (m *TUIModel) MatchRecents(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return m.recent
	}
	ranks := fuzzy.RankFindFold(query, m.recent)
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Distance < ranks[j].Distance })
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
	}
	return out
}

// SheetRows flattens the catalog into trait/value lines in display order.
func (m *TUIModel) SheetRows() []sheetRow {
	cat := m.State().Catalog
	var rows []sheetRow
	for _, trait := range cat.Traits() {
		for _, v := range cat.Options(trait) {
			st, _ := cat.Stat(trait, v)
			rows = append(rows, sheetRow{trait: trait, value: v, stat: st})
		}
	}
	return rows
}

func (m *TUIModel) addToast(s string, isErr bool) {
	m.toasts = append(m.toasts, toast{msg: s, err: isErr, when: m.now(), ttl: 5 * time.Second})
	if len(m.toasts) > 50 {
		m.toasts = m.toasts[len(m.toasts)-50:]
	}
}

// liveToasts returns toasts still inside their TTL.
func (m *TUIModel) liveToasts() []toast {
	now := m.now()
	var out []toast
	for _, t := range m.toasts {
		if now.Sub(t.when) < t.ttl {
			out = append(out, t)
		}
	}
	return out
}
