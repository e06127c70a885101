package tui

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftscope/internal/api"
	"giftscope/internal/engine"
	"giftscope/internal/filter"
	"giftscope/internal/schedule"
	"giftscope/internal/state"
	"giftscope/internal/store"
	"giftscope/internal/testutil"
)

const debounce = 300 * time.Millisecond

type harness struct {
	m      *model
	eng    *engine.Engine
	events *Events
	clock  *schedule.Manual
	fake   *testutil.FakeAPI
	db     *state.DB
}

// setupTestModel builds a gallery over a fake API with collection Foo loaded.
func setupTestModel(t *testing.T) *harness {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.AddCollection("Foo", testutil.Gifts("Foo", 40, []string{"Red", "Blue"}, []string{"Gold", "Onyx", "Ruby", "Jade"}, nil))
	fake.AddCollection("Bar", testutil.Gifts("Bar", 5, []string{"Green"}, nil, nil))
	cfg := testutil.Config(t, fake.URL)
	client, err := api.NewClient(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	db := testutil.TestDB(t)

	events := NewEvents()
	clock := schedule.NewManual()
	eng := engine.New(engine.Deps{
		Source:    client,
		Store:     store.New(store.State{ItemsPerPage: 10, Sort: filter.SortNumberAsc}),
		Scheduler: clock,
		Notifier:  events,
		Recents:   db,
	}, engine.Options{Debounce: debounce})
	eng.OnChange(events.Changed)
	require.NoError(t, eng.SelectCollection(context.Background(), "Foo"))

	m := New(cfg, eng, db, events, "").(*model)
	c := m.tuiController
	for _, cur := range []*cursor.Model{&c.pickInput.Cursor, &c.idInput.Cursor, &c.sheetIDInput.Cursor, &c.collInput.Cursor} {
		cur.SetMode(cursor.CursorStatic)
	}
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	h := &harness{m: m, eng: eng, events: events, clock: clock, fake: fake, db: db}
	h.pump()
	return h
}

// press sends keys and runs the commands they return to completion.
func (h *harness) press(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := h.m.Update(msg)
		h.drain(cmd)
	}
	h.pump()
}

func (h *harness) typeText(t *testing.T, s string) {
	t.Helper()
	for _, r := range s {
		h.press(t, string(r))
	}
}

func (h *harness) drain(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			h.drain(c)
		}
	case opDoneMsg, recentsMsg:
		h.m.Update(msg)
	}
}

// pump delivers queued engine events without blocking.
func (h *harness) pump() {
	for {
		select {
		case msg := <-h.events.ch:
			h.m.Update(msg)
		default:
			return
		}
	}
}

func (h *harness) toasts() []string {
	var out []string
	for _, t := range h.m.tuiModel.toasts {
		out = append(out, t.msg)
	}
	return out
}

func TestQuickBarPickerAppliesValue(t *testing.T) {
	h := setupTestModel(t)

	h.press(t, "m")
	require.Equal(t, modePicker, h.m.tuiController.mode)
	assert.Equal(t, []string{filter.All, "Blue", "Red"}, h.m.tuiModel.PickerOptions(filter.TraitModel, ""))

	h.typeText(t, "re")
	assert.Equal(t, []string{filter.All, "Red"}, h.m.tuiModel.PickerOptions(filter.TraitModel, h.m.tuiController.pickInput.Value()))
	h.press(t, "down", "enter")

	assert.Equal(t, modeGallery, h.m.tuiController.mode)
	st := h.eng.State()
	assert.Equal(t, filter.Selection{"Model": {"Red"}}, st.Filters)
	assert.Equal(t, 20, st.Data.TotalItems)
	assert.Empty(t, h.toasts(), "quick bar is silent on success")
	assert.Contains(t, h.m.View(), "Model: ")

	h.press(t, "m", "enter")
	assert.Empty(t, h.eng.State().Filters, "All removes the trait")
}

func TestSheetPreviewAndApply(t *testing.T) {
	h := setupTestModel(t)

	h.press(t, "f")
	require.Equal(t, modeSheet, h.m.tuiController.mode)
	require.True(t, h.eng.Sheet.IsOpen())
	rows := h.m.tuiModel.SheetRows()
	require.NotEmpty(t, rows)
	assert.Equal(t, sheetRow{trait: "Model", value: "Blue", stat: filter.Stat{Count: 20, Percentage: 50}}, rows[0])

	h.press(t, " ")
	assert.Equal(t, filter.Selection{"Model": {"Blue"}}, h.eng.Sheet.Draft())
	h.clock.Advance(debounce)
	h.pump()
	assert.Equal(t, engine.Preview{Total: 20, Known: true}, h.eng.Sheet.Preview())
	assert.Contains(t, h.m.View(), "20 gifts match your selected filters")
	assert.Contains(t, h.m.View(), "a: Apply Filters (20 gifts)")

	h.press(t, "a")
	assert.Equal(t, modeGallery, h.m.tuiController.mode)
	assert.False(t, h.eng.Sheet.IsOpen())
	assert.Equal(t, 20, h.eng.State().Data.TotalItems)
	assert.Equal(t, []string{"Filter applied: 20 items found"}, h.toasts())
	assert.Contains(t, h.m.View(), "Filter applied: 20 items found")
}

func TestSheetEscDiscardsDraft(t *testing.T) {
	h := setupTestModel(t)
	h.press(t, "f", "down", " ", "esc")
	assert.Equal(t, modeGallery, h.m.tuiController.mode)
	assert.False(t, h.eng.Sheet.IsOpen())
	assert.Empty(t, h.eng.State().Filters)
	assert.Zero(t, h.clock.Pending())
}

func TestSheetClear(t *testing.T) {
	h := setupTestModel(t)
	h.press(t, "#")
	h.typeText(t, "1007")
	h.press(t, "enter")
	require.Equal(t, filter.Selection{"ID": {"1007"}}, h.eng.State().Filters)
	assert.Equal(t, 1, h.eng.State().Data.TotalItems)

	h.press(t, "f", "c")
	assert.Equal(t, modeGallery, h.m.tuiController.mode)
	assert.Empty(t, h.eng.State().Filters)
	assert.Equal(t, 40, h.eng.State().Data.TotalItems)
	assert.Equal(t, []string{"All filters cleared"}, h.toasts())
}

func TestSheetApplyAndClearNeedASelection(t *testing.T) {
	h := setupTestModel(t)
	before := h.fake.RequestCount("/data")

	h.press(t, "f")
	require.Zero(t, h.eng.Sheet.SelectedCount())
	assert.NotContains(t, h.m.View(), "Apply Filters")
	h.press(t, "a", "c")

	assert.Equal(t, modeSheet, h.m.tuiController.mode)
	assert.True(t, h.eng.Sheet.IsOpen())
	assert.Equal(t, before, h.fake.RequestCount("/data"))
	assert.Empty(t, h.toasts())
}

func TestSheetAcceptsTogglesBeforeOpenCompletes(t *testing.T) {
	h := setupTestModel(t)

	_, open := h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	require.True(t, h.eng.Sheet.IsOpen(), "sheet opens before its command runs")
	h.press(t, " ")
	h.drain(open)
	h.pump()

	assert.Equal(t, filter.Selection{"Model": {"Blue"}}, h.eng.Sheet.Draft())
}

func TestFollowRedrawsOnDispatch(t *testing.T) {
	st := store.New(store.State{})
	states, unsubscribe := st.Subscribe()
	e := NewEvents()
	e.Follow(states)

	st.Dispatch(store.SetCurrentPage{Page: 2})
	select {
	case msg := <-e.ch:
		assert.IsType(t, changedMsg{}, msg)
	case <-time.After(time.Second):
		t.Fatal("no redraw after dispatch")
	}
	unsubscribe()
}

func TestSheetIDInput(t *testing.T) {
	h := setupTestModel(t)
	h.press(t, "f", "#")
	require.True(t, h.m.tuiController.sheetIDOn)
	h.typeText(t, "42")
	h.press(t, "enter")
	assert.False(t, h.m.tuiController.sheetIDOn)
	assert.Equal(t, filter.Selection{"ID": {"42"}}, h.eng.Sheet.Draft())
	assert.Contains(t, h.m.View(), "ID: ")
}

func TestQuickClearAndPaging(t *testing.T) {
	h := setupTestModel(t)

	h.press(t, "n")
	assert.Equal(t, 2, h.eng.State().CurrentPage)
	assert.Equal(t, 11, h.eng.State().Data.Items[0].Number)
	h.press(t, "p")
	assert.Equal(t, 1, h.eng.State().CurrentPage)

	h.press(t, "p")
	assert.Equal(t, 1, h.eng.State().CurrentPage)
	assert.Equal(t, []string{"page 0 out of range"}, h.toasts())

	h.press(t, "o")
	assert.Equal(t, filter.SortNumberDesc, h.eng.State().Sort)
	assert.Equal(t, 40, h.eng.State().Data.Items[0].Number)

	h.press(t, "j", "j")
	assert.Equal(t, 2, h.m.tuiController.cursor)
	h.press(t, "x")
	assert.Equal(t, 0, h.m.tuiController.cursor)
}

func TestCollectionSwitcherUsesRecents(t *testing.T) {
	h := setupTestModel(t)

	h.press(t, "C")
	require.Equal(t, modeCollection, h.m.tuiController.mode)
	assert.Equal(t, []string{"Foo"}, h.m.tuiModel.Recents())

	h.typeText(t, "Bar")
	h.press(t, "enter")
	assert.Equal(t, modeGallery, h.m.tuiController.mode)
	assert.Equal(t, "Bar", h.eng.State().Collection)
	assert.Equal(t, 5, h.eng.State().Data.TotalItems)

	h.press(t, "C")
	assert.Equal(t, []string{"Bar", "Foo"}, h.m.tuiModel.Recents())
	assert.Equal(t, []string{"Foo"}, h.m.tuiModel.MatchRecents("fo"))
	h.press(t, "down", "down", "enter")
	assert.Equal(t, "Foo", h.eng.State().Collection)
}

func TestUnknownCollectionToast(t *testing.T) {
	h := setupTestModel(t)
	h.press(t, "C")
	h.typeText(t, "Nope")
	h.press(t, "enter")
	assert.Equal(t, []string{"Failed to load Nope: collection not found"}, h.toasts())
}

func TestHelpAndDrawer(t *testing.T) {
	h := setupTestModel(t)
	h.press(t, "?")
	assert.Contains(t, h.m.View(), "Filter sheet (f)")
	h.press(t, "esc", "H")
	assert.Contains(t, h.m.View(), "(no recent notifications)")
	h.press(t, "H")
	assert.Contains(t, h.m.View(), "NAME")

	_, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestToastsExpire(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &TUIModel{now: func() time.Time { return now }}
	m.addToast("one", false)
	m.addToast("two", true)
	assert.Len(t, m.liveToasts(), 2)

	now = now.Add(6 * time.Second)
	assert.Empty(t, m.liveToasts())
	assert.Len(t, m.toasts, 2, "drawer keeps history")
}

func TestEventsNeverBlock(t *testing.T) {
	e := NewEvents()
	for i := 0; i < 200; i++ {
		e.Changed()
	}
	e.Success("done")
	found := false
	for len(e.ch) > 0 {
		if m, ok := (<-e.ch).(toastMsg); ok && m.msg == "done" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWindowAndTrunc(t *testing.T) {
	s, e := window(100, 50, 10)
	assert.Equal(t, 45, s)
	assert.Equal(t, 55, e)
	s, e = window(3, 2, 10)
	assert.Equal(t, 0, s)
	assert.Equal(t, 3, e)
	s, e = window(20, 19, 5)
	assert.Equal(t, 15, s)
	assert.Equal(t, 20, e)

	assert.Equal(t, "abc", trunc("abc", 5))
	assert.Equal(t, "abc…", trunc("abcdef", 4))
}
