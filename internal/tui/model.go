package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"giftscope/internal/config"
	"giftscope/internal/engine"
)

type model struct {
	tuiModel      *TUIModel
	tuiView       *TUIView
	tuiController *TUIController
}

type tickMsg time.Time

// changedMsg asks for a redraw after engine-owned state moved.
type changedMsg struct{}

type toastMsg struct {
	msg string
	err bool
}

// opDoneMsg reports the end of an engine call started from a key press.
type opDoneMsg struct {
	op  string
	err error
}

type recentsMsg struct {
	names []string
	err   error
}

// New creates the gallery program model. events must be the notifier the
// engine was built with so toasts and redraws reach the screen. A non-empty
// collection is loaded on start; otherwise the collection switcher opens.
func New(cfg *config.Config, eng *engine.Engine, recents RecentLister, events *Events, collection string) tea.Model {
	tuiModel := NewTUIModel(cfg, eng, recents, events)
	tuiView := NewTUIView(cfg)
	tuiController := NewTUIController(tuiModel, tuiView)
	tuiController.initial = collection

	m := &model{
		tuiModel:      tuiModel,
		tuiView:       tuiView,
		tuiController: tuiController,
	}
	return m
}

func (m *model) Init() tea.Cmd {
	return m.tuiController.Init()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.tuiController.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	return m.tuiView.View(m.tuiModel, m.tuiController)
}

func tickCmd() tea.Cmd {
	d := time.Second
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}
