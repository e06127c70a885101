package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"giftscope/internal/store"
)

// Events carries engine notifications into the bubbletea loop. It satisfies
// engine.Notifier and its Changed method is meant for engine.OnChange.
// Sends never block; when the buffer is full redraw requests are dropped
// first since a later one supersedes them.
type Events struct {
	ch chan tea.Msg
}

func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, 64)}
}

func (e *Events) Success(msg string) { e.send(toastMsg{msg: msg}, true) }
func (e *Events) Error(msg string)   { e.send(toastMsg{msg: msg, err: true}, true) }
func (e *Events) Changed()           { e.send(changedMsg{}, false) }

func (e *Events) send(m tea.Msg, important bool) {
	select {
	case e.ch <- m:
		return
	default:
	}
	if !important {
		return
	}
	// make room by discarding one queued message
	select {
	case <-e.ch:
	default:
	}
	select {
	case e.ch <- m:
	default:
	}
}

// Follow requests a redraw for every store snapshot until states is closed.
func (e *Events) Follow(states <-chan store.State) {
	go func() {
		for range states {
			e.Changed()
		}
	}()
}

// wait returns a command that delivers the next event.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg { return <-e.ch }
}
