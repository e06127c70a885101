package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"giftscope/internal/config"
	"giftscope/internal/engine"
	"giftscope/internal/filter"
	"giftscope/internal/schedule"
	"giftscope/internal/store"
	"giftscope/internal/tui"
)

var tuiCollection string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive gallery",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiCollection, "collection", "c", "", "Collection to open on start")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// keep the screen clean: logs go to logging.file or nowhere
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	eng, events, err := newEngine(s)
	if err != nil {
		return err
	}
	states, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	events.Follow(states)

	m := tui.New(s.cfg, eng, s.db, events, tuiCollection)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// newEngine wires the filter engine to the session's cached source, the
// state DB and a TUI event channel.
func newEngine(s *session) (*engine.Engine, *tui.Events, error) {
	order, err := filter.ParseSort(s.cfg.Filters.DefaultSort)
	if err != nil {
		return nil, nil, err
	}
	pageSize := s.cfg.Filters.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	events := tui.NewEvents()
	eng := engine.New(engine.Deps{
		Source:    s.source,
		Store:     store.New(store.State{ItemsPerPage: pageSize, Sort: order}),
		Scheduler: schedule.Real{},
		Notifier:  events,
		Logger:    s.log,
		Metrics:   s.metrics,
		Recents:   s.db,
	}, engine.Options{Debounce: s.cfg.PreviewDebounce()})
	eng.OnChange(events.Changed)
	return eng, events, nil
}
