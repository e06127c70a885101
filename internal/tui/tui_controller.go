package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"giftscope/internal/engine"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
)

type mode int

const (
	modeGallery mode = iota
	modePicker
	modeID
	modeSheet
	modeCollection
)

type TUIController struct {
	model *TUIModel
	view  *TUIView

	mode       mode
	showHelp   bool
	showToasts bool
	cursor     int
	pending    string
	spin       spinner.Model

	pickTrait string
	pickInput textinput.Model
	pickSel   int

	idInput textinput.Model

	sheetSel     int
	sheetIDOn    bool
	sheetIDInput textinput.Model

	collInput textinput.Model
	collSel   int
	initial   string
}

func NewTUIController(model *TUIModel, view *TUIView) *TUIController {
	pick := textinput.New()
	pick.Placeholder = "type to search..."

	id := textinput.New()
	id.Placeholder = "gift id or number"
	id.CharLimit = 32

	sheetID := textinput.New()
	sheetID.Placeholder = "gift id or number"
	sheetID.CharLimit = 32

	coll := textinput.New()
	coll.Placeholder = "collection name"
	coll.CharLimit = 128

	return &TUIController{
		model:        model,
		view:         view,
		spin:         spinner.New(spinner.WithSpinner(spinner.Dot)),
		pickInput:    pick,
		idInput:      id,
		sheetIDInput: sheetID,
		collInput:    coll,
		collSel:      -1,
	}
}

func (c *TUIController) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), c.model.events.wait(), c.spin.Tick}
	switch {
	case c.initial != "":
		name := c.initial
		cmds = append(cmds, c.do("collection", func(ctx context.Context) error {
			return c.model.eng.SelectCollection(ctx, name)
		}))
	case c.model.State().Collection == "":
		cmds = append(cmds, c.openCollection())
	}
	return tea.Batch(cmds...)
}

func (c *TUIController) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.view.SetSize(msg.Width, msg.Height)
		return nil

	case tea.KeyMsg:
		return c.handleKeyMsg(msg)

	case tickMsg:
		return tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		c.spin, cmd = c.spin.Update(msg)
		return cmd

	case changedMsg:
		return c.model.events.wait()

	case toastMsg:
		c.model.addToast(msg.msg, msg.err)
		return c.model.events.wait()

	case recentsMsg:
		if msg.err != nil {
			c.model.addToast("Failed to load recent collections: "+msg.err.Error(), true)
		}
		c.model.SetRecents(msg.names)
		return nil

	case opDoneMsg:
		return c.handleDone(msg)
	}
	return nil
}

func (c *TUIController) handleDone(msg opDoneMsg) tea.Cmd {
	if c.pending == msg.op {
		c.pending = ""
	}
	switch {
	case errors.Is(msg.err, engine.ErrBusy):
		c.model.addToast("Please wait for the current request to finish", true)
	case apperrors.IsValidation(msg.err):
		c.model.addToast(apperrors.Message(msg.err), true)
	}
	switch msg.op {
	case "sheet.apply", "sheet.clear":
		if !c.model.eng.Sheet.IsOpen() {
			c.mode = modeGallery
		}
	case "collection", "page", "sort", "bar":
		if msg.err == nil {
			c.cursor = 0
		}
	}
	return nil
}

// do runs fn as a command and remembers op for the busy indicator.
func (c *TUIController) do(op string, fn func(ctx context.Context) error) tea.Cmd {
	c.pending = op
	run := c.model.run(op, fn)
	return func() tea.Msg { return run() }
}

func (c *TUIController) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if c.showHelp {
		return c.handleHelpKeys(msg)
	}
	switch c.mode {
	case modePicker:
		return c.handlePickerKeys(msg)
	case modeID:
		return c.handleIDKeys(msg)
	case modeSheet:
		return c.handleSheetKeys(msg)
	case modeCollection:
		return c.handleCollectionKeys(msg)
	}
	return c.handleNormalKeys(msg)
}

func (c *TUIController) handleHelpKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "?", "esc", "q":
		c.showHelp = false
	}
	return nil
}

func (c *TUIController) handleNormalKeys(msg tea.KeyMsg) tea.Cmd {
	eng := c.model.eng
	st := c.model.State()

	switch msg.String() {
	case "q":
		return tea.Quit
	case "?":
		c.showHelp = true
	case "H":
		c.showToasts = !c.showToasts
	case "j", "down":
		if c.cursor < len(st.Data.Items)-1 {
			c.cursor++
		}
	case "k", "up":
		if c.cursor > 0 {
			c.cursor--
		}
	case "C":
		return c.openCollection()
	case "y":
		if c.cursor < len(st.Data.Items) {
			c.copyID(st.Data.Items[c.cursor].ID)
		}
	}

	if st.Collection == "" {
		return nil
	}

	switch msg.String() {
	case "m":
		return c.openPicker(filter.TraitModel)
	case "b":
		return c.openPicker(filter.TraitBackdrop)
	case "s":
		return c.openPicker(filter.TraitSymbol)
	case "#":
		c.mode = modeID
		c.idInput.SetValue("")
		return c.idInput.Focus()
	case "x":
		return c.do("bar", eng.Bar.Clear)
	case "f":
		c.mode = modeSheet
		c.sheetSel = 0
		c.sheetIDOn = false
		eng.Sheet.Begin()
		return c.do("sheet.open", eng.Sheet.LoadCatalog)
	case "n":
		next := st.CurrentPage + 1
		return c.do("page", func(ctx context.Context) error { return eng.LoadPage(ctx, next) })
	case "p":
		prev := st.CurrentPage - 1
		return c.do("page", func(ctx context.Context) error { return eng.LoadPage(ctx, prev) })
	case "o":
		next := st.Sort.Next()
		return c.do("sort", func(ctx context.Context) error { return eng.SetSort(ctx, next) })
	}
	return nil
}

func (c *TUIController) copyID(id string) {
	if err := clipboard.WriteAll(id); err != nil {
		c.model.addToast("Copy failed: "+err.Error(), true)
		return
	}
	c.model.addToast("Copied gift id "+id, false)
}

func (c *TUIController) openPicker(trait string) tea.Cmd {
	c.mode = modePicker
	c.pickTrait = trait
	c.pickInput.SetValue("")
	c.pickSel = 0
	cmds := []tea.Cmd{c.pickInput.Focus()}
	if c.model.State().Catalog.Empty() {
		cmds = append(cmds, c.do("catalog", c.model.eng.EnsureCatalog))
	}
	return tea.Batch(cmds...)
}

func (c *TUIController) handlePickerKeys(msg tea.KeyMsg) tea.Cmd {
	opts := c.model.PickerOptions(c.pickTrait, c.pickInput.Value())
	switch msg.String() {
	case "esc":
		c.pickInput.Blur()
		c.mode = modeGallery
		return nil
	case "up", "ctrl+p":
		if c.pickSel > 0 {
			c.pickSel--
		}
		return nil
	case "down", "ctrl+n":
		if c.pickSel < len(opts)-1 {
			c.pickSel++
		}
		return nil
	case "enter":
		if c.pickSel >= len(opts) {
			return nil
		}
		trait, value := c.pickTrait, opts[c.pickSel]
		c.pickInput.Blur()
		c.mode = modeGallery
		return c.do("bar", func(ctx context.Context) error {
			return c.model.eng.Bar.SetTrait(ctx, trait, value)
		})
	}
	var cmd tea.Cmd
	c.pickInput, cmd = c.pickInput.Update(msg)
	c.pickSel = 0
	return cmd
}

func (c *TUIController) handleIDKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		c.idInput.Blur()
		c.mode = modeGallery
		return nil
	case "enter":
		raw := c.idInput.Value()
		c.idInput.Blur()
		c.mode = modeGallery
		return c.do("bar", func(ctx context.Context) error {
			return c.model.eng.Bar.ApplyID(ctx, raw)
		})
	}
	var cmd tea.Cmd
	c.idInput, cmd = c.idInput.Update(msg)
	return cmd
}

func (c *TUIController) handleSheetKeys(msg tea.KeyMsg) tea.Cmd {
	sheet := c.model.eng.Sheet
	if c.sheetIDOn {
		switch msg.String() {
		case "esc":
			c.sheetIDOn = false
			c.sheetIDInput.Blur()
			return nil
		case "enter":
			c.sheetIDOn = false
			c.sheetIDInput.Blur()
			if err := sheet.SetID(c.sheetIDInput.Value()); err != nil {
				c.model.addToast(apperrors.Message(err), true)
			}
			return nil
		}
		var cmd tea.Cmd
		c.sheetIDInput, cmd = c.sheetIDInput.Update(msg)
		return cmd
	}

	rows := c.model.SheetRows()
	switch msg.String() {
	case "esc", "q":
		sheet.Close()
		c.mode = modeGallery
	case "j", "down":
		if c.sheetSel < len(rows)-1 {
			c.sheetSel++
		}
	case "k", "up":
		if c.sheetSel > 0 {
			c.sheetSel--
		}
	case " ", "space", "enter":
		if c.sheetSel < len(rows) {
			r := rows[c.sheetSel]
			sheet.Toggle(r.trait, r.value)
		}
	case "#":
		c.sheetIDOn = true
		c.sheetIDInput.SetValue(sheet.Draft().First(filter.IDTrait))
		if c.sheetIDInput.Value() == filter.All {
			c.sheetIDInput.SetValue("")
		}
		return c.sheetIDInput.Focus()
	case "a":
		if sheet.Busy() || sheet.SelectedCount() == 0 {
			return nil
		}
		return c.do("sheet.apply", sheet.Apply)
	case "c":
		if sheet.Busy() || sheet.SelectedCount() == 0 {
			return nil
		}
		return c.do("sheet.clear", sheet.Clear)
	}
	return nil
}

func (c *TUIController) openCollection() tea.Cmd {
	c.mode = modeCollection
	c.collInput.SetValue("")
	c.collSel = -1
	load := c.model.LoadRecents
	return tea.Batch(c.collInput.Focus(), func() tea.Msg { return load() })
}

func (c *TUIController) handleCollectionKeys(msg tea.KeyMsg) tea.Cmd {
	matches := c.model.MatchRecents(c.collInput.Value())
	switch msg.String() {
	case "esc":
		c.collInput.Blur()
		c.mode = modeGallery
		return nil
	case "down", "ctrl+n":
		if c.collSel < len(matches)-1 {
			c.collSel++
		}
		return nil
	case "up", "ctrl+p":
		if c.collSel > -1 {
			c.collSel--
		}
		return nil
	case "tab":
		if c.collSel >= 0 && c.collSel < len(matches) {
			c.collInput.SetValue(matches[c.collSel])
			c.collInput.CursorEnd()
			c.collSel = -1
		}
		return nil
	case "enter":
		name := strings.TrimSpace(c.collInput.Value())
		if c.collSel >= 0 && c.collSel < len(matches) {
			name = matches[c.collSel]
		}
		if name == "" {
			return nil
		}
		c.collInput.Blur()
		c.mode = modeGallery
		return c.do("collection", func(ctx context.Context) error {
			return c.model.eng.SelectCollection(ctx, name)
		})
	}
	var cmd tea.Cmd
	c.collInput, cmd = c.collInput.Update(msg)
	c.collSel = -1
	return cmd
}
