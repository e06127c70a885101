package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"giftscope/internal/api"
	"giftscope/internal/config"
	"giftscope/internal/engine"
	"giftscope/internal/filter"
	"giftscope/internal/store"
)

type TUIView struct {
	styles  uiStyles
	width   int
	height  int
	compact bool
}

type uiStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	chip   lipgloss.Style
	row    lipgloss.Style
	sel    lipgloss.Style
	on     lipgloss.Style
	errTxt lipgloss.Style
	okTxt  lipgloss.Style
	footer lipgloss.Style
	border lipgloss.Style
}

func NewTUIView(cfg *config.Config) *TUIView {
	styles := uiStyles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		label:  lipgloss.NewStyle().Faint(true),
		chip:   lipgloss.NewStyle().Foreground(lipgloss.Color("219")),
		row:    lipgloss.NewStyle(),
		sel:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		on:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		errTxt: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		okTxt:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		footer: lipgloss.NewStyle().Faint(true),
		border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
	}
	v := &TUIView{styles: styles}
	if cfg != nil {
		v.compact = cfg.UI.Compact
	}
	return v
}

func (v *TUIView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *TUIView) View(model *TUIModel, controller *TUIController) string {
	if v.width == 0 {
		return "Loading..."
	}
	st := model.State()

	var b strings.Builder
	b.WriteString(v.renderHeader(st, model, controller))
	b.WriteString("\n")
	b.WriteString(v.renderQuickBar(st))
	b.WriteString("\n\n")

	switch {
	case controller.showHelp:
		b.WriteString(v.renderHelp())
	case controller.showToasts:
		b.WriteString(v.renderToastDrawer(model))
	case controller.mode == modeSheet:
		b.WriteString(v.renderSheet(model, controller))
	case controller.mode == modePicker:
		b.WriteString(v.renderPicker(model, controller))
	case controller.mode == modeID:
		b.WriteString(v.styles.border.Render("Filter by gift ID\n" + controller.idInput.View()))
	case controller.mode == modeCollection:
		b.WriteString(v.renderCollection(model, controller))
	default:
		b.WriteString(v.renderTable(st, controller.cursor))
	}

	b.WriteString("\n")
	if t := v.renderToasts(model); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString(v.renderCommandsBar(controller.mode))
	return b.String()
}

func (v *TUIView) renderHeader(st store.State, model *TUIModel, c *TUIController) string {
	var parts []string
	parts = append(parts, v.styles.title.Render("giftscope"))
	if st.Collection == "" {
		parts = append(parts, v.styles.label.Render("no collection (C to choose)"))
	} else {
		parts = append(parts, v.styles.header.Render(st.Collection))
		parts = append(parts, fmt.Sprintf("%s items", humanize.Comma(int64(st.Data.TotalItems))))
		pages := st.Data.TotalPages
		if pages < 1 {
			pages = 1
		}
		parts = append(parts, fmt.Sprintf("page %d/%d", st.CurrentPage, pages))
		parts = append(parts, "sort: "+st.Sort.Label())
	}
	if model.eng.Busy() || c.pending != "" {
		parts = append(parts, c.spin.View()+" loading")
	}
	return strings.Join(parts, "  •  ")
}

func (v *TUIView) renderQuickBar(st store.State) string {
	var parts []string
	for _, trait := range []string{filter.TraitModel, filter.TraitBackdrop, filter.TraitSymbol} {
		val := st.Filters.First(trait)
		style := v.styles.label
		if val != filter.All {
			style = v.styles.chip
		}
		parts = append(parts, fmt.Sprintf("%s: %s", trait, style.Render(val)))
	}
	if id := st.Filters.Values(filter.IDTrait); len(id) > 0 {
		parts = append(parts, fmt.Sprintf("ID: %s", v.styles.chip.Render(id[0])))
	}
	if extra := otherTraits(st.Filters); extra > 0 {
		parts = append(parts, v.styles.label.Render(fmt.Sprintf("+%d more", extra)))
	}
	return strings.Join(parts, "   ")
}

// otherTraits counts selected values outside the quick-bar traits.
func otherTraits(s filter.Selection) int {
	n := 0
	for _, trait := range s.Traits() {
		switch trait {
		case filter.TraitModel, filter.TraitBackdrop, filter.TraitSymbol, filter.IDTrait:
			continue
		}
		n += len(s.Values(trait))
	}
	return n
}

func (v *TUIView) renderTable(st store.State, cursor int) string {
	if st.Collection == "" {
		return v.styles.label.Render("Press C to open a collection.")
	}
	items := st.Data.Items
	if len(items) == 0 {
		return v.styles.label.Render("No gifts match the current filters.")
	}
	var b strings.Builder
	head := fmt.Sprintf("%-7s  %-24s  %-16s  %-16s  %-16s", "#", "NAME", "MODEL", "BACKDROP", "SYMBOL")
	if !v.compact {
		head += fmt.Sprintf("  %12s", "PRICE")
	}
	b.WriteString(v.styles.header.Render(head))
	b.WriteString("\n")
	start, end := window(len(items), cursor, v.tableRows())
	for i := start; i < end; i++ {
		b.WriteString(v.renderItem(items[i], i == cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *TUIView) renderItem(it api.Item, selected bool) string {
	line := fmt.Sprintf("%-7s  %-24s  %-16s  %-16s  %-16s",
		"#"+humanize.Comma(int64(it.Number)),
		trunc(it.Name, 24),
		trunc(it.Trait(filter.TraitModel), 16),
		trunc(it.Trait(filter.TraitBackdrop), 16),
		trunc(it.Trait(filter.TraitSymbol), 16))
	if !v.compact {
		price := "-"
		if it.Price > 0 {
			price = humanize.CommafWithDigits(it.Price, 2)
			if it.Currency != "" {
				price += " " + it.Currency
			}
		}
		line += fmt.Sprintf("  %12s", price)
	}
	if selected {
		return v.styles.sel.Render("> " + line)
	}
	return v.styles.row.Render("  " + line)
}

func (v *TUIView) tableRows() int {
	n := v.height - 8
	if n < 5 {
		n = 5
	}
	return n
}

func (v *TUIView) renderPicker(model *TUIModel, c *TUIController) string {
	var b strings.Builder
	b.WriteString(v.styles.header.Render("Select "+c.pickTrait) + "\n")
	b.WriteString(c.pickInput.View() + "\n")
	current := model.eng.Bar.Current(c.pickTrait)
	opts := model.PickerOptions(c.pickTrait, c.pickInput.Value())
	start, end := window(len(opts), c.pickSel, v.tableRows()-2)
	for i := start; i < end; i++ {
		mark := ""
		if opts[i] == current {
			mark = v.styles.on.Render(" ✓")
		}
		if i == c.pickSel {
			b.WriteString(v.styles.sel.Render("> "+opts[i]) + mark + "\n")
		} else {
			b.WriteString("  " + opts[i] + mark + "\n")
		}
	}
	if len(opts) == 1 && model.State().Catalog.Empty() {
		b.WriteString(v.styles.label.Render("  loading attributes...") + "\n")
	}
	return v.styles.border.Render(strings.TrimRight(b.String(), "\n"))
}

func (v *TUIView) renderSheet(model *TUIModel, c *TUIController) string {
	sheet := model.eng.Sheet
	draft := sheet.Draft()
	var b strings.Builder
	b.WriteString(v.styles.header.Render(fmt.Sprintf("Filters (%d selected)", sheet.SelectedCount())) + "\n")

	rows := model.SheetRows()
	switch {
	case sheet.LoadingCatalog():
		b.WriteString(c.spin.View() + " Loading attributes...\n")
	case len(rows) == 0:
		b.WriteString(v.styles.label.Render("No attributes available.") + "\n")
	}

	start, end := window(len(rows), c.sheetSel, v.tableRows()-4)
	lastTrait := ""
	for i := start; i < end; i++ {
		r := rows[i]
		if r.trait != lastTrait {
			b.WriteString(v.styles.title.Render(r.trait) + "\n")
			lastTrait = r.trait
		}
		box := "[ ]"
		if draft.Has(r.trait, r.value) {
			box = v.styles.on.Render("[x]")
		}
		stat := v.styles.label.Render(fmt.Sprintf("%s (%.2f%%)", humanize.Comma(int64(r.stat.Count)), r.stat.Percentage))
		line := fmt.Sprintf("%s %-24s %s", box, trunc(r.value, 24), stat)
		if i == c.sheetSel {
			b.WriteString(v.styles.sel.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if c.sheetIDOn {
		b.WriteString("ID: " + c.sheetIDInput.View() + "\n")
	} else if id := draft.Values(filter.IDTrait); len(id) > 0 {
		b.WriteString("ID: " + v.styles.chip.Render(id[0]) + "\n")
	}

	b.WriteString("\n")
	p := sheet.Preview()
	b.WriteString(v.renderPreview(p, c))
	switch {
	case sheet.Busy():
		b.WriteString("\n" + v.styles.label.Render("applying..."))
	case sheet.SelectedCount() > 0:
		b.WriteString("\n" + v.styles.chip.Render(applyLabel(p)))
	}
	return v.styles.border.Render(b.String())
}

// applyLabel names the a key, with the match count once it is known.
func applyLabel(p engine.Preview) string {
	if p.Known && !p.Loading {
		return fmt.Sprintf("a: Apply Filters (%s gifts)", humanize.Comma(int64(p.Total)))
	}
	return "a: Apply Filters"
}

func (v *TUIView) renderPreview(p engine.Preview, c *TUIController) string {
	switch {
	case p.Loading:
		return c.spin.View() + " Calculating..."
	case p.Known:
		return v.styles.okTxt.Render(previewText(p.Total))
	}
	return ""
}

func previewText(total int) string {
	return fmt.Sprintf("%s gifts match your selected filters", humanize.Comma(int64(total)))
}

func (v *TUIView) renderCollection(model *TUIModel, c *TUIController) string {
	var b strings.Builder
	b.WriteString(v.styles.header.Render("Open collection") + "\n")
	b.WriteString(c.collInput.View() + "\n")
	matches := model.MatchRecents(c.collInput.Value())
	if len(matches) > 0 {
		b.WriteString(v.styles.label.Render("recent:") + "\n")
	}
	for i, name := range matches {
		if i == c.collSel {
			b.WriteString(v.styles.sel.Render("> "+name) + "\n")
		} else {
			b.WriteString("  " + name + "\n")
		}
	}
	return v.styles.border.Render(strings.TrimRight(b.String(), "\n"))
}

// window returns the [start,end) slice of n rows that keeps sel visible.
func window(n, sel, size int) (int, int) {
	if size < 1 {
		size = 1
	}
	if n <= size {
		return 0, n
	}
	start := sel - size/2
	if start < 0 {
		start = 0
	}
	if start+size > n {
		start = n - size
	}
	return start, start + size
}

func trunc(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
