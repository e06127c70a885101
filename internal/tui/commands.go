package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Toast notifications

func (v *TUIView) renderToasts(model *TUIModel) string {
	live := model.liveToasts()
	if len(live) == 0 {
		return ""
	}
	t := live[len(live)-1]
	if t.err {
		return v.styles.errTxt.Render(t.msg)
	}
	return v.styles.okTxt.Render(t.msg)
}

// Toast drawer

func (v *TUIView) renderToastDrawer(model *TUIModel) string {
	if len(model.toasts) == 0 {
		return v.styles.label.Render("(no recent notifications)")
	}
	var sb strings.Builder
	sb.WriteString(v.styles.header.Render("Notifications") + "\n")
	for i := len(model.toasts) - 1; i >= 0; i-- { // newest first
		t := model.toasts[i]
		msg := t.msg
		if t.err {
			msg = v.styles.errTxt.Render(msg)
		}
		sb.WriteString(fmt.Sprintf("%s  %s\n", msg, v.styles.label.Render(humanize.Time(t.when))))
	}
	return sb.String()
}

// Command bars

func (v *TUIView) renderCommandsBar(m mode) string {
	switch m {
	case modeSheet:
		return v.styles.footer.Render("j/k move • space toggle • # id • a apply • c clear • esc close")
	case modePicker:
		return v.styles.footer.Render("type to search • ↑/↓ move • enter select • esc cancel")
	case modeID:
		return v.styles.footer.Render("enter apply • esc cancel")
	case modeCollection:
		return v.styles.footer.Render("type a name • ↑/↓ recent • tab complete • enter open • esc cancel")
	}
	return v.styles.footer.Render("m model • b backdrop • s symbol • # id • x clear • f filters • n/p page • o sort • y copy id • C collection • H toasts • ? help • q quit")
}

// Help screen

func (v *TUIView) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(v.styles.header.Render("Help (TUI)") + "\n")
	sb.WriteString("Nav: j/k up/down • n/p next/previous page • o cycle sort\n")
	sb.WriteString("\n")
	sb.WriteString(v.styles.header.Render("Quick filters") + "\n")
	sb.WriteString("m/b/s pick a Model, Backdrop or Symbol; All removes the trait\n")
	sb.WriteString("# filter by gift id or number • x clear all filters\n")
	sb.WriteString("Quick filters apply immediately and replace the trait's values\n")
	sb.WriteString("\n")
	sb.WriteString(v.styles.header.Render("Filter sheet (f)") + "\n")
	sb.WriteString("space toggles a value; several values of one trait match any of them\n")
	sb.WriteString("The count updates shortly after you stop editing\n")
	sb.WriteString("a apply • c clear • # id • esc close without applying\n")
	sb.WriteString("\n")
	sb.WriteString("Copy: y copies the selected gift id\n")
	sb.WriteString("Collections: C switch (recent collections are remembered)\n")
	sb.WriteString("Toasts: H toggle drawer\n")
	sb.WriteString("Quit: q\n")
	return sb.String()
}
