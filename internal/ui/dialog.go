package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type dialogKind int

const (
	dialogConfirm dialogKind = iota
	dialogError
	dialogSuccess
)

// dialog is a modal box. Confirm dialogs run onConfirm when accepted; the
// others just close.
type dialog struct {
	kind      dialogKind
	title     string
	body      string
	onConfirm tea.Cmd
}

func confirmDialog(title, body string, onConfirm tea.Cmd) *dialog {
	return &dialog{kind: dialogConfirm, title: title, body: body, onConfirm: onConfirm}
}

func errorDialog(title, body string) *dialog {
	return &dialog{kind: dialogError, title: title, body: body}
}

func successDialog(body string) *dialog {
	return &dialog{kind: dialogSuccess, body: body}
}

// handleKey reports whether the dialog should close and what to run.
func (d *dialog) handleKey(msg tea.KeyMsg) (closed bool, cmd tea.Cmd) {
	switch msg.String() {
	case "enter", "y":
		if d.kind == dialogConfirm {
			return true, d.onConfirm
		}
		return true, nil
	case "esc", "n", "q":
		return true, nil
	}
	return false, nil
}

func (d *dialog) view(s Styles) string {
	var sb strings.Builder
	switch d.kind {
	case dialogError:
		sb.WriteString(s.Error.Render(d.title))
	case dialogSuccess:
		sb.WriteString(s.Success.Render("Success"))
	default:
		sb.WriteString(s.Focused.Render(d.title))
	}
	sb.WriteString("\n\n")
	sb.WriteString(d.body)
	sb.WriteString("\n\n")
	if d.kind == dialogConfirm {
		sb.WriteString(s.Muted.Render("enter/y: OK   esc/n: Cancel"))
	} else {
		sb.WriteString(s.Muted.Render("enter: OK"))
	}
	return s.Dialog.Render(sb.String())
}
