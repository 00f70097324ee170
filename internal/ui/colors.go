package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette()

// Palette is a simple stylesheet built with named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	muted lipgloss.Style
}

func newPalette() *Palette {
	return &Palette{
		title: NewBold("#B088F9").MarginBottom(1),
		ok:    NewBold("#2ECB8F"),
		err:   NewBold("#F25D52"),
		warn:  NewStyle("#E5A33B"),
		help:  NewEm("#6B6B6B"),
		muted: NewStyle("#8A8A8A"),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
