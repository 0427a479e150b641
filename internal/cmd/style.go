package cmd

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var titler = cases.Title(language.English)

// interactive reports whether stdout is attached to a terminal. Styled
// output and the setup spinner are reserved for interactive use.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func header(s string) string {
	s = titler.String(s)
	if !interactive() {
		return s
	}
	return styleHeader.Render(s)
}

func okText(s string) string {
	if !interactive() {
		return s
	}
	return styleOK.Render(s)
}

func warnText(s string) string {
	if !interactive() {
		return s
	}
	return styleWarn.Render(s)
}

func errText(s string) string {
	if !interactive() {
		return s
	}
	return styleErr.Render(s)
}

func dimText(s string) string {
	if !interactive() {
		return s
	}
	return styleDim.Render(s)
}
