// Package render draws query results for a terminal.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

// palette resolves the color tokens used by dilemma.Category.Style.
var palette = map[string]lipgloss.Color{
	"emerald-700": lipgloss.Color("#047857"),
	"red-700":     lipgloss.Color("#b91c1c"),
	"purple-700":  lipgloss.Color("#7e22ce"),
	"rose-700":    lipgloss.Color("#be123c"),
	"yellow-700":  lipgloss.Color("#a16207"),
	"indigo-700":  lipgloss.Color("#4338ca"),
	"stone-600":   lipgloss.Color("#57534e"),
}

// glyphs resolves icon tokens.
var glyphs = map[string]string{
	"check":     "✔",
	"cross":     "✘",
	"ghost":     "?",
	"bandage":   "✚",
	"biohazard": "☣",
	"skull":     "☠",
	"dot":       "·",
}

// Glyph returns the icon for a token, or the neutral dot for unknown tokens.
func Glyph(token string) string {
	if g, ok := glyphs[token]; ok {
		return g
	}
	return glyphs["dot"]
}

// Styles holds the lipgloss styles used for cards.
type Styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Card     lipgloss.Style
	Accent   lipgloss.Style
	Category map[dilemma.Category]lipgloss.Style
}

// DefaultStyles returns the colored theme.
func DefaultStyles() Styles {
	accent := lipgloss.Color("#ea580c") // orange-600
	s := Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1c1917")),
		Subtle: lipgloss.NewStyle().Foreground(lipgloss.Color("#78716c")),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#44403c")),
		Value:  lipgloss.NewStyle().Foreground(lipgloss.Color("#1c1917")),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#e7e5e4")).
			Padding(0, 1),
		Accent:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Category: make(map[dilemma.Category]lipgloss.Style),
	}
	for _, c := range dilemma.Categories() {
		st := c.Style()
		cs := lipgloss.NewStyle().Foreground(palette[st.Color])
		if st.Dim {
			cs = cs.Faint(true)
		} else {
			cs = cs.Bold(true)
		}
		s.Category[c] = cs
	}
	return s
}

// PlainStyles returns styles that add no escape codes or borders, for piped output.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	s := Styles{
		Title:    plain,
		Subtle:   plain,
		Label:    plain,
		Value:    plain,
		Card:     plain,
		Accent:   plain,
		Category: make(map[dilemma.Category]lipgloss.Style),
	}
	for _, c := range dilemma.Categories() {
		s.Category[c] = plain
	}
	return s
}
