package report

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/evalia/internal/model"
)

var verdictColors = map[model.Verdict]lipgloss.Color{
	model.VerdictPlausible:   lipgloss.Color("#2E7D32"),
	model.VerdictProven:      lipgloss.Color("#1565C0"),
	model.VerdictSpeculative: lipgloss.Color("#F9A825"),
	model.VerdictImplausible: lipgloss.Color("#8B0000"),
}

// Badge renders the verdict as a coloured label
func Badge(v model.Verdict) string {
	if v == "" {
		v = model.VerdictUnknown
	}
	color, ok := verdictColors[v]
	if !ok {
		color = lipgloss.Color("#4B4B4B")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#EAEAEA")).
		Background(color).
		Padding(0, 1).
		Render(string(v))
}

// Terminal renders an entry for a terminal: a verdict badge followed by the
// markdown report styled with glamour
func Terminal(entry *model.MemoryEntry, urlText string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	body, err := renderer.Render(Markdown(entry, urlText))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	verdict := model.VerdictUnknown
	if entry.Analysis != nil && entry.Analysis.Verdict != "" {
		verdict = entry.Analysis.Verdict
	}

	return "\n  " + Badge(verdict) + "\n" + body, nil
}
