// Package render draws pipeline state for terminals.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pomflow/backend/internal/pipeline"
)

var toneColors = map[pipeline.Tone]lipgloss.Color{
	pipeline.ToneInactive: lipgloss.Color("#9CA3AF"),
	pipeline.ToneCurrent:  lipgloss.Color("#8626C3"),
	pipeline.ToneSuccess:  lipgloss.Color("#22C55E"),
	pipeline.ToneError:    lipgloss.Color("#EF4444"),
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	descriptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	unknownStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Italic(true)
)

func toneStyle(t pipeline.Tone) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(toneColors[t])
}

func markGlyph(node pipeline.NodeView) string {
	switch node.Mark {
	case pipeline.MarkCheck:
		return "✓"
	case pipeline.MarkCross:
		return "✗"
	default:
		return fmt.Sprintf("%d", node.Ordinal)
	}
}

// Pipeline renders the vertical progression of a State.
func Pipeline(state pipeline.State) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Workflow · " + state.ProjectID))
	b.WriteString("\n\n")

	for _, node := range pipeline.View(state) {
		style := toneStyle(node.Tone)
		circle := style.Bold(node.Current).Render("(" + markGlyph(node) + ")")
		label := style.Bold(node.Current).Render(node.Label)

		b.WriteString(circle + " " + label)
		if node.Unknown {
			b.WriteString(" " + unknownStyle.Render("(status unknown)"))
		}
		b.WriteString("\n")
		b.WriteString("  │ " + descriptionStyle.Render(node.Description) + "\n")

		if node.Connector != "" {
			b.WriteString("  " + toneStyle(node.Connector).Render("│") + "\n")
		}
	}
	return b.String()
}
