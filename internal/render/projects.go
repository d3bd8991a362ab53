package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pomflow/backend/pkg/models"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

// Projects renders projects as a table.
func Projects(projects []models.Project) string {
	if len(projects) == 0 {
		return descriptionStyle.Render("No projects yet.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "SOURCE", "CREATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, p := range projects {
		t.Row(p.ID, p.Name, p.SourceFile, p.CreatedAt)
	}
	return t.Render()
}
