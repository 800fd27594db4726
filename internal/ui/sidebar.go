package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/campuspay/student-portal/internal/theme"
)

// SidebarWidth is the fixed column width reserved for the navigation
// sidebar when it is open.
const SidebarWidth = 20

// SidebarItem is one navigation entry.
type SidebarItem struct {
	Label  string
	Active bool
}

// RenderSidebar renders the vertical navigation column.
func RenderSidebar(items []SidebarItem, height int) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item.Active {
			lines = append(lines, theme.SelectedItemStyle.Render(item.Label))
		} else {
			lines = append(lines, theme.ListItemStyle.Render(item.Label))
		}
	}

	return lipgloss.NewStyle().
		Width(SidebarWidth - 1).
		Height(height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// JoinSidebar places the sidebar to the left of the main content.
func JoinSidebar(sidebar, content string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
}
