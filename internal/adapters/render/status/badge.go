package status

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const unknownColor = lipgloss.Color("245")

var badgeColors = map[string]lipgloss.Color{
	"idle":      lipgloss.Color("245"),
	"running":   lipgloss.Color("75"),
	"active":    lipgloss.Color("114"),
	"completed": lipgloss.Color("80"),
	"failed":    lipgloss.Color("203"),
	"error":     lipgloss.Color("203"),
	"pending":   lipgloss.Color("221"),
	"stopped":   lipgloss.Color("245"),
	"canceled":  lipgloss.Color("245"),
}

// BadgeLabel is label when set, otherwise the status with its first letter
// upper-cased.
func BadgeLabel(status, label string) string {
	if label != "" {
		return label
	}
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

// BadgeColor falls back to a neutral grey for statuses it does not know.
func BadgeColor(status string) lipgloss.Color {
	if color, ok := badgeColors[status]; ok {
		return color
	}
	return unknownColor
}

// Badge renders a coloured dot and label. Running and active statuses get a
// filled dot, everything else a hollow one.
func Badge(status, label string) string {
	dot := "○"
	if status == "running" || status == "active" {
		dot = "●"
	}
	return lipgloss.NewStyle().
		Foreground(BadgeColor(status)).
		Render(dot + " " + BadgeLabel(status, label))
}
