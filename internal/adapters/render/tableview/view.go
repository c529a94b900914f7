// Package tableview renders a page of JSON rows as a terminal table.
package tableview

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bnema/sessionkit/internal/table"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	emptyStyle  = lipgloss.NewStyle().Faint(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Render draws page with one column per key. The sorted column carries a
// ▲ or ▼ marker and a "Page x of y" footer follows the table.
func Render(page table.Page, columns []string, sort table.SortState) string {
	if page.TotalRows == 0 || len(columns) == 0 {
		return emptyStyle.Render("No rows.")
	}

	headers := make([]string, 0, len(columns))
	for _, column := range columns {
		headers = append(headers, header(column, sort))
	}

	rows := make([][]string, 0, len(page.Rows))
	for _, row := range page.Rows {
		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			cells = append(cells, Cell(row[column]))
		}
		rows = append(rows, cells)
	}

	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	footer := footerStyle.Render(fmt.Sprintf("Page %d of %d (%d rows)", page.Number, page.TotalPages, page.TotalRows))
	return lipgloss.JoinVertical(lipgloss.Left, t.String(), footer)
}

func header(column string, sort table.SortState) string {
	if sort.Key != column {
		return column
	}
	if sort.Direction == table.Desc {
		return column + " ▼"
	}
	return column + " ▲"
}

// Cell formats one decoded JSON value. Objects and arrays are shown as
// compact JSON.
func Cell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
