// Package ui renders the CLI's tabular reports.
package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Table is a titled grid of cells. Column widths follow the widest cell,
// capped at MaxWidth display columns.
type Table struct {
	Title    string
	Headers  []string
	Rows     [][]string
	MaxWidth int    // per column; 0 means 40
	Right    []bool // right-align column i
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// StatusStyle colours a status cell.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "ok":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "FAIL", "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

// Render writes the table to w. Styles apply only when styled is set;
// status cells of a column named "status" get StatusStyle.
func (t *Table) Render(w io.Writer, styled bool) error {
	limit := t.MaxWidth
	if limit <= 0 {
		limit = 40
	}
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = min(max(widths[i], runewidth.StringWidth(cell)), limit)
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(render(titleStyle, t.Title, styled))
		b.WriteString("\n")
	}
	b.WriteString(t.line(t.Headers, widths, func(_ int, cell string) string {
		return render(headerStyle, cell, styled)
	}))
	for _, row := range t.Rows {
		b.WriteString(t.line(row, widths, func(i int, cell string) string {
			if strings.EqualFold(t.Headers[i], "status") {
				return render(StatusStyle(strings.TrimSpace(cell)), cell, styled)
			}
			return cell
		}))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) line(cells []string, widths []int, style func(int, string) string) string {
	var b strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = Truncate(cells[i], width)
		}
		pad := strings.Repeat(" ", width-runewidth.StringWidth(cell))
		if i < len(t.Right) && t.Right[i] {
			cell = pad + cell
		} else if i < len(widths)-1 {
			cell += pad
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(style(i, cell))
	}
	b.WriteString("\n")
	return b.String()
}

func render(s lipgloss.Style, text string, styled bool) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

// Truncate shortens value to width display columns, marking the cut.
func Truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
