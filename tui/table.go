package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cast"

	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/perf"
)

// MaxCellWidth bounds a rendered cell; longer values are truncated.
const MaxCellWidth = 40

// Column represents a table column
type Column struct {
	Title string
	Width int
}

// Row represents a table row
type Row []string

// Table renders data in a styled table format
type Table struct {
	columns []Column
	rows    []Row
	styles  *Styles
}

// NewTable creates a new table with the given columns. A zero column width
// is sized to fit the title and the widest cell.
func NewTable(columns []Column) *Table {
	return &Table{
		columns: columns,
		styles:  DefaultStyles(),
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(row Row) {
	t.rows = append(t.rows, row)
}

func (t *Table) widths() []int {
	w := make([]int, len(t.columns))
	for i, col := range t.columns {
		if col.Width > 0 {
			w[i] = col.Width
			continue
		}
		w[i] = lipgloss.Width(col.Title)
		for _, row := range t.rows {
			if i < len(row) {
				w[i] = max(w[i], min(lipgloss.Width(row[i]), MaxCellWidth))
			}
		}
	}
	return w
}

// Render renders the table as a string
func (t *Table) Render() string {
	var b strings.Builder
	widths := t.widths()

	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		cells[i] = t.styles.TableHeader.Width(widths[i]).Render(col.Title)
	}
	b.WriteString(strings.Join(cells, "  ") + "\n")

	for i := range t.columns {
		cells[i] = t.styles.Muted.Render(strings.Repeat("─", widths[i]))
	}
	b.WriteString(strings.Join(cells, "  ") + "\n")

	for _, row := range t.rows {
		for i := range t.columns {
			var cell string
			if i < len(row) {
				cell = truncate(row[i], widths[i])
			}
			cells[i] = t.styles.TableRow.Width(widths[i]).Render(cell)
		}
		b.WriteString(strings.Join(cells, "  ") + "\n")
	}
	return b.String()
}

func truncate(s string, width int) string {
	if len(s) <= width || width < 4 {
		return s
	}
	return s[:width-2] + ".."
}

// RenderRowSet renders a query result. NULL values are shown as "null".
func RenderRowSet(rs *database.RowSet, styles *Styles) string {
	if styles == nil {
		styles = DefaultStyles()
	}
	if rs == nil {
		return styles.Muted.Render("no result") + "\n"
	}

	cols := make([]Column, len(rs.Columns))
	for i, c := range rs.Columns {
		cols[i] = Column{Title: strings.ToUpper(c)}
	}
	t := NewTable(cols)
	t.styles = styles
	for _, r := range rs.Rows {
		row := make(Row, len(r))
		for i, v := range r {
			if v == nil {
				row[i] = "null"
				continue
			}
			row[i] = cast.ToString(v)
		}
		t.AddRow(row)
	}

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString(fmt.Sprintf("\n%s %d rows\n", styles.Muted.Render("Total:"), rs.Len()))
	return b.String()
}

// RenderPopulationReport renders the per-asset outcome of a population or
// restore run.
func RenderPopulationReport(r *perf.PopulationReport) string {
	styles := DefaultStyles()
	var b strings.Builder
	b.WriteString(styles.Title.Render("Carrier Population") + "\n")

	if r.WipedRows > 0 {
		b.WriteString(fmt.Sprintf("%s wiped %d rows in %s\n\n",
			styles.Muted.Render(SymbolArrow), r.WipedRows, FormatDuration(r.WipeDuration)))
	}

	if len(r.Assets) == 0 {
		b.WriteString(styles.Muted.Render("  No APN assets found") + "\n")
		return b.String()
	}

	t := NewTable([]Column{
		{Title: ""}, {Title: "ASSET"}, {Title: "SOURCE"}, {Title: "ROWS"}, {Title: "TIME"}, {Title: "ERROR"},
	})
	for _, a := range r.Assets {
		status, errText := "ok", ""
		if a.Err != nil {
			status, errText = "rolled back", a.Err.Error()
		}
		t.AddRow(Row{
			styles.StatusIcon(status), a.Name, a.Source,
			fmt.Sprint(a.Rows), FormatDuration(a.Duration), errText,
		})
	}
	b.WriteString(t.Render())
	b.WriteString(fmt.Sprintf("\n%s %d rows in %s\n",
		styles.Muted.Render("Total:"), r.Rows(), FormatDuration(r.TotalDuration)))
	return b.String()
}

// RenderKeyValues renders label/value pairs in a bordered box.
func RenderKeyValues(title string, pairs [][2]string) string {
	styles := DefaultStyles()
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	lines := make([]string, 0, len(pairs)+1)
	lines = append(lines, styles.SectionHead.Render(title))
	for _, p := range pairs {
		label := styles.Info.Render(fmt.Sprintf("%-*s", width, p[0]))
		lines = append(lines, label+"  "+p[1])
	}
	return styles.Box.Render(strings.Join(lines, "\n")) + "\n"
}
