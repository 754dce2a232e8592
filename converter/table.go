package converter

import (
	"strings"

	"golang.org/x/text/width"
)

// tableCellReplacer keeps cell text on one table line.
var tableCellReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>", "\r", "<br>")

// renderMarkdownTable renders rows as a pipe table with the first row as the
// header. Ragged rows are padded; columns are aligned by display width so
// wide CJK text lines up in a monospace view.
func renderMarkdownTable(rows [][]string) string {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}

	cells := make([][]string, len(rows))
	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}
	for r, row := range rows {
		cells[r] = make([]string, cols)
		for c := range cols {
			if c < len(row) {
				cells[r][c] = tableCellReplacer.Replace(strings.TrimSpace(row[c]))
			}
			widths[c] = max(widths[c], displayWidth(cells[r][c]))
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteByte('|')
		for c, cell := range row {
			sb.WriteString(" " + cell + strings.Repeat(" ", widths[c]-displayWidth(cell)) + " |")
		}
		sb.WriteByte('\n')
	}
	writeRow(cells[0])
	sb.WriteByte('|')
	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	sb.WriteByte('\n')
	for _, row := range cells[1:] {
		writeRow(row)
	}
	return sb.String()
}

// displayWidth counts East Asian wide and fullwidth runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
