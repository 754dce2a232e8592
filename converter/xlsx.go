package converter

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXLSX renders every visible sheet as a "## name" heading and a pipe
// table. Blank rows and trailing blank columns are dropped; binary .xls
// workbooks go through the legacy converter instead.
func convertXLSX(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", fmt.Errorf("open xlsx %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		if visible, err := f.GetSheetVisible(sheet); err == nil && !visible {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		rows = compactRows(rows)
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n", sheet, renderMarkdownTable(rows))
	}
	return sb.String(), nil
}

func compactRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		last := -1
		for i, v := range row {
			if strings.TrimSpace(v) != "" {
				last = i
			}
		}
		if last >= 0 {
			out = append(out, row[:last+1])
		}
	}
	return out
}
