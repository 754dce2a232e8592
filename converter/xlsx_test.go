package converter

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestConvertXLSX_SheetTable(t *testing.T) {
	path := makeXLSX(t, "Budget", [][]string{
		{"Item", "Cost"},
		{"Desk", "120"},
		{"Lamp|LED", "35"},
	})
	out, err := convertXLSX(path)
	assertNoErr(t, err)
	want := "## Budget\n\n" +
		"| Item      | Cost |\n" +
		"| --------- | ---- |\n" +
		"| Desk      | 120  |\n" +
		`| Lamp\|LED | 35   |` + "\n\n"
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestConvertXLSX_SkipsHiddenAndEmptySheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "visible")
	_, _ = f.NewSheet("Secret")
	_ = f.SetCellValue("Secret", "A1", "hidden value")
	if err := f.SetSheetVisible("Secret", false); err != nil {
		t.Fatalf("SetSheetVisible: %v", err)
	}
	_, _ = f.NewSheet("Blank")
	_ = f.SetCellValue("Blank", "B2", "  ")

	path := filepath.Join(t.TempDir(), "hidden.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	out, err := convertXLSX(path)
	assertNoErr(t, err)
	assertContains(t, out, "## Sheet1")
	for _, unwanted := range []string{"Secret", "hidden value", "## Blank"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output contains %q:\n%s", unwanted, out)
		}
	}
}

func TestCompactRows(t *testing.T) {
	rows := compactRows([][]string{
		{"a", "b", "", ""},
		{"", " "},
		{},
		{"", "c"},
	})
	if len(rows) != 2 || len(rows[0]) != 2 || rows[1][1] != "c" {
		t.Errorf("compactRows = %q", rows)
	}
}

func TestRenderMarkdownTable(t *testing.T) {
	got := renderMarkdownTable([][]string{
		{"名前", "note"},
		{"x", "two\nlines"},
		{"ragged"},
	})
	want := "| 名前   | note         |\n" +
		"| ------ | ------------ |\n" +
		"| x      | two<br>lines |\n" +
		"| ragged |              |\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if renderMarkdownTable(nil) != "" || renderMarkdownTable([][]string{{}}) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestConvertXLSX_Broken(t *testing.T) {
	_, err := convertXLSX("/nonexistent/path/file.xlsx")
	assertErr(t, err)
	_, err = convertXLSX(writeTempFile(t, "bad.xlsx", "this is not a spreadsheet"))
	assertErr(t, err)
}
