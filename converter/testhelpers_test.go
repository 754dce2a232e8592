package converter

// Shared test helpers for the converter package.

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

// ---- assertion helpers -----------------------------------------------------

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertErr(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("expected output to contain %q\ngot: %s", want, got)
	}
}

func assertNotEmpty(t *testing.T, got string) {
	t.Helper()
	if strings.TrimSpace(got) == "" {
		t.Error("expected non-empty output, got empty string")
	}
}

// ---- file factories --------------------------------------------------------

// writeTempFile writes content to a temp file with the given name and returns
// its path. The file is cleaned up automatically when the test ends.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeTempFile: %v", err)
	}
	return path
}

// makeDocx builds a .docx whose body is bodyXML. extra adds parts such as
// word/styles.xml or relationship files.
func makeDocx(t *testing.T, bodyXML string, extra ...map[string]string) string {
	t.Helper()
	const ns = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	entries := map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document ` + ns + `><w:body>` + bodyXML + `</w:body></w:document>`,
	}
	for _, parts := range extra {
		for name, content := range parts {
			entries[name] = content
		}
	}
	return writeZip(t, "test.docx", entries)
}

// relsPart renders a relationships part; each entry is id, type suffix,
// target and an optional "External" mode.
func relsPart(rels ...[4]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range rels {
		sb.WriteString(`<Relationship Id="` + r[0] + `" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/` +
			r[1] + `" Target="` + r[2] + `"`)
		if r[3] != "" {
			sb.WriteString(` TargetMode="` + r[3] + `"`)
		}
		sb.WriteString(`/>`)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// makeXLSX builds a minimal .xlsx file with one sheet and returns its path.
func makeXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet first so SetCellValue writes to the right name.
	if sheet != "Sheet1" {
		f.SetSheetName("Sheet1", sheet)
	}

	for r, row := range rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellValue(sheet, cell, val)
		}
	}

	path := filepath.Join(t.TempDir(), "test.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("makeXLSX SaveAs: %v", err)
	}
	return path
}

// pptxTestSlide is one generated slide: an optional title placeholder and an
// optional body shape. Both hold DrawingML paragraph content.
type pptxTestSlide struct {
	titleXML string
	bodyXML  string
}

const pptxNS = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

// makePPTX builds a .pptx with one slide per entry and returns its path.
func makePPTX(t *testing.T, slides []pptxTestSlide) string {
	t.Helper()
	entries := make(map[string]string, len(slides))
	for i, s := range slides {
		var tree strings.Builder
		if s.titleXML != "" {
			tree.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="1" name="Title"/><p:cNvSpPr/>` +
				`<p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>` +
				`<p:txBody><a:p>` + s.titleXML + `</a:p></p:txBody></p:sp>`)
		}
		if s.bodyXML != "" {
			tree.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Body"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>` +
				`<p:txBody><a:p>` + s.bodyXML + `</a:p></p:txBody></p:sp>`)
		}
		entries[fmt.Sprintf("ppt/slides/slide%d.xml", i+1)] = slideDoc(tree.String())
	}
	return writeZip(t, "test.pptx", entries)
}

// makePPTXRaw builds a single-slide .pptx whose shape tree is spTreeXML. An
// empty fragment produces a package without slides.
func makePPTXRaw(t *testing.T, spTreeXML string) string {
	t.Helper()
	entries := map[string]string{"[Content_Types].xml": `<?xml version="1.0"?><Types/>`}
	if spTreeXML != "" {
		entries["ppt/slides/slide1.xml"] = slideDoc(spTreeXML)
	}
	return writeZip(t, "test.pptx", entries)
}

func slideDoc(spTree string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<p:sld ` + pptxNS + `><p:cSld><p:spTree>` + spTree + `</p:spTree></p:cSld></p:sld>`
}

// writeZip stores entries in a zip named name and returns its path.
func writeZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("writeZip entry %s: %v", entry, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writeZip write %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("writeZip close: %v", err)
	}
	return writeTempFile(t, name, buf.String())
}

// makePDF builds a one-page PDF whose text layer holds text, with a correct
// cross-reference table.
func makePDF(t *testing.T, text string) string {
	t.Helper()
	content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R " +
			"/Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return writeTempFile(t, "test.pdf", buf.String())
}

// newTestConverter returns a Converter with default config and a silent logger.
func newTestConverter() *Converter {
	return NewConverter(config.Default(), zerolog.Nop())
}
