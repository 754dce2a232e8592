package converter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfPageBreak separates the text of consecutive pages.
const pdfPageBreak = "\n\n---\n\n"

var (
	trailingBlanks = regexp.MustCompile(`[ \t]+\n`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
)

// convertPDF extracts the text layer page by page. Scanned pages have no
// text layer; the image stage renders and recognizes those. The parser
// panics on some malformed files, which is reported as an error.
func convertPDF(filePath string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("parse pdf %s: %v", filePath, r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	fonts := make(map[string]*pdf.Font)
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, seen := fonts[name]; !seen {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if text = tidyPageText(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, pdfPageBreak), nil
}

func tidyPageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingBlanks.ReplaceAllString(s, "\n")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
