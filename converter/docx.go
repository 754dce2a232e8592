package converter

// docx.go: Word documents. The body in word/document.xml is read block by
// block: paragraphs become headings, list items or text, tables become
// pipe tables. Heading levels come from paragraph styles, list markers
// from the numbering part, link targets from the document relationships.
// Pictures are left to the image extraction stage.

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const docxMainPart = "word/document.xml"

func convertDOCX(filePath string) (string, error) {
	pkg, err := openPackage(filePath)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = pkg.Close() }()

	if !pkg.has(docxMainPart) {
		return "", fmt.Errorf("%s not found in %s", docxMainPart, filePath)
	}
	r := &docxReader{
		links:     hyperlinkTargets(pkg.rels(docxMainPart)),
		styles:    loadStyleNames(pkg),
		numbering: loadNumbering(pkg),
	}

	rc, err := pkg.open(docxMainPart)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxMainPart, err)
	}
	defer func() { _ = rc.Close() }()
	if err := r.read(xml.NewDecoder(rc)); err != nil {
		return "", fmt.Errorf("parse %s: %w", docxMainPart, err)
	}
	return r.out.String(), nil
}

func hyperlinkTargets(rels map[string]relationship) map[string]string {
	links := make(map[string]string)
	for id, rel := range rels {
		if relTypeSuffix(rel, "hyperlink") {
			links[id] = rel.Target
		}
	}
	return links
}

// docxReader turns the document body into markdown.
type docxReader struct {
	links     map[string]string
	styles    map[string]string
	numbering docxNumbering
	out       strings.Builder
}

// docxParagraph is one parsed w:p.
type docxParagraph struct {
	style string
	numID string
	level int
	list  bool
	segs  []segment
}

func (r *docxReader) read(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "p":
			p, err := r.paragraph(dec)
			if err != nil {
				return err
			}
			r.writeParagraph(p)
		case "tbl":
			rows, err := r.table(dec)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				r.out.WriteString(renderMarkdownTable(rows))
				r.out.WriteByte('\n')
			}
		}
	}
}

// paragraph reads a w:p whose start element was consumed.
func (r *docxReader) paragraph(dec *xml.Decoder) (docxParagraph, error) {
	var p docxParagraph
	err := walk(dec, func(tok xml.Token) (bool, error) {
		se, ok := tok.(xml.StartElement)
		if !ok {
			return false, nil
		}
		switch se.Name.Local {
		case "pStyle":
			p.style = attrVal(se, "val")
		case "numPr":
			p.list = true
		case "ilvl":
			p.level, _ = strconv.Atoi(attrVal(se, "val"))
		case "numId":
			p.numID = attrVal(se, "val")
		case "r":
			segs, err := r.run(dec, "")
			p.segs = append(p.segs, segs...)
			return true, err
		case "hyperlink":
			link := r.links[attrVal(se, "id")]
			err := walk(dec, func(tok xml.Token) (bool, error) {
				if inner, ok := tok.(xml.StartElement); ok && inner.Name.Local == "r" {
					segs, err := r.run(dec, link)
					p.segs = append(p.segs, segs...)
					return true, err
				}
				return false, nil
			})
			return true, err
		}
		return false, nil
	})
	if p.numID == "0" {
		// numId 0 removes inherited numbering.
		p.list = false
	}
	return p, err
}

// run reads a w:r whose start element was consumed.
func (r *docxReader) run(dec *xml.Decoder, link string) ([]segment, error) {
	var (
		style runStyle
		text  strings.Builder
		inT   bool
	)
	err := walk(dec, func(tok xml.Token) (bool, error) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "b":
				style.bold = boolAttr(t, "val")
			case "i":
				style.italic = boolAttr(t, "val")
			case "strike", "dstrike":
				style.strike = boolAttr(t, "val")
			case "t":
				inT = true
			case "tab":
				text.WriteByte(' ')
			case "br", "cr":
				text.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inT = false
			}
		case xml.CharData:
			if inT {
				text.Write(t)
			}
		}
		return false, nil
	})
	return []segment{{text: text.String(), style: style, link: link}}, err
}

// table reads a w:tbl whose start element was consumed. Nested tables are
// flattened into their cell text.
func (r *docxReader) table(dec *xml.Decoder) ([][]string, error) {
	var (
		rows  [][]string
		row   []string
		cell  []string
		depth int
	)
	err := walk(dec, func(tok xml.Token) (bool, error) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 0 {
					row = nil
				}
			case "tc":
				if depth == 0 {
					cell = nil
				}
			case "p":
				p, err := r.paragraph(dec)
				if text := strings.TrimSpace(renderSegments(p.segs)); text != "" {
					cell = append(cell, text)
				}
				return true, err
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				depth--
			case "tc":
				if depth == 0 {
					row = append(row, strings.Join(cell, " "))
				}
			case "tr":
				if depth == 0 {
					rows = append(rows, row)
				}
			}
		}
		return false, nil
	})
	return rows, err
}

func (r *docxReader) writeParagraph(p docxParagraph) {
	text := strings.TrimSpace(renderSegments(p.segs))
	if text == "" {
		return
	}
	if level := headingLevel(r.styleName(p.style)); level > 0 {
		r.out.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
		return
	}
	if p.list {
		marker := r.numbering.marker(p.numID, p.level)
		r.out.WriteString(strings.Repeat("  ", p.level) + marker + " " + text + "\n")
		return
	}
	r.out.WriteString(text + "\n\n")
}

func (r *docxReader) styleName(id string) string {
	if name, ok := r.styles[id]; ok {
		return name
	}
	return id
}

// headingLevel maps a style name to a heading level, or 0.
func headingLevel(style string) int {
	key := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch key {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if n, ok := strings.CutPrefix(key, "heading"); ok {
		if level, err := strconv.Atoi(n); err == nil && level >= 1 && level <= 6 {
			return level
		}
	}
	return 0
}

// loadStyleNames maps style ids to their display names from word/styles.xml.
func loadStyleNames(pkg *ooxmlPackage) map[string]string {
	rc, err := pkg.open("word/styles.xml")
	if err != nil {
		return nil
	}
	defer func() { _ = rc.Close() }()
	var doc struct {
		Styles []struct {
			ID   string `xml:"styleId,attr"`
			Name struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil
	}
	names := make(map[string]string, len(doc.Styles))
	for _, s := range doc.Styles {
		if s.Name.Val != "" {
			names[s.ID] = s.Name.Val
		}
	}
	return names
}

// docxNumbering resolves a list instance and level to its number format.
type docxNumbering struct {
	abstract map[string]string         // numId -> abstractNumId
	formats  map[string]map[int]string // abstractNumId -> ilvl -> numFmt
}

func loadNumbering(pkg *ooxmlPackage) docxNumbering {
	rc, err := pkg.open("word/numbering.xml")
	if err != nil {
		return docxNumbering{}
	}
	defer func() { _ = rc.Close() }()
	var doc struct {
		Abstract []struct {
			ID     string `xml:"abstractNumId,attr"`
			Levels []struct {
				Ilvl   int `xml:"ilvl,attr"`
				NumFmt struct {
					Val string `xml:"val,attr"`
				} `xml:"numFmt"`
			} `xml:"lvl"`
		} `xml:"abstractNum"`
		Nums []struct {
			ID       string `xml:"numId,attr"`
			Abstract struct {
				Val string `xml:"val,attr"`
			} `xml:"abstractNumId"`
		} `xml:"num"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return docxNumbering{}
	}
	n := docxNumbering{abstract: map[string]string{}, formats: map[string]map[int]string{}}
	for _, a := range doc.Abstract {
		levels := make(map[int]string, len(a.Levels))
		for _, l := range a.Levels {
			levels[l.Ilvl] = l.NumFmt.Val
		}
		n.formats[a.ID] = levels
	}
	for _, num := range doc.Nums {
		n.abstract[num.ID] = num.Abstract.Val
	}
	return n
}

// marker returns "1." for ordered formats and "-" for bullets or unknown
// lists. Markdown renderers renumber ordered items themselves.
func (n docxNumbering) marker(numID string, level int) string {
	switch n.formats[n.abstract[numID]][level] {
	case "", "bullet", "none":
		return "-"
	default:
		return "1."
	}
}
