package converter

// pptx.go: PowerPoint decks. Slides are taken in presentation order (or by
// file number when ppt/presentation.xml is missing). Each slide renders as a
// slide marker, the title placeholder as a heading, the remaining text
// shapes and tables in document order, then the speaker notes. Pictures are
// left to the image extraction stage.

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	pptxPresentation = "ppt/presentation.xml"
	relsNamespace    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	// pptxSlideSep is the rule placed between non-empty slides.
	pptxSlideSep = "\n\n---\n\n"
)

var pptxSlideRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func convertPPTX(filePath string) (string, error) {
	pkg, err := openPackage(filePath)
	if err != nil {
		return "", fmt.Errorf("open pptx %s: %w", filePath, err)
	}
	defer func() { _ = pkg.Close() }()

	slides := slideOrder(pkg)
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in %s", filePath)
	}

	var parts []string
	for i, part := range slides {
		s, err := readSlide(pkg, part)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", i+1, err)
		}
		if text := s.render(i + 1); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, pptxSlideSep) + "\n", nil
}

// slideOrder lists slide part names as the presentation orders them.
func slideOrder(pkg *ooxmlPackage) []string {
	if order := presentationSlides(pkg); len(order) > 0 {
		return order
	}
	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range pkg.parts {
		if m := pptxSlideRE.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

// presentationSlides resolves p:sldIdLst through the presentation
// relationships. Entries pointing at missing parts are skipped.
func presentationSlides(pkg *ooxmlPackage) []string {
	rc, err := pkg.open(pptxPresentation)
	if err != nil {
		return nil
	}
	defer func() { _ = rc.Close() }()

	rels := pkg.rels(pptxPresentation)
	var names []string
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err != nil {
			return names
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space == relsNamespace && a.Name.Local == "id" {
				if rel, ok := rels[a.Value]; ok && pkg.has(rel.Target) {
					names = append(names, rel.Target)
				}
			}
		}
	}
}

// pptxParagraph is one a:p of a text body.
type pptxParagraph struct {
	level int
	segs  []segment
}

// pptxBlock is a text shape or a table, in the order it appears.
type pptxBlock struct {
	paras []pptxParagraph
	table [][]string
}

type pptxSlide struct {
	title  []string
	blocks []pptxBlock
	notes  []string
}

func readSlide(pkg *ooxmlPackage, part string) (*pptxSlide, error) {
	rels := pkg.rels(part)
	s := &pptxSlide{}
	r := &slideReader{links: hyperlinkTargets(rels)}
	err := r.parsePart(pkg, part, func(sh pptxShape) {
		switch {
		case sh.isTitle:
			for _, p := range sh.paras {
				if text := strings.TrimSpace(renderSegments(p.segs)); text != "" {
					s.title = append(s.title, text)
				}
			}
		case sh.table != nil:
			s.blocks = append(s.blocks, pptxBlock{table: sh.table})
		default:
			s.blocks = append(s.blocks, pptxBlock{paras: sh.paras})
		}
	})
	if err != nil {
		return nil, err
	}

	for _, rel := range rels {
		if !relTypeSuffix(rel, "notesSlide") || rel.External {
			continue
		}
		notes := &slideReader{links: hyperlinkTargets(pkg.rels(rel.Target))}
		// Notes pages also carry the slide image and number placeholders;
		// only the body placeholder holds the notes text.
		err := notes.parsePart(pkg, rel.Target, func(sh pptxShape) {
			if sh.placeholder != "body" {
				return
			}
			for _, p := range sh.paras {
				if text := strings.TrimSpace(renderSegments(p.segs)); text != "" {
					s.notes = append(s.notes, text)
				}
			}
		})
		if err != nil && !errors.Is(err, errPartMissing) {
			return nil, fmt.Errorf("notes: %w", err)
		}
	}
	return s, nil
}

func (s *pptxSlide) render(number int) string {
	var body strings.Builder
	if len(s.title) > 0 {
		body.WriteString("## " + strings.Join(s.title, " ") + "\n\n")
	}
	for _, b := range s.blocks {
		if b.table != nil {
			body.WriteString(renderMarkdownTable(b.table) + "\n")
			continue
		}
		for _, p := range b.paras {
			text := strings.TrimSpace(renderSegments(p.segs))
			if text == "" {
				continue
			}
			if p.level > 0 {
				text = strings.Repeat("  ", p.level-1) + "- " + text
			}
			body.WriteString(text + "\n\n")
		}
	}
	if len(s.notes) > 0 {
		body.WriteString("### Notes:\n\n" + strings.Join(s.notes, "\n\n") + "\n")
	}
	content := strings.TrimRight(body.String(), "\n")
	if content == "" {
		return ""
	}
	return fmt.Sprintf("<!-- Slide number: %d -->\n%s", number, content)
}

// pptxShape is a p:sp text shape or a table frame.
type pptxShape struct {
	placeholder string
	isTitle     bool
	paras       []pptxParagraph
	table       [][]string
}

type slideReader struct {
	links map[string]string
}

// parsePart streams part and hands each shape to emit in document order.
// Group shapes are walked through, so grouped text is not lost.
func (r *slideReader) parsePart(pkg *ooxmlPackage, part string, emit func(pptxShape)) error {
	rc, err := pkg.open(part)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", part, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "sp":
			sh, err := r.shape(dec)
			if err != nil {
				return fmt.Errorf("parse %s: %w", part, err)
			}
			emit(sh)
		case "tbl":
			rows, err := r.table(dec)
			if err != nil {
				return fmt.Errorf("parse %s: %w", part, err)
			}
			if len(rows) > 0 {
				emit(pptxShape{table: rows})
			}
		}
	}
}

func (r *slideReader) shape(dec *xml.Decoder) (pptxShape, error) {
	var sh pptxShape
	err := walk(dec, func(tok xml.Token) (bool, error) {
		se, ok := tok.(xml.StartElement)
		if !ok {
			return false, nil
		}
		switch se.Name.Local {
		case "ph":
			sh.placeholder = attrVal(se, "type")
			if sh.placeholder == "" {
				// An untyped placeholder is a body placeholder.
				sh.placeholder = "body"
			}
			sh.isTitle = sh.placeholder == "title" || sh.placeholder == "ctrTitle"
		case "txBody":
			paras, err := r.textBody(dec)
			sh.paras = append(sh.paras, paras...)
			return true, err
		}
		return false, nil
	})
	return sh, err
}

func (r *slideReader) textBody(dec *xml.Decoder) ([]pptxParagraph, error) {
	var paras []pptxParagraph
	err := walk(dec, func(tok xml.Token) (bool, error) {
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "p" {
			p, err := r.paragraph(dec)
			paras = append(paras, p)
			return true, err
		}
		return false, nil
	})
	return paras, err
}

func (r *slideReader) paragraph(dec *xml.Decoder) (pptxParagraph, error) {
	var p pptxParagraph
	err := walk(dec, func(tok xml.Token) (bool, error) {
		se, ok := tok.(xml.StartElement)
		if !ok {
			return false, nil
		}
		switch se.Name.Local {
		case "pPr":
			if lvl, err := strconv.Atoi(attrVal(se, "lvl")); err == nil && lvl > 0 {
				p.level = lvl
			}
		case "r", "fld":
			seg, err := r.run(dec)
			p.segs = append(p.segs, seg)
			return true, err
		case "br":
			p.segs = append(p.segs, segment{text: "\n"})
		}
		return false, nil
	})
	return p, err
}

// run reads an a:r or a:fld. DrawingML keeps formatting as attributes of
// a:rPr and the link target on a:hlinkClick inside it.
func (r *slideReader) run(dec *xml.Decoder) (segment, error) {
	var (
		seg  segment
		text strings.Builder
		inT  bool
	)
	err := walk(dec, func(tok xml.Token) (bool, error) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				seg.style.bold = onOff(attrVal(t, "b"))
				seg.style.italic = onOff(attrVal(t, "i"))
				strike := attrVal(t, "strike")
				seg.style.strike = strike != "" && strike != "noStrike"
			case "hlinkClick":
				seg.link = r.links[attrVal(t, "id")]
			case "t":
				inT = true
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
	seg.text = text.String()
	return seg, err
}

func (r *slideReader) table(dec *xml.Decoder) ([][]string, error) {
	var (
		rows [][]string
		row  []string
		cell []string
	)
	err := walk(dec, func(tok xml.Token) (bool, error) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tr":
				row = nil
			case "tc":
				cell = nil
			case "p":
				p, err := r.paragraph(dec)
				if text := strings.TrimSpace(renderSegments(p.segs)); text != "" {
					cell = append(cell, text)
				}
				return true, err
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				row = append(row, strings.Join(cell, " "))
			case "tr":
				rows = append(rows, row)
			}
		}
		return false, nil
	})
	return rows, err
}

func onOff(v string) bool { return v == "1" || v == "true" }
