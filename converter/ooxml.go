package converter

// ooxml.go: pieces shared by the Word and PowerPoint readers. Both formats
// are zip packages of XML parts linked by relationship files, and both
// express text as paragraphs of formatted runs.

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ooxmlPackage is an open OOXML zip package.
type ooxmlPackage struct {
	zr    *zip.ReadCloser
	parts map[string]*zip.File
}

func openPackage(filePath string) (*ooxmlPackage, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	return &ooxmlPackage{zr: zr, parts: parts}, nil
}

func (p *ooxmlPackage) Close() error { return p.zr.Close() }

func (p *ooxmlPackage) has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// open returns a reader for the part name.
func (p *ooxmlPackage) open(name string) (io.ReadCloser, error) {
	f, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errPartMissing)
	}
	return f.Open()
}

var errPartMissing = errors.New("package part missing")

// relationship is one entry of a .rels part.
type relationship struct {
	Type     string
	Target   string
	External bool
}

// rels loads the relationships of part, resolving internal targets to
// package paths. A part without a .rels file has none.
func (p *ooxmlPackage) rels(part string) map[string]relationship {
	relsPath := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	rc, err := p.open(relsPath)
	if err != nil {
		return nil
	}
	defer func() { _ = rc.Close() }()

	var doc struct {
		Rels []struct {
			ID         string `xml:"Id,attr"`
			Type       string `xml:"Type,attr"`
			Target     string `xml:"Target,attr"`
			TargetMode string `xml:"TargetMode,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil
	}
	out := make(map[string]relationship, len(doc.Rels))
	for _, r := range doc.Rels {
		rel := relationship{Type: r.Type, Target: r.Target, External: r.TargetMode == "External"}
		if !rel.External {
			rel.Target = path.Clean(path.Join(path.Dir(part), r.Target))
		}
		out[r.ID] = rel
	}
	return out
}

// relTypeSuffix matches a relationship type by its last path element, which
// is the same in the transitional and strict schemas.
func relTypeSuffix(rel relationship, suffix string) bool {
	return strings.HasSuffix(rel.Type, "/"+suffix)
}

// ---- runs ------------------------------------------------------------------

// runStyle is the inline formatting of a run.
type runStyle struct {
	bold, italic, strike bool
}

// segment is a run of text with one style, optionally a link target.
type segment struct {
	text  string
	style runStyle
	link  string
}

// renderSegments coalesces neighbouring segments that share style and link,
// then renders them as inline markdown.
func renderSegments(segs []segment) string {
	var merged []segment
	for _, s := range segs {
		if s.text == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].style == s.style && merged[n-1].link == s.link {
			merged[n-1].text += s.text
			continue
		}
		merged = append(merged, s)
	}
	var sb strings.Builder
	for _, s := range merged {
		text := applyInlineFormat(s.text, s.style)
		if s.link != "" && strings.TrimSpace(s.text) != "" {
			text = "[" + strings.TrimSpace(text) + "](" + s.link + ")"
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// applyInlineFormat wraps text in emphasis markers. Surrounding whitespace
// stays outside the markers so the result is valid markdown.
func applyInlineFormat(text string, st runStyle) string {
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	marker := ""
	switch {
	case st.bold && st.italic:
		marker = "***"
	case st.bold:
		marker = "**"
	case st.italic:
		marker = "*"
	}
	if st.strike {
		core = "~~" + core + "~~"
	}
	if marker == "" && !st.strike {
		return text
	}
	lead := text[:len(text)-len(strings.TrimLeft(text, " \t\n"))]
	trail := text[len(strings.TrimRight(text, " \t\n")):]
	return lead + marker + core + marker + trail
}

// ---- token helpers ---------------------------------------------------------

func attrVal(t xml.StartElement, localName string) string {
	for _, a := range t.Attr {
		if a.Name.Local == localName {
			return a.Value
		}
	}
	return ""
}

// boolAttr reads an OOXML on/off property. A bare element means on.
func boolAttr(t xml.StartElement, localName string) bool {
	for _, a := range t.Attr {
		if a.Name.Local == localName {
			switch a.Value {
			case "0", "false", "off", "none":
				return false
			}
			return true
		}
	}
	return true
}

// walk feeds every child token of the element just opened to visit until
// the matching end element. visit may consume whole child elements itself
// by returning true for a start element; walk then does not descend.
func walk(dec *xml.Decoder, visit func(tok xml.Token) (consumed bool, err error)) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch tok.(type) {
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
			if _, err := visit(tok); err != nil {
				return err
			}
			continue
		}
		consumed, err := visit(tok)
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok && !consumed {
			depth++
		}
	}
}
