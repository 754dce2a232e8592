package extract

// ooxml.go: relationship helpers shared by the DOCX and PPTX traversals.
//
// An OOXML part references images through <a:blip r:embed="rIdN"/>; the id
// resolves through the part's .rels file to a media entry in the archive.

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const imageRelType = "/image"

// parseBlipIDs returns the r:embed ids of all <a:blip> elements in document
// order, deduplicated.
func parseBlipIDs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	seen := make(map[string]bool)
	var ids []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml for image rels: %w", err)
		}
		if t, ok := tok.(xml.StartElement); ok && t.Name.Local == "blip" {
			if id := attrVal(t, "embed"); id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// relationship is one entry of a .rels part.
type relationship struct {
	ID     string
	Type   string
	Target string
	Mode   string
}

// parseRels parses an OOXML .rels part in declaration order.
func parseRels(r io.Reader) ([]relationship, error) {
	dec := xml.NewDecoder(r)
	var out []relationship
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse rels xml: %w", err)
		}
		if t, ok := tok.(xml.StartElement); ok && t.Name.Local == "Relationship" {
			rel := relationship{
				ID:     attrVal(t, "Id"),
				Type:   attrVal(t, "Type"),
				Target: attrVal(t, "Target"),
				Mode:   attrVal(t, "TargetMode"),
			}
			if rel.ID != "" && rel.Target != "" {
				out = append(out, rel)
			}
		}
	}
	return out, nil
}

func (r relationship) isImage() bool {
	return strings.HasSuffix(r.Type, imageRelType) && r.Mode != "External"
}

// relsPathFor returns the .rels part that belongs to part, e.g.
// word/document.xml -> word/_rels/document.xml.rels.
func relsPathFor(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolveZIPPath resolves a Target path from a .rels file. Targets are
// relative to the owning part's directory, the parent of _rels/.
func resolveZIPPath(relsFilePath, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(path.Dir(relsFilePath)), target)
}

// zipIndex gives by-name access to archive entries.
type zipIndex map[string]*zip.File

func indexZip(zr *zip.Reader) zipIndex {
	idx := make(zipIndex, len(zr.File))
	for _, f := range zr.File {
		idx[f.Name] = f
	}
	return idx
}

func (z zipIndex) read(name string) ([]byte, error) {
	f, ok := z[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %s: %w", name, errNoEntry)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (z zipIndex) open(name string) (io.ReadCloser, error) {
	f, ok := z[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %s: %w", name, errNoEntry)
	}
	return f.Open()
}

var errNoEntry = errors.New("not found")

// imageTargets returns the media paths referenced from part, in the order
// their blips appear. A missing .rels part yields no images.
func (z zipIndex) imageTargets(part string) ([]string, error) {
	relsPath := relsPathFor(part)
	rc, err := z.open(relsPath)
	if errors.Is(err, errNoEntry) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rels, err := parseRels(rc)
	_ = rc.Close()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]relationship, len(rels))
	for _, r := range rels {
		byID[r.ID] = r
	}

	prc, err := z.open(part)
	if err != nil {
		return nil, err
	}
	ids, err := parseBlipIDs(prc)
	_ = prc.Close()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var targets []string
	add := func(r relationship) {
		p := resolveZIPPath(relsPath, r.Target)
		if !seen[p] {
			seen[p] = true
			targets = append(targets, p)
		}
	}
	for _, id := range ids {
		if r, ok := byID[id]; ok && r.isImage() {
			add(r)
		}
	}
	// Images attached to the part but never placed by a blip (VML, charts)
	// follow in declaration order.
	for _, r := range rels {
		if r.isImage() {
			add(r)
		}
	}
	return targets, nil
}

func attrVal(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
