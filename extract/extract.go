package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// DefaultPageDPI is the rasterization resolution for page-based formats.
const DefaultPageDPI = 200

// ImageExts are standalone raster formats.
var ImageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "webp": true, "tif": true, "tiff": true,
}

var slideRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extractor walks a document and returns its images as a Set.
type Extractor struct {
	tempRoot string
	pageDPI  float64
	log      zerolog.Logger
}

// New returns an Extractor writing temp files under tempRoot (os.TempDir
// when empty).
func New(tempRoot string, pageDPI int, log zerolog.Logger) *Extractor {
	if pageDPI <= 0 {
		pageDPI = DefaultPageDPI
	}
	return &Extractor{tempRoot: tempRoot, pageDPI: float64(pageDPI), log: log}
}

// Supports reports whether ext (without dot) has an image traversal.
func (e *Extractor) Supports(ext string) bool {
	switch ext {
	case "docx", "pptx", "xlsx", "pdf":
		return true
	}
	return ImageExts[ext]
}

// Extract returns every image in path, in document order. On error nothing
// is left on disk.
func (e *Extractor) Extract(ctx context.Context, filePath string) (*Set, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if !e.Supports(ext) {
		return nil, fmt.Errorf("extract images: unsupported format %q", ext)
	}

	dir, err := os.MkdirTemp(e.tempRoot, "mdconvert-img-*")
	if err != nil {
		return nil, fmt.Errorf("create image temp dir: %w", err)
	}
	set := &Set{dir: dir}

	switch ext {
	case "docx":
		err = e.fromDOCX(ctx, filePath, set)
	case "pptx":
		err = e.fromPPTX(ctx, filePath, set)
	case "xlsx":
		err = e.fromXLSX(ctx, filePath, set)
	case "pdf":
		err = e.fromPDF(ctx, filePath, set)
	default:
		err = e.fromImage(filePath, ext, set)
	}
	if err != nil {
		_ = set.Release()
		return nil, err
	}

	e.log.Debug().
		Str("file", filepath.Base(filePath)).
		Int("images", set.Len()).
		Msg("images extracted")
	return set, nil
}

func (e *Extractor) fromImage(filePath, ext string, set *Set) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	_, err = set.add(data, ext, Location{Kind: KindImage}, filepath.Base(filePath))
	return err
}

// ---- DOCX ------------------------------------------------------------------

func (e *Extractor) fromDOCX(ctx context.Context, filePath string, set *Set) error {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return fmt.Errorf("open docx %s: %w", filePath, err)
	}
	defer func() { _ = zr.Close() }()

	idx := indexZip(&zr.Reader)
	targets, err := idx.imageTargets("word/document.xml")
	if err != nil {
		return err
	}
	return e.addTargets(ctx, idx, targets, Location{Kind: KindDocument}, set)
}

// ---- PPTX ------------------------------------------------------------------

func (e *Extractor) fromPPTX(ctx context.Context, filePath string, set *Set) error {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return fmt.Errorf("open pptx %s: %w", filePath, err)
	}
	defer func() { _ = zr.Close() }()

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideRE.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n, f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	idx := indexZip(&zr.Reader)
	for _, s := range slides {
		targets, err := idx.imageTargets(s.name)
		if err != nil {
			return fmt.Errorf("slide %d: %w", s.num, err)
		}
		if err := e.addTargets(ctx, idx, targets, Location{Kind: KindSlide, Index: s.num}, set); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) addTargets(ctx context.Context, idx zipIndex, targets []string, loc Location, set *Set) error {
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := idx.read(t)
		if err != nil {
			// Dangling relationships are common in edited decks.
			e.log.Debug().Err(err).Str("target", t).Msg("image entry skipped")
			continue
		}
		if _, err := set.add(data, path.Ext(t), loc, t); err != nil {
			return err
		}
	}
	return nil
}

// ---- XLSX ------------------------------------------------------------------

func (e *Extractor) fromXLSX(ctx context.Context, filePath string, set *Set) error {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return fmt.Errorf("open xlsx %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		cells, err := f.GetPictureCells(sheet)
		if err != nil {
			return fmt.Errorf("list pictures in sheet %q: %w", sheet, err)
		}
		for _, cell := range cells {
			if err := ctx.Err(); err != nil {
				return err
			}
			pics, err := f.GetPictures(sheet, cell)
			if err != nil {
				e.log.Debug().Err(err).Str("sheet", sheet).Str("cell", cell).Msg("picture skipped")
				continue
			}
			for _, p := range pics {
				loc := Location{Kind: KindSheet, Sheet: sheet, Cell: cell}
				if _, err := set.add(p.File, p.Extension, loc, sheet+"!"+cell); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ---- PDF -------------------------------------------------------------------

func (e *Extractor) fromPDF(ctx context.Context, filePath string, set *Set) error {
	doc, err := fitz.New(filePath)
	if err != nil {
		return fmt.Errorf("open pdf %s: %w", filePath, err)
	}
	defer func() { _ = doc.Close() }()

	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.ImageDPI(n, e.pageDPI)
		if err != nil {
			return fmt.Errorf("rasterize page %d: %w", n+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode page %d: %w", n+1, err)
		}
		loc := Location{Kind: KindPage, Index: n + 1}
		if _, err := set.add(buf.Bytes(), "png", loc, fmt.Sprintf("page %d", n+1)); err != nil {
			return err
		}
	}
	return nil
}
