// Package extract pulls embedded images out of container documents and
// persists each one to a scoped temporary file.
//
// A Set owns every temp file it hands out. Consumers (OCR, AI description,
// preview rendering) only read Image.Path; the owner calls Set.Release once
// all of them have finished.
package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	// Registered for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

// PreviewChars is how much of the base64 payload a preview keeps.
const PreviewChars = 100

// LocationKind names the container unit an image was found in.
type LocationKind string

const (
	KindDocument LocationKind = "document"
	KindSlide    LocationKind = "slide"
	KindSheet    LocationKind = "sheet"
	KindPage     LocationKind = "page"
	KindImage    LocationKind = "image"
)

// Location tags where an image came from. Index is 1-based for slides and
// pages.
type Location struct {
	Kind  LocationKind `json:"kind"`
	Index int          `json:"index,omitempty"`
	Sheet string       `json:"sheet,omitempty"`
	Cell  string       `json:"cell,omitempty"`
}

func (l Location) String() string {
	switch l.Kind {
	case KindSlide:
		return fmt.Sprintf("Slide %d", l.Index)
	case KindPage:
		return fmt.Sprintf("Page %d", l.Index)
	case KindSheet:
		if l.Cell != "" {
			return fmt.Sprintf("Sheet %s (%s)", l.Sheet, l.Cell)
		}
		return "Sheet " + l.Sheet
	case KindImage:
		return "Standalone image"
	default:
		return "Document body"
	}
}

// Image is one extracted image. OCR is filled in by the OCR stage and keeps
// tier markers.
type Image struct {
	Index    int      `json:"index"`
	Location Location `json:"location"`
	Source   string   `json:"source"`
	Format   string   `json:"format"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Mode     string   `json:"mode"`
	Bytes    int      `json:"bytes"`
	Preview  string   `json:"preview"`

	OCR    ocr.Result `json:"-"`
	OCRErr error      `json:"-"`

	path     string
	once     sync.Once
	released atomic.Int32
}

// Path is the temp file holding the image bytes. It is valid until the
// owning Set is released.
func (i *Image) Path() string { return i.path }

// OCRText returns the recognized text with tier markers.
func (i *Image) OCRText() string { return i.OCR.Text() }

// Release removes the temp file. Only the first call has an effect.
func (i *Image) Release() error {
	var err error
	i.once.Do(func() {
		i.released.Add(1)
		if rmErr := os.Remove(i.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	})
	return err
}

// Released reports how many times the temp file was removed (0 or 1).
func (i *Image) Released() int { return int(i.released.Load()) }

// Set is the ordered image list of one document plus the temp directory
// that backs it.
type Set struct {
	Images []*Image
	dir    string
	once   sync.Once
}

// Len returns the number of images.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Images)
}

// Release frees every image and the backing directory exactly once.
func (s *Set) Release() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		for _, img := range s.Images {
			if rErr := img.Release(); rErr != nil && err == nil {
				err = rErr
			}
		}
		if s.dir != "" {
			if rErr := os.RemoveAll(s.dir); rErr != nil && err == nil {
				err = rErr
			}
		}
	})
	return err
}

// add persists data as the next image of the set.
func (s *Set) add(data []byte, ext string, loc Location, source string) (*Image, error) {
	idx := len(s.Images) + 1
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}

	f, err := os.CreateTemp(s.dir, fmt.Sprintf("image_%03d_*.%s", idx, ext))
	if err != nil {
		return nil, fmt.Errorf("create image temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write image temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close image temp file: %w", err)
	}

	img := &Image{
		Index:    idx,
		Location: loc,
		Source:   source,
		Format:   strings.ToUpper(ext),
		Mode:     "unknown",
		Bytes:    len(data),
		path:     f.Name(),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Format = strings.ToUpper(format)
		img.Width, img.Height = cfg.Width, cfg.Height
		img.Mode = ModeName(cfg.ColorModel)
	}
	img.Preview = Preview(data, img.Format)
	s.Images = append(s.Images, img)
	return img, nil
}

// Preview returns a deliberately truncated data URI: the first
// PreviewChars characters of the base64 payload followed by "...".
func Preview(data []byte, format string) string {
	enc := base64.StdEncoding.EncodeToString(data)
	if len(enc) > PreviewChars {
		enc = enc[:PreviewChars]
	}
	mime := strings.ToLower(format)
	if mime == "" || mime == "bin" {
		mime = "png"
	}
	return "data:image/" + mime + ";base64," + enc + "..."
}

// ModeName reports the PIL-style mode of a color model.
func ModeName(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return "RGBA"
	case color.YCbCrModel:
		return "RGB"
	case color.NYCbCrAModel:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	}
	return "RGB"
}
