package converter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

// BaseConverter turns a local file into markdown. Implementations return an
// error wrapping ErrNoConverterAttempted when no parser accepts the input.
type BaseConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Converter routes conversions through the native Go backend.
// HTTP/HTTPS URIs are fetched and converted as HTML.
// file:// URIs are resolved to local paths.
type Converter struct {
	native *formatConverter
	cfg    *config.Config
	log    zerolog.Logger
}

var _ BaseConverter = (*Converter)(nil)

// NewConverter creates a Converter. A nil cfg selects config.Default().
func NewConverter(cfg *config.Config, log zerolog.Logger) *Converter {
	if cfg == nil {
		cfg = config.Default()
	}
	native := newFormatConverter()
	native.maxBytes = cfg.MaxFileSizeBytes
	return &Converter{
		native: native,
		cfg:    cfg,
		log:    log.With().Str("component", "converter").Logger(),
	}
}

// Validate checks that filePath exists, is a regular file and is within the
// size limit.
func (c *Converter) Validate(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return domain.NewValidationError(domain.ErrFileNotFound, filePath, "")
	}
	if info.IsDir() {
		return domain.NewValidationError(domain.ErrUnsupportedFormat, filePath, "is a directory")
	}
	if info.Size() > c.cfg.MaxFileSizeBytes {
		return domain.NewValidationError(domain.ErrFileTooLarge, filePath,
			fmt.Sprintf("%d bytes, max %d", info.Size(), c.cfg.MaxFileSizeBytes))
	}
	return nil
}

// Accepts reports whether ext (no leading dot) is an input some converter,
// including the legacy path, can take.
func Accepts(ext string) bool {
	dotted := "." + strings.ToLower(ext)
	return nativeExts[dotted] || legacyExts[dotted] || specializedExts[dotted] != ""
}

// Convert implements BaseConverter. It does not validate; callers run
// Validate first.
func (c *Converter) Convert(_ context.Context, filePath string) (string, error) {
	out, err := c.native.ConvertFile(filePath)
	if err != nil {
		if errors.Is(err, ErrNoConverterAttempted) {
			return "", err
		}
		return "", &domain.ConversionError{Op: "convert " + filepath.Base(filePath), Err: err}
	}
	return out, nil
}

// ConvertFile validates then converts a local file path to Markdown.
func (c *Converter) ConvertFile(ctx context.Context, filePath string) (string, error) {
	if err := c.Validate(filePath); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	if specializedExts[ext] == "archive" || specializedExts[ext] == "audio" {
		return c.ConvertSpecialized(ctx, filePath)
	}
	return c.Convert(ctx, filePath)
}

// ConvertURL fetches a web page and converts it. Video-sharing URLs are
// described without fetching.
func (c *Converter) ConvertURL(ctx context.Context, rawURL string) (string, error) {
	if IsVideoURL(rawURL) {
		return RenderVideo(rawURL)
	}
	out, err := c.native.ConvertURL(ctx, rawURL)
	if err != nil {
		return "", &domain.ConversionError{Op: "fetch", Err: err}
	}
	return out, nil
}

// ConvertURI converts a URI to Markdown.
// Supported schemes: file://, http://, https://
func (c *Converter) ConvertURI(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI: %s", uri)
	}

	switch u.Scheme {
	case "file":
		return c.ConvertFile(ctx, u.Path)
	case "http", "https":
		return c.ConvertURL(ctx, uri)
	default:
		return "", fmt.Errorf("unsupported URI scheme: %q (expected file, http, or https)", u.Scheme)
	}
}

// SupportedFormats lists every accepted extension, sorted.
func (c *Converter) SupportedFormats() []string {
	set := make(map[string]bool)
	for _, f := range c.native.SupportedFormats() {
		set[f] = true
	}
	for ext := range legacyExts {
		set[strings.TrimPrefix(ext, ".")] = true
	}
	for ext := range specializedExts {
		set[strings.TrimPrefix(ext, ".")] = true
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// GetConversionInfo returns a Markdown summary of supported formats and config.
func (c *Converter) GetConversionInfo(_ context.Context) string {
	native := c.native.SupportedFormats()
	sort.Strings(native)
	special := make([]string, 0, len(specializedExts))
	for ext, family := range specializedExts {
		special = append(special, strings.TrimPrefix(ext, ".")+" ("+family+")")
	}
	sort.Strings(special)

	return fmt.Sprintf(`# Markdown Conversion Info

## Supported Formats (native Go)
%s

## Specialized Formats
%s

## Legacy Formats
- doc, ppt, xls (converted to docx, pptx, xlsx before parsing)

## Images
- jpg, jpeg, png, gif, bmp, webp, tif, tiff (OCR, optional AI description)

## Configuration
- Max file size: %d MB
- Office tool timeout: %s
- OCR engine: %s (%s)
- Page render DPI: %d
- LLM model: %s`,
		"- "+strings.Join(native, "\n- "),
		"- "+strings.Join(special, "\n- "),
		c.cfg.MaxFileSizeMB(),
		c.cfg.Office.Timeout,
		c.cfg.OCR.Engine, c.cfg.OCR.Languages,
		c.cfg.OCR.PageDPI,
		c.cfg.LLM.Model,
	)
}
