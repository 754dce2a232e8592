// Package legacy rescues pre-OOXML office files (.doc, .ppt, .xls) so the
// base converter can read them.
//
// Three strategies run in order: a disguised OOXML package is copied under
// its real extension; a true OLE2 binary goes through a headless office
// suite; otherwise a Failure lists what the user can do instead. A failed
// attempt never leaves files behind.
package legacy

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"
	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

// DefaultTimeout bounds one office-suite invocation.
const DefaultTimeout = 30 * time.Second

// modernExt maps each legacy extension to its OOXML successor.
var modernExt = map[string]string{
	"doc": "docx",
	"ppt": "pptx",
	"xls": "xlsx",
}

// packageRoots maps an OOXML package root to its extension.
var packageRoots = []struct {
	prefix string
	ext    string
}{
	{"word/", "docx"},
	{"ppt/", "pptx"},
	{"xl/", "xlsx"},
}

// Remediation is offered whenever automatic conversion is impossible.
var Remediation = []string{
	"Open the file in Microsoft Office (or another current office app) and save it in the modern format (.docx, .pptx or .xlsx)",
	"Upload it to a cloud editor such as Google Docs, Sheets or Slides and export it in the modern format",
	"Convert it with a third-party online converter (for example CloudConvert or Zamzar)",
	"Install LibreOffice so that soffice is on PATH, then retry",
}

// Method records which strategy produced a Result.
type Method string

const (
	MethodRenamed Method = "renamed"
	MethodOffice  Method = "office"
)

// Result is a converted file in a private temp directory.
type Result struct {
	Path   string
	Method Method
	dir    string
}

// Cleanup removes the converted artifact and its directory.
func (r *Result) Cleanup() error {
	if r == nil || r.dir == "" {
		return nil
	}
	dir := r.dir
	r.dir = ""
	return os.RemoveAll(dir)
}

// CanConvert reports whether ext (without dot) is a legacy office format.
func CanConvert(ext string) bool {
	_, ok := modernExt[strings.ToLower(ext)]
	return ok
}

// ModernExt returns the OOXML extension for a legacy one.
func ModernExt(ext string) string { return modernExt[strings.ToLower(ext)] }

// Converter runs the rescue strategies.
type Converter struct {
	tool     OfficeTool
	timeout  time.Duration
	tempRoot string
	log      zerolog.Logger
}

// New returns a Converter. A nil tool disables the office-suite strategy.
func New(tool OfficeTool, timeout time.Duration, tempRoot string, log zerolog.Logger) *Converter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Converter{tool: tool, timeout: timeout, tempRoot: tempRoot, log: log}
}

// Convert produces a modern-format copy of filePath. The caller owns the
// Result and must Cleanup it.
func (c *Converter) Convert(ctx context.Context, filePath string) (*Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	if !CanConvert(ext) {
		return nil, domain.NewValidationError(domain.ErrUnsupportedFormat, filePath, "not a legacy office format")
	}

	dir, err := os.MkdirTemp(c.tempRoot, "mdconvert-legacy-*")
	if err != nil {
		return nil, fmt.Errorf("create legacy temp dir: %w", err)
	}
	res, err := c.convertInto(ctx, filePath, ext, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	res.dir = dir
	return res, nil
}

func (c *Converter) convertInto(ctx context.Context, filePath, ext, dir string) (*Result, error) {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	if realExt, ok := SniffPackage(filePath); ok {
		dst := filepath.Join(dir, base+"."+realExt)
		if err := copyFile(filePath, dst); err != nil {
			return nil, fmt.Errorf("copy disguised %s package: %w", realExt, err)
		}
		c.log.Info().Str("file", filepath.Base(filePath)).Str("as", realExt).Msg("legacy file is a renamed OOXML package")
		return &Result{Path: dst, Method: MethodRenamed}, nil
	}

	ole := IsCompoundFile(filePath)
	if c.tool == nil || !c.tool.Available() {
		reason := "no office suite available to convert legacy binary ." + ext
		if !ole {
			reason = "file is neither an OLE2 compound document nor an OOXML package"
		}
		return nil, &domain.ExternalToolError{Tool: "office-suite", Reason: reason, Remediation: Remediation}
	}

	target := modernExt[ext]
	out, err := c.tool.Convert(ctx, filePath, target, dir, c.timeout)
	if err != nil {
		return nil, &domain.ExternalToolError{
			Tool:        c.tool.Name(),
			Reason:      err.Error(),
			Remediation: Remediation,
		}
	}
	c.log.Info().Str("file", filepath.Base(filePath)).Str("tool", c.tool.Name()).Msg("legacy file converted")
	return &Result{Path: out, Method: MethodOffice}, nil
}

// SniffPackage reports whether path is a zip-based OOXML package and which
// modern extension its package root implies.
func SniffPackage(path string) (string, bool) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", false
	}
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		for _, root := range packageRoots {
			if strings.HasPrefix(f.Name, root.prefix) {
				return root.ext, true
			}
		}
	}
	return "", false
}

// IsCompoundFile reports whether path parses as an OLE2 compound document,
// the container of the legacy binary formats.
func IsCompoundFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	doc, err := mscfb.New(f)
	if err != nil {
		return false
	}
	_, err = doc.Next()
	return err == nil || errors.Is(err, io.EOF)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
