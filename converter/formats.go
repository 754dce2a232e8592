package converter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoConverterAttempted is returned for an extension no parser accepts.
// Legacy office binaries carry this error so the caller can convert them to
// their modern container and retry.
var ErrNoConverterAttempted = errors.New("no converter attempted a conversion")

// containerParsers read a file by path; packages and PDFs are random access.
var containerParsers = map[string]func(string) (string, error){
	".docx": convertDOCX,
	".xlsx": convertXLSX,
	".pptx": convertPPTX,
	".pdf":  convertPDF,
}

// textParsers read decoded text.
var textParsers = map[string]func(c *formatConverter, text string) (string, error){
	".html": (*formatConverter).convertHTML,
	".htm":  (*formatConverter).convertHTML,
	".csv":  func(_ *formatConverter, s string) (string, error) { return convertCSV([]byte(s)) },
	".json": func(_ *formatConverter, s string) (string, error) { return convertJSON([]byte(s)) },
	".xml":  func(_ *formatConverter, s string) (string, error) { return convertXML(s) },
	".txt":  passthrough,
	".md":   passthrough,
}

// nativeExts is every extension parsed in process.
var nativeExts = func() map[string]bool {
	exts := make(map[string]bool, len(containerParsers)+len(textParsers))
	for ext := range containerParsers {
		exts[ext] = true
	}
	for ext := range textParsers {
		exts[ext] = true
	}
	return exts
}()

// legacyExts are accepted inputs without a parser of their own.
var legacyExts = map[string]bool{
	".doc": true,
	".ppt": true,
	".xls": true,
}

const fetchTimeout = 30 * time.Second

// formatConverter parses documents in process and fetches web pages.
type formatConverter struct {
	html     *md.Converter
	client   *http.Client
	maxBytes int64
}

func newFormatConverter() *formatConverter {
	html := md.NewConverter("", true, nil)
	html.Use(plugin.GitHubFlavored())
	html.Remove("script", "style", "noscript")
	return &formatConverter{
		html:   html,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// CanConvert reports whether the extension of filePath has an in-process
// parser. Matching ignores case.
func (c *formatConverter) CanConvert(filePath string) bool {
	return nativeExts[strings.ToLower(filepath.Ext(filePath))]
}

// SupportedFormats lists native extensions without the leading dot.
func (c *formatConverter) SupportedFormats() []string {
	out := make([]string, 0, len(nativeExts))
	for ext := range nativeExts {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	return out
}

// ConvertFile parses filePath by extension.
func (c *formatConverter) ConvertFile(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if parse, ok := containerParsers[ext]; ok {
		return parse(filePath)
	}
	parse, ok := textParsers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoConverterAttempted, ext)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text, err := decodeText(data, "")
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(filePath), err)
	}
	return parse(c, text)
}

// ConvertURL fetches an http(s) page and converts the body according to its
// media type. Bodies above maxBytes are rejected.
func (c *formatConverter) ConvertURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/html, text/markdown;q=0.9, text/plain;q=0.8, */*;q=0.5")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	var body io.Reader = resp.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return "", fmt.Errorf("response from %s exceeds %d bytes", url, c.maxBytes)
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	text, err := decodeText(data, params["charset"])
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	switch {
	case mediaType == "", mediaType == "text/html", mediaType == "application/xhtml+xml":
		return c.convertHTML(text)
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return convertJSON([]byte(text))
	case mediaType == "text/csv":
		return convertCSV([]byte(text))
	default:
		return text, nil
	}
}

// decodeText returns data as UTF-8. A byte order mark wins over the declared
// charset; unknown charsets are an error.
func decodeText(data []byte, charset string) (string, error) {
	fallback := transform.Transformer(transform.Nop)
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", fmt.Errorf("charset %q: %w", charset, err)
		}
		fallback = enc.NewDecoder()
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func passthrough(_ *formatConverter, text string) (string, error) { return text, nil }

// convertHTML falls back to a fenced block when the page cannot be parsed.
func (c *formatConverter) convertHTML(html string) (string, error) {
	out, err := c.html.ConvertString(html)
	if err != nil {
		return fence("html", html), nil
	}
	return out, nil
}

func convertCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return fence("csv", string(data)), nil
	}
	return renderMarkdownTable(records), nil
}

func convertJSON(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return fence("json", string(data)), nil
	}
	return fence("json", buf.String()), nil
}

func convertXML(xml string) (string, error) {
	return fence("xml", xml), nil
}

func fence(lang, body string) string {
	return "```" + lang + "\n" + strings.TrimRight(body, "\n") + "\n```"
}
