package converter

// specialized.go: converters with their own document framing. Archives list
// and convert their entries, structured data gets a titled rendering, and
// audio files are described by metadata only.

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ArchiveEntryLimit caps the converted text shown per archive entry.
const ArchiveEntryLimit = 5000

const archiveTruncated = "*[Content truncated...]*"

// specializedExts maps an extension to its converter family.
var specializedExts = map[string]string{
	".zip":  "archive",
	".json": "structured",
	".csv":  "structured",
	".xml":  "structured",
	".mp3":  "audio",
	".wav":  "audio",
	".ogg":  "audio",
	".m4a":  "audio",
	".flac": "audio",
}

// IsSpecialized reports whether ext (no leading dot) has a dedicated converter.
func IsSpecialized(ext string) bool {
	_, ok := specializedExts["."+strings.ToLower(ext)]
	return ok
}

// ConvertSpecialized converts an archive, structured data or audio file.
func (c *Converter) ConvertSpecialized(ctx context.Context, filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch specializedExts[ext] {
	case "archive":
		return c.convertArchive(ctx, filePath)
	case "structured":
		return convertStructured(filePath, ext)
	case "audio":
		return convertAudio(filePath, ext)
	}
	return "", fmt.Errorf("%w: %s", ErrNoConverterAttempted, ext)
}

func (c *Converter) convertArchive(ctx context.Context, filePath string) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", filePath, err)
	}
	defer func() { _ = zr.Close() }()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# ZIP Archive: %s\n\n", filepath.Base(filePath))

	sb.WriteString("## Archive Contents\n\n")
	for _, f := range zr.File {
		fmt.Fprintf(&sb, "- **%s** (%.2f KB)\n", f.Name, float64(f.UncompressedSize64)/1024)
	}

	sb.WriteString("\n## Extracted Content\n")

	dir, err := os.MkdirTemp(c.cfg.TempDir, "mdconvert-zip-*")
	if err != nil {
		return "", fmt.Errorf("create archive temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	for i, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "\n### %s\n\n", f.Name)

		text, entryErr := c.convertEntry(ctx, f, filepath.Join(dir, fmt.Sprintf("entry-%04d%s", i, strings.ToLower(path.Ext(f.Name)))))
		switch {
		case errors.Is(entryErr, ErrNoConverterAttempted):
			sb.WriteString("*[File format not supported for conversion]*\n")
		case entryErr != nil:
			c.log.Debug().Err(entryErr).Str("entry", f.Name).Msg("archive entry failed")
			fmt.Fprintf(&sb, "*[Error processing file: %v]*\n", entryErr)
		case strings.TrimSpace(text) == "":
			sb.WriteString("*[File format not supported for conversion]*\n")
		default:
			shown, cut := truncateRunes(text, ArchiveEntryLimit)
			sb.WriteString(strings.TrimRight(shown, "\n") + "\n")
			if cut {
				sb.WriteString("\n" + archiveTruncated + "\n")
			}
		}
	}
	return sb.String(), nil
}

// convertEntry writes one archive member to dst and converts it. Entry names
// never reach the filesystem, so hostile paths cannot escape dir.
func (c *Converter) convertEntry(ctx context.Context, f *zip.File, dst string) (string, error) {
	ext := strings.ToLower(filepath.Ext(dst))
	family := specializedExts[ext]
	if family == "archive" || (!nativeExts[ext] && family == "") {
		return "", fmt.Errorf("%w: %s", ErrNoConverterAttempted, ext)
	}
	if limit := c.cfg.MaxFileSizeBytes; limit > 0 && int64(f.UncompressedSize64) > limit {
		return "", fmt.Errorf("entry is %d bytes (max %d)", f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create entry file: %w", err)
	}
	_, copyErr := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64)+1))
	closeErr := out.Close()
	if copyErr != nil {
		return "", fmt.Errorf("extract entry: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("extract entry: %w", closeErr)
	}

	if family != "" {
		return c.ConvertSpecialized(ctx, dst)
	}
	return c.native.ConvertFile(dst)
}

func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

// --- structured data ---------------------------------------------------------

func convertStructured(filePath, ext string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(filePath)

	switch ext {
	case ".json":
		block, _ := convertJSON(data)
		out := fmt.Sprintf("# JSON File: %s\n\n%s\n", name, block)
		if view, err := jsonOutline(data); err == nil && view != "" {
			out += "\n## Structured View\n\n" + view
		}
		return out, nil
	case ".csv":
		table, _ := convertCSV(data)
		if strings.TrimSpace(table) == "" {
			return fmt.Sprintf("# CSV File: %s\n\n*Empty CSV file*\n", name), nil
		}
		return fmt.Sprintf("# CSV File: %s\n\n%s", name, table), nil
	default:
		block, _ := convertXML(string(data))
		return fmt.Sprintf("# XML File: %s\n\n%s\n", name, block), nil
	}
}

// jsonOutline renders a JSON document as nested markdown bullets, keeping
// the key order of the source.
func jsonOutline(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var sb strings.Builder
	if err := outlineValue(dec, &sb, 0, ""); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// outlineValue consumes one value from dec. label is the bullet prefix for
// the value, "**key**:" for object members; empty at the top level.
func outlineValue(dec *json.Decoder, sb *strings.Builder, level int, label string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", level)

	delim, ok := tok.(json.Delim)
	if !ok {
		if label != "" {
			fmt.Fprintf(sb, "%s- %s %s\n", indent, label, scalar(tok))
		} else {
			fmt.Fprintf(sb, "%s- %s\n", indent, scalar(tok))
		}
		return nil
	}
	if label == "" {
		return outlineContainer(dec, sb, delim, level)
	}
	fmt.Fprintf(sb, "%s- %s\n", indent, label)
	return outlineContainer(dec, sb, delim, level+1)
}

// outlineContainer renders the members of an object or array whose opening
// delimiter has already been read, then consumes the closing one.
func outlineContainer(dec *json.Decoder, sb *strings.Builder, open json.Delim, level int) error {
	indent := strings.Repeat("  ", level)
	for i := 1; dec.More(); i++ {
		if open == '{' {
			key, err := dec.Token()
			if err != nil {
				return err
			}
			if err := outlineValue(dec, sb, level, fmt.Sprintf("**%v**:", key)); err != nil {
				return err
			}
			continue
		}
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		inner, ok := tok.(json.Delim)
		if !ok {
			fmt.Fprintf(sb, "%s- %s\n", indent, scalar(tok))
			continue
		}
		fmt.Fprintf(sb, "%s- Item %d:\n", indent, i)
		if err := outlineContainer(dec, sb, inner, level+1); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func scalar(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// --- audio -------------------------------------------------------------------

func convertAudio(filePath, ext string) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("stat audio: %w", err)
	}
	name := filepath.Base(filePath)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Audio File: %s\n\n", name)
	sb.WriteString("## File Information\n\n")
	fmt.Fprintf(&sb, "- **Filename:** %s\n", name)
	fmt.Fprintf(&sb, "- **Format:** %s\n", strings.ToUpper(strings.TrimPrefix(ext, ".")))
	fmt.Fprintf(&sb, "- **File size:** %.2f KB\n", float64(info.Size())/1024)
	fmt.Fprintf(&sb, "- **Modified:** %s\n\n", info.ModTime().UTC().Format("2006-01-02 15:04:05 MST"))
	sb.WriteString("## Notes\n\n")
	sb.WriteString("- Audio content is not transcribed; only file metadata is reported.\n")
	return sb.String(), nil
}
