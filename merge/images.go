// Package merge assembles the final markdown from base-converter text,
// per-image OCR blocks and optional AI descriptions.
package merge

import (
	"fmt"
	"strings"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

// OCRDisplayLimit caps a rendered OCR block, in characters.
const OCRDisplayLimit = 2000

// EmbeddedImagesHeading titles the per-document image section.
const EmbeddedImagesHeading = "Embedded Images"

// NoTextNote is rendered for an image without recognized text.
const NoTextNote = "*No text detected in this image.*"

// TruncateOCR cuts text to limit characters. The second result reports
// whether anything was removed.
func TruncateOCR(text string, limit int) (string, bool) {
	r := []rune(text)
	if len(r) <= limit {
		return text, false
	}
	return string(r[:limit]), true
}

// TruncationNotice explains a cut OCR block.
func TruncationNotice(shown, total int) string {
	return fmt.Sprintf("*[OCR text truncated: showing first %d of %d characters]*", shown, total)
}

// RenderOCRBlock renders display text for one image: markers stripped,
// fenced, capped at OCRDisplayLimit with a notice. Empty text yields
// NoTextNote.
func RenderOCRBlock(text string) string {
	display := strings.TrimSpace(ocr.StripMarkers(text))
	if display == "" {
		return NoTextNote
	}
	shown, cut := TruncateOCR(display, OCRDisplayLimit)

	var sb strings.Builder
	sb.WriteString("**Extracted Text (OCR):**\n\n```text\n")
	sb.WriteString(shown)
	sb.WriteString("\n```")
	if cut {
		sb.WriteString("\n\n")
		sb.WriteString(TruncationNotice(OCRDisplayLimit, len([]rune(display))))
	}
	return sb.String()
}

// RenderEmbeddedImages renders one "Embedded Images" section. analyses maps
// image index to its AI description; missing entries render no AI part.
// With dedup set, sentences that restate OCR text are dropped from each
// analysis.
func RenderEmbeddedImages(images []*extract.Image, analyses map[int]string, dedup bool) string {
	if len(images) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## " + EmbeddedImagesHeading + "\n\n")
	noun := "images"
	if len(images) == 1 {
		noun = "image"
	}
	fmt.Fprintf(&sb, "*Found %d embedded %s in the document*\n\n", len(images), noun)

	for _, img := range images {
		fmt.Fprintf(&sb, "### Image %d\n\n", img.Index)
		fmt.Fprintf(&sb, "*Location: %s*\n\n", img.Location)
		sb.WriteString("**Properties:**\n")
		if img.Width > 0 && img.Height > 0 {
			fmt.Fprintf(&sb, "- Size: %dx%d pixels\n", img.Width, img.Height)
		}
		fmt.Fprintf(&sb, "- Format: %s\n", img.Format)
		fmt.Fprintf(&sb, "- Mode: %s\n\n", img.Mode)

		sb.WriteString(RenderOCRBlock(img.OCRText()))
		sb.WriteString("\n\n")

		if analysis, ok := analyses[img.Index]; ok && strings.TrimSpace(analysis) != "" {
			if dedup {
				analysis = AnalysisWithoutOCR(analysis, img.OCRText())
			}
			sb.WriteString("**AI Analysis:**\n\n")
			sb.WriteString(strings.TrimSpace(analysis))
			sb.WriteString("\n\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// AppendSection joins section to base unless base already carries a
// heading with the same title.
func AppendSection(base, section string) string {
	section = strings.TrimSpace(section)
	if section == "" {
		return base
	}
	if title := firstHeading(section); title != "" && HasHeading(base, title) {
		return base
	}
	base = strings.TrimRight(base, "\n")
	if base == "" {
		return section + "\n"
	}
	return base + "\n\n" + section + "\n"
}

func firstHeading(md string) string {
	for _, h := range Outline(md) {
		return h.Text
	}
	return ""
}
