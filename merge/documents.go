package merge

import (
	"fmt"
	"strings"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

// DocumentAnalysisHeading titles an appended whole-document analysis.
const DocumentAnalysisHeading = "AI Document Analysis"

// Standalone collects what is known about a single image input.
type Standalone struct {
	FileName  string
	Image     *extract.Image
	OCREngine string
	OCRErr    error
	AIEnabled bool
	Analysis  string
	AIModel   string
	Dedup     bool
}

// RenderStandaloneImage renders the markdown for an image input. The AI
// section appears only when AI mode produced an analysis.
func RenderStandaloneImage(s Standalone) string {
	img := s.Image
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Image Analysis: %s\n\n", s.FileName)

	sb.WriteString("## File Information\n\n")
	fmt.Fprintf(&sb, "- **Filename:** %s\n", s.FileName)
	if img.Width > 0 && img.Height > 0 {
		fmt.Fprintf(&sb, "- **Size:** %dx%d pixels\n", img.Width, img.Height)
	}
	fmt.Fprintf(&sb, "- **Format:** %s\n", img.Format)
	fmt.Fprintf(&sb, "- **Mode:** %s\n", img.Mode)
	fmt.Fprintf(&sb, "- **File size:** %d bytes\n\n", img.Bytes)

	sb.WriteString("## Extracted Text\n\n")
	lines := img.OCR.Lines
	if len(lines) == 0 {
		sb.WriteString("*No text detected in the image.*\n\n")
	} else {
		text, cut := TruncateOCR(ocr.JoinLines(lines), OCRDisplayLimit)
		for _, l := range strings.Split(text, "\n") {
			sb.WriteString("- " + l + "\n")
		}
		if cut {
			sb.WriteString("\n" + TruncationNotice(OCRDisplayLimit, len([]rune(ocr.JoinLines(lines)))) + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Image Preview\n\n")
	sb.WriteString("`" + img.Preview + "`\n\n")
	sb.WriteString("*Preview truncated to bound response size.*\n\n")

	if s.AIEnabled && strings.TrimSpace(s.Analysis) != "" {
		analysis := s.Analysis
		if s.Dedup {
			analysis = AnalysisWithoutOCR(analysis, img.OCRText())
		}
		sb.WriteString("## AI Analysis\n\n")
		sb.WriteString(strings.TrimSpace(analysis) + "\n\n")
	}

	sb.WriteString("## Notes\n\n")
	if s.OCREngine != "" {
		fmt.Fprintf(&sb, "- OCR engine: %s\n", s.OCREngine)
	}
	if s.OCRErr != nil {
		fmt.Fprintf(&sb, "- OCR could not run: %v\n", s.OCRErr)
	}
	if len(lines) == 0 {
		sb.WriteString("- No text was detected. The image may contain no text, or the text may be too small or low-contrast to recognize.\n")
	} else {
		fmt.Fprintf(&sb, "- Lines marked %s were recognized with low confidence.\n", ocr.UnverifiedMarker)
	}
	if s.AIEnabled && s.AIModel != "" {
		fmt.Fprintf(&sb, "- AI model: %s\n", s.AIModel)
	}
	return sb.String()
}

// AIDocument is the input of RenderAIDocument.
type AIDocument struct {
	DocType    string
	Model      string
	Base       string
	Images     string
	Analysis   string
	ImageCount int
}

// RenderAIDocument wraps base text, the images section and the document
// analysis under an "AI Enhanced Document" header.
func RenderAIDocument(d AIDocument) string {
	var sb strings.Builder
	sb.WriteString("# AI Enhanced Document\n\n")
	fmt.Fprintf(&sb, "**Document Type:** %s\n", strings.ToUpper(d.DocType))
	fmt.Fprintf(&sb, "**AI Processing:** %s (%d images analyzed)\n\n---\n\n", d.Model, d.ImageCount)

	out := sb.String() + strings.TrimSpace(d.Base) + "\n"
	out = AppendSection(out, d.Images)
	if strings.TrimSpace(d.Analysis) != "" {
		out = AppendSection(out, "## "+DocumentAnalysisHeading+"\n\n"+strings.TrimSpace(d.Analysis))
	}
	return out
}

// AppendDocumentAnalysis adds a whole-document analysis section to md.
func AppendDocumentAnalysis(md, analysis string) string {
	if strings.TrimSpace(analysis) == "" {
		return md
	}
	return AppendSection(md, "## "+DocumentAnalysisHeading+"\n\n"+strings.TrimSpace(analysis))
}
