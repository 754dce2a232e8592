package merge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

func imageWith(index int, loc extract.Location, lines ...ocr.TextLine) *extract.Image {
	return &extract.Image{
		Index:    index,
		Location: loc,
		Format:   "PNG",
		Width:    640,
		Height:   480,
		Mode:     "RGB",
		Bytes:    1234,
		Preview:  "data:image/png;base64,AAAA...",
		OCR:      ocr.Result{Lines: lines},
	}
}

// ---- truncation ------------------------------------------------------------

func TestRenderOCRBlock_TruncatesAt2000(t *testing.T) {
	block := RenderOCRBlock(strings.Repeat("q", 3000))
	assert.Equal(t, OCRDisplayLimit, strings.Count(block, "q"))
	assert.Contains(t, block, "truncated")
	assert.Contains(t, block, "3000")
}

func TestRenderOCRBlock_ShortTextUntouched(t *testing.T) {
	block := RenderOCRBlock(strings.Repeat("y", 1500))
	assert.Equal(t, 1500, strings.Count(block, "y"))
	assert.NotContains(t, block, "truncated")
}

func TestRenderOCRBlock_CountsRunes(t *testing.T) {
	block := RenderOCRBlock(strings.Repeat("語", 2000))
	assert.NotContains(t, block, "truncated")
}

func TestRenderOCRBlock_StripsMarkers(t *testing.T) {
	block := RenderOCRBlock("fuzzy " + ocr.UnverifiedMarker)
	assert.Contains(t, block, "fuzzy")
	assert.NotContains(t, block, ocr.UnverifiedMarker)
}

func TestRenderOCRBlock_Empty(t *testing.T) {
	assert.Equal(t, NoTextNote, RenderOCRBlock("  "))
}

// ---- embedded images -------------------------------------------------------

func TestRenderEmbeddedImages_TwoSlidesWithAI(t *testing.T) {
	imgs := []*extract.Image{
		imageWith(1, extract.Location{Kind: extract.KindSlide, Index: 1}, ocr.TextLine{Text: "Q3 Revenue", Confidence: 0.9}),
		imageWith(2, extract.Location{Kind: extract.KindSlide, Index: 3}),
	}
	analyses := map[int]string{
		1: "A bar chart comparing quarterly revenue across regions.",
		2: "A photograph of a team meeting in an office.",
	}

	md := RenderEmbeddedImages(imgs, analyses, true)

	assert.Equal(t, 1, strings.Count(md, "## Embedded Images"))
	assert.Equal(t, 2, strings.Count(md, "### Image "))
	assert.Equal(t, 2, strings.Count(md, "**AI Analysis:**"))
	assert.Contains(t, md, "*Found 2 embedded images in the document*")
	assert.Contains(t, md, "*Location: Slide 3*")
	assert.Contains(t, md, "- Size: 640x480 pixels")
	assert.Contains(t, md, "Q3 Revenue")
	assert.Contains(t, md, NoTextNote)
}

func TestRenderEmbeddedImages_NoTextNoAI(t *testing.T) {
	md := RenderEmbeddedImages([]*extract.Image{imageWith(1, extract.Location{Kind: extract.KindPage, Index: 1})}, nil, false)
	assert.Contains(t, md, "### Image 1")
	assert.Contains(t, md, NoTextNote)
	assert.NotContains(t, md, "AI Analysis")
	assert.Contains(t, md, "1 embedded image in")
}

func TestRenderEmbeddedImages_Empty(t *testing.T) {
	assert.Empty(t, RenderEmbeddedImages(nil, nil, false))
}

func TestAppendSection_SkipsDuplicateHeading(t *testing.T) {
	section := "## Embedded Images\n\nbody"
	once := AppendSection("# Doc\n\ntext", section)
	twice := AppendSection(once, section)
	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, "## Embedded Images"))
}

// ---- dedup -----------------------------------------------------------------

func TestQuotedSpans_LatinAndCJK(t *testing.T) {
	spans := QuotedSpans(`The slide says "Welcome" and 「ようこそ」 with 【注意】 and “Quarterly”.`)
	assert.ElementsMatch(t, []string{"Welcome", "ようこそ", "注意", "Quarterly"}, spans)
}

func TestQuotedSpans_SkipsDescriptive(t *testing.T) {
	assert.Empty(t, QuotedSpans(`It is "the image of a cat" really.`))
}

func TestAnalysisWithoutOCR_DropsRestatedText(t *testing.T) {
	desc := `The banner is titled "Grand Opening". It shows a storefront with balloons and a crowd. The text reads Sale Today.`
	got := AnalysisWithoutOCR(desc, "Grand Opening\nSale Today")
	assert.Equal(t, "It shows a storefront with balloons and a crowd.", got)
}

func TestAnalysisWithoutOCR_FallsBackToFull(t *testing.T) {
	desc := `Labeled "Exit".`
	assert.Equal(t, desc, AnalysisWithoutOCR(desc, ""))
}

func TestAnalysisWithoutOCR_KeepsNumberedLists(t *testing.T) {
	desc := "1. A line chart of monthly users over a year.\n2. The trend rises steadily after March."
	got := AnalysisWithoutOCR(desc, "")
	assert.Contains(t, got, "1. A line chart")
	assert.Contains(t, got, "2. The trend")
}

// ---- documents -------------------------------------------------------------

func TestRenderStandaloneImage_NoAI(t *testing.T) {
	img := imageWith(1, extract.Location{Kind: extract.KindImage})
	md := RenderStandaloneImage(Standalone{FileName: "scan.png", Image: img, OCREngine: "tesseract"})
	assert.Contains(t, md, "# Image Analysis: scan.png")
	assert.Contains(t, md, "## Extracted Text")
	assert.Contains(t, md, "No text detected")
	assert.NotContains(t, md, "## AI Analysis")
	assert.Contains(t, md, "data:image/png;base64,")
}

func TestRenderStandaloneImage_WithAIAndLines(t *testing.T) {
	img := imageWith(1, extract.Location{Kind: extract.KindImage},
		ocr.TextLine{Text: "INVOICE", Confidence: 0.95},
		ocr.TextLine{Text: "smear", Confidence: 0.1})
	md := RenderStandaloneImage(Standalone{FileName: "inv.jpg", Image: img, AIEnabled: true, Analysis: "A scanned invoice on white paper.", AIModel: "gpt-4o-mini"})
	assert.Contains(t, md, "- INVOICE\n")
	assert.Contains(t, md, "- smear "+ocr.UnverifiedMarker)
	assert.Contains(t, md, "## AI Analysis")
	assert.Contains(t, md, "AI model: gpt-4o-mini")
}

func TestRenderAIDocument(t *testing.T) {
	md := RenderAIDocument(AIDocument{
		DocType:    "pptx",
		Model:      "mock",
		Base:       "## Slide one\n\nHello",
		Images:     "## Embedded Images\n\n*Found 0*",
		Analysis:   "Summary here.",
		ImageCount: 0,
	})
	require.True(t, strings.HasPrefix(md, "# AI Enhanced Document"))
	assert.Contains(t, md, "**Document Type:** PPTX")
	outline := Outline(md)
	var titles []string
	for _, h := range outline {
		titles = append(titles, h.Text)
	}
	assert.Equal(t, []string{"AI Enhanced Document", "Slide one", "Embedded Images", "AI Document Analysis"}, titles)
}

func TestOutline(t *testing.T) {
	out := Outline("# Title\n\ntext\n\nSub\n---\n\n### *Deep* `code`\n")
	require.Len(t, out, 3)
	assert.Equal(t, Heading{Level: 1, Text: "Title"}, out[0])
	assert.Equal(t, Heading{Level: 2, Text: "Sub"}, out[1])
	assert.Equal(t, "Deep code", out[2].Text)
	assert.True(t, HasHeading("## embedded images", EmbeddedImagesHeading))
}
