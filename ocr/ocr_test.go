package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

// ---- tiering ---------------------------------------------------------------

func TestTierFor(t *testing.T) {
	cases := []struct {
		conf float64
		want Tier
	}{
		{0.95, TierHigh},
		{0.75, TierHigh},
		{0.7, TierMedium},
		{0.5, TierMedium},
		{0.4, TierLow},
		{0.3, TierLow},
		{0.2, TierUnverified},
		{0.1, TierUnverified},
		{0, TierUnverified},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierFor(c.conf), "confidence %v", c.conf)
	}
}

func TestRender_MarksOnlyUnverified(t *testing.T) {
	assert.Equal(t, "clear", TextLine{Text: "clear", Confidence: 0.75}.Render())
	assert.Equal(t, "faint", TextLine{Text: "faint", Confidence: 0.3}.Render())
	assert.Equal(t, "noise "+UnverifiedMarker, TextLine{Text: "noise", Confidence: 0.1}.Render())
}

func TestJoinLines_NeverDropsText(t *testing.T) {
	text := JoinLines([]TextLine{
		{Text: "high", Confidence: 0.75},
		{Text: "low", Confidence: 0.3},
		{Text: "junk", Confidence: 0.1},
		{Text: "  ", Confidence: 0.9},
	})
	assert.Equal(t, "high\nlow\njunk "+UnverifiedMarker, text)
	assert.Equal(t, "high\nlow\njunk", StripMarkers(text))
}

// ---- normalization ---------------------------------------------------------

func TestNormalizeScript_NFKC(t *testing.T) {
	// Half-width katakana and full-width latin fold to canonical forms.
	assert.Equal(t, "カタカナ ABC", NormalizeScript("ｶﾀｶﾅ　ＡＢＣ"))
}

func TestNormalizeScript_KatakanaContextGuard(t *testing.T) {
	assert.Equal(t, "アカイ", NormalizeScript("ア力イ"))
	assert.Equal(t, "メタル", NormalizeScript("メ夕ル"))
	// Kanji between kanji stays untouched.
	assert.Equal(t, "能力者", NormalizeScript("能力者"))
	// Leading position has no left neighbour.
	assert.Equal(t, "力ア", NormalizeScript("力ア"))
}

func TestNormalizeScript_Substitutions(t *testing.T) {
	assert.Equal(t, "コーヒー・ティー", NormalizeScript("コ―ヒ–・ティ―"))
}

func TestNormalizeScript_CJKSpacing(t *testing.T) {
	assert.Equal(t, "日本語の文章です。次の文", NormalizeScript("日本語 の 文章 です 。 次の 文"))
	assert.Equal(t, "hello world", NormalizeScript("  hello \t world  "))
	assert.Equal(t, "漢字 abc", NormalizeScript("漢字 abc"))
}

// ---- TSV parsing -----------------------------------------------------------

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t0\t0\t100\t10\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tHello\n" +
	"5\t1\t1\t1\t1\t2\t12\t0\t10\t10\t80\tWorld\n" +
	"5\t1\t1\t1\t2\t1\t0\t12\t10\t10\t10\tblur\n" +
	"5\t1\t1\t1\t2\t2\t0\t12\t10\t10\t-1\t \n"

func TestParseTSV_GroupsWordsIntoLines(t *testing.T) {
	lines, err := ParseTSV([]byte(sampleTSV))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Hello World", lines[0].Text)
	assert.InDelta(t, 0.85, lines[0].Confidence, 1e-9)
	assert.Equal(t, "blur", lines[1].Text)
	assert.Equal(t, TierUnverified, lines[1].Tier())
}

func TestParseTSV_Empty(t *testing.T) {
	lines, err := ParseTSV(nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

// ---- engines ---------------------------------------------------------------

func withNoTesseract(t *testing.T) {
	t.Helper()
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	t.Cleanup(func() { lookPath = orig })
}

func TestTesseract_Unavailable(t *testing.T) {
	withNoTesseract(t)
	eng := &Tesseract{}
	assert.False(t, eng.Available())
	_, err := eng.Recognize(context.Background(), "x.png")
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestNewEngine_Selection(t *testing.T) {
	log := zerolog.Nop()
	assert.Equal(t, "none", NewEngine(config.OCRConfig{Engine: "none"}, log).Name())
	assert.Equal(t, "tesseract", NewEngine(config.OCRConfig{Engine: "tesseract"}, log).Name())
}

// ---- preprocessing ---------------------------------------------------------

func TestPreprocess_UpscalesSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		for y := 0; y < 100; y++ {
			img.Set(x, y, color.White)
		}
	}
	out := Preprocess(img)
	b := out.Bounds()
	assert.Equal(t, 2000, b.Dx())
	assert.Equal(t, 1000, b.Dy())
}

func TestPreprocess_KeepsLargeImages(t *testing.T) {
	out := upscale(image.NewGray(image.Rect(0, 0, 1200, 1000)), minDimension)
	assert.Equal(t, 1200, out.Bounds().Dx())
}

func TestAdaptiveThreshold_Binarizes(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range g.Pix {
		g.Pix[i] = 200
	}
	for x := 5; x < 15; x++ {
		g.SetGray(x, 10, color.Gray{Y: 20})
	}
	out := adaptiveThreshold(g, thresholdBlock, thresholdC)
	for _, v := range out.Pix {
		assert.True(t, v == 0 || v == 255)
	}
	assert.Equal(t, uint8(0), out.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(255), out.GrayAt(10, 2).Y)
}

// ---- pipeline --------------------------------------------------------------

type stubEngine struct {
	lines []TextLine
	err   error
	seen  string
}

func (s *stubEngine) Name() string    { return "stub" }
func (s *stubEngine) Available() bool { return true }
func (s *stubEngine) Recognize(_ context.Context, path string) ([]TextLine, error) {
	s.seen = path
	return s.lines, s.err
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
	return path
}

func TestPipeline_NormalizesAndTiers(t *testing.T) {
	eng := &stubEngine{lines: []TextLine{
		{Text: "ア力イ", Confidence: 0.9},
		{Text: "   ", Confidence: 0.9},
		{Text: "smudge", Confidence: 0.05},
	}}
	p := NewPipeline(eng, false, zerolog.Nop())
	res, err := p.Run(context.Background(), "unused.png")
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "アカイ\nsmudge "+UnverifiedMarker, res.Text())
}

func TestPipeline_PreprocessedFileIsRemoved(t *testing.T) {
	src := writePNG(t, 10, 10)
	eng := &stubEngine{}
	p := NewPipeline(eng, true, zerolog.Nop())
	_, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	assert.NotEqual(t, src, eng.seen)
	assert.True(t, strings.HasSuffix(eng.seen, ".png"))
	_, statErr := os.Stat(eng.seen)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_PreprocessFailureFallsBack(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	eng := &stubEngine{}
	_, err := NewPipeline(eng, true, zerolog.Nop()).Run(context.Background(), bad)
	require.NoError(t, err)
	assert.Equal(t, bad, eng.seen)
}

func TestPipeline_EngineErrorPropagates(t *testing.T) {
	eng := &stubEngine{err: errors.New("boom")}
	_, err := NewPipeline(eng, false, zerolog.Nop()).Run(context.Background(), "x.png")
	assert.Error(t, err)
}
