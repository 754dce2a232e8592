package dispatch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/converter"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/merge"
)

// enhancedExts get an Embedded Images section after base conversion.
var enhancedExts = map[string]bool{"docx": true, "pptx": true, "xlsx": true, "pdf": true}

// analyzedExts get a whole-document analysis on the AI path.
var analyzedExts = map[string]bool{"docx": true, "pptx": true, "pdf": true}

func (d *Dispatcher) convertBase(ctx context.Context, r *run) (string, error) {
	md, work, cleanup, err := d.baseMarkdown(ctx, r)
	defer cleanup()
	if err != nil {
		return "", err
	}
	if !enhancedExts[extOf(work)] {
		return md, nil
	}
	section, _, err := d.imagesSection(ctx, r, work, false)
	if err != nil {
		return "", err
	}
	return merge.AppendSection(md, section), nil
}

func (d *Dispatcher) convertSpecialized(ctx context.Context, r *run) (string, error) {
	if err := r.checkpoint(domain.StageParse, "converting "+r.req.FileName()); err != nil {
		return "", err
	}
	md, err := d.conv.ConvertSpecialized(ctx, r.req.Input)
	if err != nil {
		return "", wrapConversion(err)
	}
	return md, nil
}

func (d *Dispatcher) convertURL(ctx context.Context, r *run) (string, error) {
	if err := r.checkpoint(domain.StageParse, "fetching "+r.req.FileName()); err != nil {
		return "", err
	}
	md, err := d.conv.ConvertURL(ctx, r.req.Input)
	if err != nil {
		return "", wrapConversion(err)
	}
	return md, nil
}

// convertImage renders a standalone image: OCR always, an AI description
// only in AI mode.
func (d *Dispatcher) convertImage(ctx context.Context, r *run) (string, error) {
	if err := r.checkpoint(domain.StageParse, "reading image"); err != nil {
		return "", err
	}
	set, err := d.extractor.Extract(ctx, r.req.Input)
	if err != nil {
		return "", wrapConversion(err)
	}
	defer d.release(r, set)
	if set.Len() == 0 {
		return "", &domain.ConversionError{Op: "read image", Err: domain.ErrUnsupportedFormat}
	}
	img := set.Images[0]

	if err := r.checkpoint(domain.StageOCR, "recognizing text"); err != nil {
		return "", err
	}
	d.recognize(ctx, r, img)

	var analysis string
	if r.req.Flags.UseAIMode {
		if err := r.checkpoint(domain.StageAI, "describing image"); err != nil {
			return "", err
		}
		analysis = d.describe(ctx, r, img, "standalone image "+r.req.FileName())
	}

	return merge.RenderStandaloneImage(merge.Standalone{
		FileName:  r.req.FileName(),
		Image:     img,
		OCREngine: d.ocrEngine(),
		OCRErr:    img.OCRErr,
		AIEnabled: r.req.Flags.UseAIMode,
		Analysis:  analysis,
		AIModel:   d.llm.Model(),
		Dedup:     d.llm.Available(),
	}), nil
}

// convertAI is the AI-integrated path: base text, images with OCR and
// descriptions, and a document analysis.
func (d *Dispatcher) convertAI(ctx context.Context, r *run) (string, error) {
	var (
		md      string
		work    string
		cleanup = func() {}
		err     error
	)
	switch {
	case r.req.IsURL():
		md, err = d.convertURL(ctx, r)
	case converter.IsSpecialized(r.ext):
		md, err = d.convertSpecialized(ctx, r)
	default:
		md, work, cleanup, err = d.baseMarkdown(ctx, r)
	}
	defer cleanup()
	if err != nil {
		return "", err
	}

	docType := r.ext
	if work != "" {
		docType = extOf(work)
	}
	if docType == "" {
		docType = "html"
	}

	section, count := "", 0
	if work != "" {
		if section, count, err = d.imagesSection(ctx, r, work, true); err != nil {
			return "", err
		}
	}

	var analysis string
	if analyzedExts[docType] {
		if err := r.checkpoint(domain.StageAI, "analyzing document"); err != nil {
			return "", err
		}
		analysis = d.enhance(ctx, r, md, docType)
	}

	return merge.RenderAIDocument(merge.AIDocument{
		DocType:    docType,
		Model:      d.llm.Model(),
		Base:       md,
		Images:     section,
		Analysis:   analysis,
		ImageCount: count,
	}), nil
}

// imagesSection extracts the images of path, runs OCR on each and, with
// withAI, describes each. The returned section is empty when the format has
// no images or extraction fails; the base text stands on its own then.
func (d *Dispatcher) imagesSection(ctx context.Context, r *run, path string, withAI bool) (string, int, error) {
	if d.extractor == nil || !d.extractor.Supports(extOf(path)) {
		return "", 0, nil
	}
	if err := r.checkpoint(domain.StageOCR, "extracting images"); err != nil {
		return "", 0, err
	}
	set, err := d.extractor.Extract(ctx, path)
	if err != nil {
		r.log.Warn().Err(err).Msg("image extraction failed, keeping base text")
		return "", 0, nil
	}
	defer d.release(r, set)
	if set.Len() == 0 {
		return "", 0, nil
	}

	// Every consumer below finishes before the deferred release runs.
	var ocrGroup errgroup.Group
	for _, img := range set.Images {
		ocrGroup.Go(func() error {
			d.recognize(ctx, r, img)
			return nil
		})
	}
	_ = ocrGroup.Wait()

	var analyses map[int]string
	if withAI {
		if err := r.checkpoint(domain.StageAI, "describing images"); err != nil {
			return "", 0, err
		}
		analyses = make(map[int]string, set.Len())
		var (
			mu      sync.Mutex
			aiGroup errgroup.Group
		)
		for _, img := range set.Images {
			aiGroup.Go(func() error {
				desc := d.describe(ctx, r, img, img.Location.String())
				if desc == "" {
					return nil
				}
				mu.Lock()
				analyses[img.Index] = desc
				mu.Unlock()
				return nil
			})
		}
		_ = aiGroup.Wait()
	}

	return merge.RenderEmbeddedImages(set.Images, analyses, d.llm.Available()), set.Len(), nil
}

func (d *Dispatcher) ocrEngine() string {
	if d.ocr == nil {
		return "none"
	}
	return d.ocr.EngineName()
}

// recognize fills img.OCR. Failures are recorded on the image and logged.
func (d *Dispatcher) recognize(ctx context.Context, r *run, img *extract.Image) {
	if d.ocr == nil || !d.ocr.Available() {
		return
	}
	res, err := d.ocr.Run(ctx, img.Path())
	if err != nil {
		img.OCRErr = err
		r.log.Warn().Err(err).Int("image", img.Index).Msg("ocr failed")
		return
	}
	img.OCR = res
}

// describe returns the AI description of img, or "" on failure.
func (d *Dispatcher) describe(ctx context.Context, r *run, img *extract.Image, imageContext string) string {
	desc, err := d.llm.DescribeImage(ctx, img.Path(), imageContext)
	if err != nil {
		r.log.Warn().Err(err).Int("image", img.Index).Msg("image description failed")
		return ""
	}
	return desc
}

func (d *Dispatcher) enhance(ctx context.Context, r *run, md, docType string) string {
	analysis, err := d.llm.EnhanceDocument(ctx, md, docType)
	if err != nil {
		r.log.Warn().Err(err).Msg("document analysis failed")
		return ""
	}
	return analysis
}

// appendDocumentAnalysis adds an AI Document Analysis section to a finished
// conversion. A failed analysis leaves md unchanged.
func (d *Dispatcher) appendDocumentAnalysis(ctx context.Context, r *run, md string) (string, error) {
	if err := r.checkpoint(domain.StageAI, "analyzing document"); err != nil {
		return "", err
	}
	docType := r.ext
	if docType == "" {
		docType = "html"
	}
	return merge.AppendDocumentAnalysis(md, d.enhance(ctx, r, md, docType)), nil
}

func (d *Dispatcher) release(r *run, set *extract.Set) {
	if err := set.Release(); err != nil {
		r.log.Warn().Err(err).Msg("image cleanup failed")
	}
}

func extOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
