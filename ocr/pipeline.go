package ocr

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Result is the outcome of running the pipeline on one image.
type Result struct {
	Lines []TextLine
}

// Text renders all lines with tier markers retained.
func (r Result) Text() string { return JoinLines(r.Lines) }

// Empty reports whether nothing was recognized.
func (r Result) Empty() bool { return r.Text() == "" }

// Pipeline chains preprocessing, recognition, normalization and tiering.
type Pipeline struct {
	engine     Engine
	preprocess bool
	log        zerolog.Logger
}

// NewPipeline returns a pipeline over engine.
func NewPipeline(engine Engine, preprocess bool, log zerolog.Logger) *Pipeline {
	return &Pipeline{engine: engine, preprocess: preprocess, log: log}
}

// Available reports whether the underlying engine can run.
func (p *Pipeline) Available() bool { return p.engine.Available() }

// EngineName names the underlying engine.
func (p *Pipeline) EngineName() string { return p.engine.Name() }

// Run recognizes imagePath. A preprocessing failure falls back to the
// original image; a recognition failure is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, imagePath string) (Result, error) {
	src := imagePath
	if p.preprocess {
		pre, err := PreprocessFile(imagePath, filepath.Dir(imagePath))
		if err != nil {
			p.log.Debug().Err(err).Str("image", filepath.Base(imagePath)).Msg("preprocessing skipped")
		} else {
			src = pre
			defer func() { _ = os.Remove(pre) }()
		}
	}

	raw, err := p.engine.Recognize(ctx, src)
	if err != nil {
		return Result{}, err
	}

	lines := make([]TextLine, 0, len(raw))
	for _, l := range raw {
		text := NormalizeScript(l.Text)
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{Text: text, Confidence: l.Confidence})
	}
	return Result{Lines: lines}, nil
}
