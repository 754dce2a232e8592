package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/converter"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/legacy"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/llm"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/logging"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

// Converter is the base and specialized conversion capability.
type Converter interface {
	converter.BaseConverter
	Validate(path string) error
	ConvertSpecialized(ctx context.Context, path string) (string, error)
	ConvertURL(ctx context.Context, url string) (string, error)
}

// LegacyConverter turns an old binary office file into a modern container.
type LegacyConverter interface {
	Convert(ctx context.Context, path string) (*legacy.Result, error)
}

// ImageExtractor pulls images out of documents.
type ImageExtractor interface {
	Supports(ext string) bool
	Extract(ctx context.Context, path string) (*extract.Set, error)
}

// Recognizer runs OCR on one image file.
type Recognizer interface {
	Run(ctx context.Context, imagePath string) (ocr.Result, error)
	Available() bool
	EngineName() string
}

// Sink stores finished markdown and returns where it went.
type Sink interface {
	Save(ctx context.Context, name, markdown string) (string, error)
}

// Token reports whether the caller asked to stop.
type Token interface {
	Cancelled() bool
}

type noToken struct{}

func (noToken) Cancelled() bool { return false }

// Deps are the collaborators of a Dispatcher. Sink may be nil, in which case
// nothing is written.
type Deps struct {
	Converter Converter
	Legacy    LegacyConverter
	Extractor ImageExtractor
	OCR       Recognizer
	LLM       llm.Client
	Sink      Sink
	Log       zerolog.Logger
}

// Dispatcher runs conversions. It holds no per-conversion state and is safe
// for concurrent use.
type Dispatcher struct {
	conv      Converter
	legacy    LegacyConverter
	extractor ImageExtractor
	ocr       Recognizer
	llm       llm.Client
	sink      Sink
	log       zerolog.Logger
}

// New builds a Dispatcher. A nil LLM client selects llm.Mock.
func New(d Deps) *Dispatcher {
	client := d.LLM
	if client == nil {
		client = llm.Mock{}
	}
	return &Dispatcher{
		conv:      d.Converter,
		legacy:    d.Legacy,
		extractor: d.Extractor,
		ocr:       d.OCR,
		llm:       client,
		sink:      d.Sink,
		log:       d.Log.With().Str("component", "dispatch").Logger(),
	}
}

// run carries the state of one conversion.
type run struct {
	req      domain.ConversionRequest
	ext      string
	progress domain.ProgressSink
	token    Token
	log      zerolog.Logger
	last     int
}

// checkpoint is a stage boundary: it honours cancellation, then reports
// stage unless a later one was already reported.
func (r *run) checkpoint(stage domain.Stage, msg string) error {
	if r.token.Cancelled() {
		return domain.ErrCancelled
	}
	if p := stage.Percent(); p > r.last {
		r.last = p
		r.progress.Report(stage, msg)
	}
	return nil
}

// Run converts req and returns its single terminal result. The markdown is
// handed to the sink only when everything else succeeded.
func (d *Dispatcher) Run(ctx context.Context, id string, req domain.ConversionRequest, progress domain.ProgressSink, token Token) *domain.ConversionResult {
	if progress == nil {
		progress = domain.NopProgress
	}
	if token == nil {
		token = noToken{}
	}
	if req.Ext == "" {
		req.Ext = domain.DetectExt(req.Input)
	}
	r := &run{
		req:      req,
		ext:      req.Ext,
		progress: progress,
		token:    token,
		log:      logging.ForConversion(d.log, id),
	}

	res := domain.NewResult(id, req.Input)
	res.Start()

	md, out, err := d.execute(ctx, r)
	status := domain.ClassifyError(err)
	if status == domain.StatusCompleted {
		res.OutputFile = out
	} else {
		md = ""
	}
	res.Finish(status, md, err)

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Warn().Err(err)
	}
	ev.Str("status", string(res.Status)).Dur("elapsed", res.Elapsed).Msg("conversion finished")
	return res
}

func (d *Dispatcher) execute(ctx context.Context, r *run) (string, string, error) {
	if err := r.checkpoint(domain.StageValidate, "validating input"); err != nil {
		return "", "", err
	}
	if err := d.validate(r.req); err != nil {
		return "", "", err
	}

	strategy := Route(r.req)
	r.log.Debug().Str("strategy", string(strategy)).Str("ext", r.ext).Msg("route selected")
	if err := r.checkpoint(domain.StagePrepare, "strategy "+string(strategy)); err != nil {
		return "", "", err
	}

	var (
		md  string
		err error
	)
	switch strategy {
	case StrategyVideoURL:
		md, err = converter.RenderVideo(r.req.Input)
	case StrategyImage:
		md, err = d.convertImage(ctx, r)
	case StrategyAI:
		md, err = d.convertAI(ctx, r)
	case StrategySpecialized:
		md, err = d.convertSpecialized(ctx, r)
	case StrategyURL:
		md, err = d.convertURL(ctx, r)
	default:
		md, err = d.convertBase(ctx, r)
	}
	if err != nil {
		return "", "", err
	}

	if r.req.Flags.UseAPIEnhancement && strategy != StrategyAI {
		if md, err = d.appendDocumentAnalysis(ctx, r, md); err != nil {
			return "", "", err
		}
	}

	if err := r.checkpoint(domain.StageSave, "saving markdown"); err != nil {
		return "", "", err
	}
	if d.sink == nil {
		return md, "", nil
	}
	out, err := d.sink.Save(ctx, OutputName(r.req), md)
	if err != nil {
		return "", "", &domain.ConversionError{Op: "save", Err: err}
	}
	return md, out, nil
}

func (d *Dispatcher) validate(req domain.ConversionRequest) error {
	if strings.TrimSpace(req.Input) == "" {
		return domain.NewValidationError(domain.ErrFileNotFound, req.Input, "empty input")
	}
	if req.IsURL() {
		return nil
	}
	ext := req.Ext
	if !converter.Accepts(ext) && !extract.ImageExts[ext] {
		return domain.NewValidationError(domain.ErrUnsupportedFormat, req.Input, fmt.Sprintf("extension %q", ext))
	}
	return d.conv.Validate(req.Input)
}

// OutputName is the file name the markdown of req is saved under.
func OutputName(req domain.ConversionRequest) string {
	name := req.FileName()
	if !req.IsURL() {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "document"
	}
	return name + ".md"
}

// baseMarkdown runs the base converter, retrying once through the legacy
// converter when the input is an old binary office format. work is the
// file later stages should read; cleanup removes any legacy artifact and
// must run after they finish.
func (d *Dispatcher) baseMarkdown(ctx context.Context, r *run) (md, work string, cleanup func(), err error) {
	cleanup = func() {}
	if err = r.checkpoint(domain.StageParse, "converting "+r.req.FileName()); err != nil {
		return "", "", cleanup, err
	}

	md, err = d.conv.Convert(ctx, r.req.Input)
	if err == nil {
		return md, r.req.Input, cleanup, nil
	}
	if !errors.Is(err, converter.ErrNoConverterAttempted) || !legacy.CanConvert(r.ext) || d.legacy == nil {
		return "", "", cleanup, wrapConversion(err)
	}

	r.log.Info().Str("ext", r.ext).Msg("no converter for legacy format, converting")
	if err = r.checkpoint(domain.StageLegacy, "converting legacy "+r.ext); err != nil {
		return "", "", cleanup, err
	}
	res, err := d.legacy.Convert(ctx, r.req.Input)
	if err != nil {
		return "", "", cleanup, err
	}
	cleanup = func() {
		if cerr := res.Cleanup(); cerr != nil {
			r.log.Warn().Err(cerr).Msg("legacy cleanup failed")
		}
	}
	r.log.Debug().Str("method", string(res.Method)).Str("path", res.Path).Msg("legacy conversion done")

	md, err = d.conv.Convert(ctx, res.Path)
	if err != nil {
		cleanup()
		return "", "", func() {}, wrapConversion(err)
	}
	return md, res.Path, cleanup, nil
}

func wrapConversion(err error) error {
	var ce *domain.ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return &domain.ConversionError{Op: "convert", Err: err}
}
