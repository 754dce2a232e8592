package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/converter"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/dispatch"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/extract"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/legacy"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/llm"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/logging"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/progress"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/storage"
)

// App is the wired service graph shared by every command.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Converter   *converter.Converter
	Coordinator *progress.Coordinator
	LLM         llm.Client
	OCR         *ocr.Pipeline
}

// loadApp reads configuration and wires the services. Logs go to logOut;
// the MCP server needs stdout for the protocol.
func loadApp(ctx context.Context, cfgFile string, logOut io.Writer) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return newApp(ctx, cfg, logging.New(cfg.Log, logOut))
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	conv := converter.NewConverter(cfg, log)

	client, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	pipeline := ocr.NewPipeline(ocr.NewEngine(cfg.OCR, log), cfg.OCR.Preprocess, log)

	sink, err := storage.FromConfig(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	d := dispatch.New(dispatch.Deps{
		Converter: conv,
		Legacy:    legacy.New(legacy.NewExecOfficeTool(cfg.Office.Binary), cfg.Office.Timeout, cfg.TempDir, log),
		Extractor: extract.New(cfg.TempDir, cfg.OCR.PageDPI, log),
		OCR:       pipeline,
		LLM:       client,
		Sink:      sink,
		Log:       log,
	})

	log.Debug().
		Str("output_dir", cfg.OutputDir).
		Str("ocr_engine", pipeline.EngineName()).
		Bool("ocr_available", pipeline.Available()).
		Str("llm_model", client.Model()).
		Bool("llm_available", client.Available()).
		Msg("services wired")

	return &App{
		Config:      cfg,
		Log:         log,
		Converter:   conv,
		Coordinator: progress.NewCoordinator(d, nil, log),
		LLM:         client,
		OCR:         pipeline,
	}, nil
}

// Close stops running conversions.
func (a *App) Close(ctx context.Context) error {
	return a.Coordinator.Shutdown(ctx)
}
