package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/progress"
)

// MCP tool parameter key constants, shared between schema definitions and
// argument extraction so a typo in one place is caught by the other.
const (
	argURI               = "uri"
	argUseAIMode         = "use_ai_mode"
	argUseAPIEnhancement = "use_api_enhancement"
	argConversionID      = "conversion_id"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// stdout carries the protocol.
	app, err := loadApp(cmd.Context(), cfgFile, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	}()

	s := server.NewMCPServer(serverName, serverVersion)
	registerTools(s, &tools{svc: app.Coordinator, catalog: app.Converter})
	app.Log.Info().Str("version", serverVersion).Msg("mcp server listening on stdio")

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// toolService is what the tools need from the coordinator.
type toolService interface {
	Submit(ctx context.Context, req domain.ConversionRequest) (*progress.Task, error)
	Cancel(id string) bool
	Active() []string
}

type toolCatalog interface {
	GetConversionInfo(ctx context.Context) string
}

type tools struct {
	svc     toolService
	catalog toolCatalog
}

// registerTools binds MCP tool definitions to their handlers.
func registerTools(s *server.MCPServer, t *tools) {
	s.AddTool(
		mcp.NewTool("convert_to_markdown",
			mcp.WithDescription("Convert a file or URL to Markdown. "+
				"Pass an absolute file path (e.g. /path/to/doc.pdf) or an http:// / https:// URL. "+
				"Supported formats: DOCX, PPTX, XLSX, PDF, legacy DOC/PPT/XLS, HTML, CSV, JSON, XML, TXT, MD, "+
				"ZIP archives, audio metadata, PNG/JPG/GIF/BMP/TIFF/WEBP images (OCR) and YouTube links. "+
				"Embedded images get an OCR section; AI mode adds image descriptions and a document analysis."),
			mcp.WithString(argURI,
				mcp.Required(),
				mcp.Description("Absolute file path or http/https URL to convert"),
			),
			mcp.WithBoolean(argUseAIMode,
				mcp.Description("Describe images and analyze the document with the configured vision model"),
			),
			mcp.WithBoolean(argUseAPIEnhancement,
				mcp.Description("Append an AI document analysis to a regular conversion"),
			),
		),
		t.convert,
	)

	s.AddTool(
		mcp.NewTool("get_conversion_info",
			mcp.WithDescription("Return supported file formats, conversion approach, and active configuration."),
		),
		t.info,
	)

	s.AddTool(
		mcp.NewTool("list_conversions",
			mcp.WithDescription("List the ids of conversions that are still running."),
		),
		t.list,
	)

	s.AddTool(
		mcp.NewTool("cancel_conversion",
			mcp.WithDescription("Cancel a running conversion. It stops at its next stage boundary."),
			mcp.WithString(argConversionID,
				mcp.Required(),
				mcp.Description("Id reported by list_conversions"),
			),
		),
		t.cancel,
	)
}

func (t *tools) convert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, ok := req.Params.Arguments[argURI].(string)
	if !ok || strings.TrimSpace(input) == "" {
		return mcp.NewToolResultError(argURI + " is required"), nil
	}
	flags := domain.Flags{
		UseAIMode:         boolArg(req, argUseAIMode),
		UseAPIEnhancement: boolArg(req, argUseAPIEnhancement),
	}

	task, err := t.svc.Submit(ctx, domain.NewRequest(strings.TrimSpace(input), flags))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := task.Wait(ctx)
	if err != nil {
		t.svc.Cancel(task.ID)
		return mcp.NewToolResultError("conversion " + task.ID + " abandoned: " + err.Error()), nil
	}

	switch res.Status {
	case domain.StatusCompleted:
		return mcp.NewToolResultText(res.Markdown), nil
	case domain.StatusCancelled:
		return mcp.NewToolResultError("conversion " + res.ID + " was cancelled"), nil
	default:
		return mcp.NewToolResultError(res.Error), nil
	}
}

func (t *tools) info(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.catalog.GetConversionInfo(ctx)), nil
}

func (t *tools) list(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := t.svc.Active()
	if len(ids) == 0 {
		return mcp.NewToolResultText("No conversions running."), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (t *tools) cancel(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.Params.Arguments[argConversionID].(string)
	if id == "" {
		return mcp.NewToolResultError(argConversionID + " is required"), nil
	}
	if !t.svc.Cancel(id) {
		return mcp.NewToolResultText("No running conversion " + id + "; nothing to cancel."), nil
	}
	return mcp.NewToolResultText("Cancellation requested for " + id + "."), nil
}

func boolArg(req mcp.CallToolRequest, key string) bool {
	v, _ := req.Params.Arguments[key].(bool)
	return v
}
