package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.TempDir = t.TempDir()
	cfg.LLM.APIKey = ""
	cfg.OCR.Engine = "none"
	app, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	})
	return app
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestTools_ConvertWritesOutput(t *testing.T) {
	app := testApp(t)
	tl := &tools{svc: app.Coordinator, catalog: app.Converter}
	in := filepath.Join(t.TempDir(), "notes.html")
	require.NoError(t, os.WriteFile(in, []byte("<h1>Minutes</h1><p>Agreed.</p>"), 0o600))

	res, err := tl.convert(context.Background(), callTool(map[string]interface{}{argURI: in}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "Minutes")

	_, err = os.Stat(filepath.Join(app.Config.OutputDir, "notes.md"))
	assert.NoError(t, err)
}

func TestTools_ConvertErrors(t *testing.T) {
	app := testApp(t)
	tl := &tools{svc: app.Coordinator, catalog: app.Converter}

	res, err := tl.convert(context.Background(), callTool(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	exe := filepath.Join(t.TempDir(), "setup.exe")
	require.NoError(t, os.WriteFile(exe, []byte("MZ"), 0o600))
	res, err = tl.convert(context.Background(), callTool(map[string]interface{}{argURI: exe, argUseAIMode: true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "unsupported format")
}

func TestTools_InfoListCancel(t *testing.T) {
	app := testApp(t)
	tl := &tools{svc: app.Coordinator, catalog: app.Converter}

	res, err := tl.info(context.Background(), callTool(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "# Markdown Conversion Info")

	res, err = tl.list(context.Background(), callTool(nil))
	require.NoError(t, err)
	assert.Equal(t, "No conversions running.", resultText(t, res))

	res, err = tl.cancel(context.Background(), callTool(map[string]interface{}{argConversionID: "gone"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "nothing to cancel")

	res, err = tl.cancel(context.Background(), callTool(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRegisterTools(t *testing.T) {
	app := testApp(t)
	s := server.NewMCPServer(serverName, serverVersion)
	assert.NotPanics(t, func() {
		registerTools(s, &tools{svc: app.Coordinator, catalog: app.Converter})
	})
}

func TestBoolArg(t *testing.T) {
	req := callTool(map[string]interface{}{argUseAIMode: true, argUseAPIEnhancement: "yes"})
	assert.True(t, boolArg(req, argUseAIMode))
	assert.False(t, boolArg(req, argUseAPIEnhancement))
	assert.False(t, boolArg(req, "missing"))
}

func TestFollow_EndsWithResult(t *testing.T) {
	app := testApp(t)
	in := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(in, []byte("hello"), 0o600))

	task, err := app.Coordinator.Submit(context.Background(), domain.NewRequest(in, domain.Flags{}))
	require.NoError(t, err)
	var out bytes.Buffer
	res := follow(context.Background(), task, app.Coordinator, &out, true)
	assert.Equal(t, domain.StatusCompleted, res.Status, res.Error)
	assert.NotEmpty(t, out.String())
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, &domain.ConversionResult{Status: domain.StatusCompleted, InputFile: "a.docx", OutputFile: "a.md"})
	printResult(&out, &domain.ConversionResult{Status: domain.StatusCancelled, InputFile: "b.docx"})
	printResult(&out, &domain.ConversionResult{Status: domain.StatusFailed, InputFile: "c.doc", Error: "no office suite"})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "a.docx -> a.md")
	assert.Contains(t, lines[1], "cancelled")
	assert.Contains(t, lines[2], "no office suite")
}

func TestPrintInfo(t *testing.T) {
	app := testApp(t)
	var out bytes.Buffer
	printInfo(context.Background(), &out, app)
	assert.Contains(t, out.String(), "LLM model mock")
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "http", "convert", "info"} {
		assert.True(t, names[want], want)
	}
}
