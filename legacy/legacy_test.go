package legacy

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

type fakeTool struct {
	available bool
	err       error
	calls     int
	partial   bool
}

func (f *fakeTool) Name() string    { return "fake-office" }
func (f *fakeTool) Available() bool { return f.available }
func (f *fakeTool) Convert(_ context.Context, src, ext, outDir string, _ time.Duration) (string, error) {
	f.calls++
	if f.partial {
		_ = os.WriteFile(filepath.Join(outDir, "half."+ext), []byte("x"), 0o600)
	}
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(outDir, "converted."+ext)
	return out, os.WriteFile(out, []byte("ok"), 0o600)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func writePackage(t *testing.T, name, entry string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(entry)
	require.NoError(t, err)
	_, _ = w.Write([]byte("<x/>"))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestCanConvert(t *testing.T) {
	for _, ext := range []string{"doc", "ppt", "xls", "DOC"} {
		assert.True(t, CanConvert(ext), ext)
	}
	for _, ext := range []string{"docx", "pdf", ""} {
		assert.False(t, CanConvert(ext), ext)
	}
	assert.Equal(t, "pptx", ModernExt("ppt"))
}

func TestConvert_DisguisedPackageIsRenamed(t *testing.T) {
	src := writePackage(t, "report.doc", "word/document.xml")
	tool := &fakeTool{available: true}

	res, err := New(tool, 0, t.TempDir(), zerolog.Nop()).Convert(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, MethodRenamed, res.Method)
	assert.Equal(t, "report.docx", filepath.Base(res.Path))
	assert.Zero(t, tool.calls)

	require.NoError(t, res.Cleanup())
	assert.NoFileExists(t, res.Path)
}

func TestConvert_SniffUsesPackageRoot(t *testing.T) {
	src := writePackage(t, "numbers.xls", "xl/workbook.xml")
	res, err := New(nil, 0, t.TempDir(), zerolog.Nop()).Convert(context.Background(), src)
	require.NoError(t, err)
	defer func() { _ = res.Cleanup() }()
	assert.Equal(t, ".xlsx", filepath.Ext(res.Path))
}

func TestConvert_NoToolFailsWithRemediation(t *testing.T) {
	src := writeFile(t, "old.doc", []byte("\xD0\xCF\x11\xE0 not really ole"))
	root := t.TempDir()

	_, err := New(&fakeTool{available: false}, 0, root, zerolog.Nop()).Convert(context.Background(), src)
	require.Error(t, err)

	var toolErr *domain.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.GreaterOrEqual(t, len(toolErr.Remediation), 3)
	assert.Contains(t, err.Error(), "1) ")
	assert.Contains(t, err.Error(), "3) ")

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries, "failed conversion must not leave artifacts")
}

func TestConvert_ToolSuccess(t *testing.T) {
	src := writeFile(t, "deck.ppt", []byte("binary"))
	tool := &fakeTool{available: true}
	res, err := New(tool, time.Second, t.TempDir(), zerolog.Nop()).Convert(context.Background(), src)
	require.NoError(t, err)
	defer func() { _ = res.Cleanup() }()
	assert.Equal(t, MethodOffice, res.Method)
	assert.Equal(t, 1, tool.calls)
	assert.FileExists(t, res.Path)
}

func TestConvert_ToolFailureRemovesPartialOutput(t *testing.T) {
	src := writeFile(t, "deck.ppt", []byte("binary"))
	root := t.TempDir()
	tool := &fakeTool{available: true, err: errors.New("crashed"), partial: true}

	_, err := New(tool, time.Second, root, zerolog.Nop()).Convert(context.Background(), src)
	var toolErr *domain.ExternalToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Reason, "crashed")

	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestConvert_RejectsModernExt(t *testing.T) {
	_, err := New(nil, 0, t.TempDir(), zerolog.Nop()).Convert(context.Background(), "x.docx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestIsCompoundFile_Garbage(t *testing.T) {
	assert.False(t, IsCompoundFile(writeFile(t, "a.doc", []byte("plain text"))))
}

func TestExecOfficeTool_Unavailable(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("missing") }
	t.Cleanup(func() { lookPath = orig })

	tool := NewExecOfficeTool("")
	assert.False(t, tool.Available())
	_, err := tool.Convert(context.Background(), "a.doc", "docx", t.TempDir(), time.Second)
	assert.Error(t, err)
}
