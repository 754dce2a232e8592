package legacy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// OfficeTool converts a document to another format out of process.
type OfficeTool interface {
	Convert(ctx context.Context, src, targetExt, outDir string, timeout time.Duration) (string, error)
	Available() bool
	Name() string
}

// lookPath is swapped in tests to simulate a missing suite.
var lookPath = exec.LookPath

// candidates are probed in order when no binary is configured.
var candidates = []string{"soffice", "libreoffice"}

// ExecOfficeTool drives LibreOffice in headless mode.
type ExecOfficeTool struct {
	Binary string
}

// NewExecOfficeTool returns a tool for binary, or for the first suite found
// on PATH when binary is empty.
func NewExecOfficeTool(binary string) *ExecOfficeTool {
	return &ExecOfficeTool{Binary: binary}
}

func (t *ExecOfficeTool) resolve() (string, error) {
	if t.Binary != "" {
		return lookPath(t.Binary)
	}
	for _, c := range candidates {
		if p, err := lookPath(c); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no office suite on PATH")
}

// Name implements OfficeTool.
func (t *ExecOfficeTool) Name() string {
	if t.Binary != "" {
		return filepath.Base(t.Binary)
	}
	return "soffice"
}

// Available implements OfficeTool.
func (t *ExecOfficeTool) Available() bool {
	_, err := t.resolve()
	return err == nil
}

// Convert implements OfficeTool. The output lands in outDir named after src.
func (t *ExecOfficeTool) Convert(ctx context.Context, src, targetExt, outDir string, timeout time.Duration) (string, error) {
	bin, err := t.resolve()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--headless", "--convert-to", targetExt, "--outdir", outDir, src)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out after %s", timeout)
		}
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(outDir, base+"."+targetExt)
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("expected output %s not produced", filepath.Base(out))
	}
	return out, nil
}
