package ocr

// engine.go: recognition backends.
//
// The default backend shells out to the tesseract CLI and reads its TSV
// output so every line carries a confidence. The binary is probed at call
// time so the service degrades gracefully when tesseract is absent.

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

// ErrEngineUnavailable is returned when the recognition backend cannot run.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine recognizes text lines in an image file, in reading order.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) ([]TextLine, error)
	Available() bool
	Name() string
}

// lookPath is the exec.LookPath implementation used by Tesseract.
// Tests may replace it to simulate a missing binary.
var lookPath = exec.LookPath

// newGosseract is set by the gosseract build variant.
var newGosseract func(languages string) Engine

// NewEngine selects a backend by name: "tesseract" (default), "gosseract"
// (requires the gosseract build tag) or "none".
func NewEngine(cfg config.OCRConfig, log zerolog.Logger) Engine {
	switch strings.ToLower(cfg.Engine) {
	case "none", "off", "disabled":
		return NoopEngine{}
	case "gosseract":
		if newGosseract != nil {
			return newGosseract(cfg.Languages)
		}
		log.Warn().Msg("gosseract engine not compiled in; falling back to tesseract CLI")
	}
	return &Tesseract{Languages: cfg.Languages}
}

// ---- tesseract CLI ---------------------------------------------------------

// Tesseract runs the tesseract binary in TSV mode.
type Tesseract struct {
	Binary    string // defaults to "tesseract"
	Languages string // e.g. "eng+jpn"; empty uses the tesseract default
}

func (t *Tesseract) binary() string {
	if t.Binary != "" {
		return t.Binary
	}
	return "tesseract"
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Available reports whether the binary is on PATH.
func (t *Tesseract) Available() bool {
	_, err := lookPath(t.binary())
	return err == nil
}

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) ([]TextLine, error) {
	if !t.Available() {
		return nil, fmt.Errorf("%w: %s not on PATH", ErrEngineUnavailable, t.binary())
	}

	args := []string{imagePath, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	args = append(args, "tsv")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary(), args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseTSV(out)
}

type lineKey struct{ page, block, par, line int }

// ParseTSV groups tesseract word rows into lines. Line confidence is the
// mean word confidence scaled to [0,1].
func ParseTSV(data []byte) ([]TextLine, error) {
	type acc struct {
		words []string
		conf  float64
	}
	var order []lineKey
	lines := make(map[lineKey]*acc)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	first := true
	for sc.Scan() {
		row := sc.Text()
		if first {
			first = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		k := lineKey{atoi(cols[1]), atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		a, ok := lines[k]
		if !ok {
			a = &acc{}
			lines[k] = a
			order = append(order, k)
		}
		a.words = append(a.words, word)
		a.conf += conf
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tesseract tsv: %w", err)
	}

	out := make([]TextLine, 0, len(order))
	for _, k := range order {
		a := lines[k]
		out = append(out, TextLine{
			Text:       strings.Join(a.words, " "),
			Confidence: a.conf / float64(len(a.words)) / 100,
		})
	}
	return out, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// ---- noop ------------------------------------------------------------------

// NoopEngine recognizes nothing. It stands in when OCR is disabled.
type NoopEngine struct{}

// Name implements Engine.
func (NoopEngine) Name() string { return "none" }

// Available implements Engine.
func (NoopEngine) Available() bool { return false }

// Recognize implements Engine.
func (NoopEngine) Recognize(context.Context, string) ([]TextLine, error) {
	return nil, ErrEngineUnavailable
}
