//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	newGosseract = func(languages string) Engine {
		return &Gosseract{Languages: languages}
	}
}

// Gosseract recognizes text in-process through libtesseract.
type Gosseract struct {
	Languages string
}

// Name implements Engine.
func (g *Gosseract) Name() string { return "gosseract" }

// Available implements Engine.
func (g *Gosseract) Available() bool { return true }

// Recognize implements Engine. A client is created per call because
// gosseract clients are not safe for concurrent use.
func (g *Gosseract) Recognize(ctx context.Context, imagePath string) ([]TextLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if g.Languages != "" {
		if err := client.SetLanguage(strings.Split(g.Languages, "+")...); err != nil {
			return nil, fmt.Errorf("gosseract language: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("gosseract image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("gosseract recognize: %w", err)
	}

	lines := make([]TextLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{Text: text, Confidence: b.Confidence / 100})
	}
	return lines, nil
}
