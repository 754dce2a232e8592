// Package ocr turns raster images into tiered, script-normalized text lines.
//
// The pipeline is composable: optional preprocessing, recognition by an
// Engine, script normalization, then confidence tiering. Detected text is
// never dropped; low-confidence lines carry UnverifiedMarker instead.
package ocr

import "strings"

// Tier buckets a recognition confidence.
type Tier int

const (
	TierUnverified Tier = iota
	TierLow
	TierMedium
	TierHigh
)

// Confidence thresholds. A line must score strictly above a threshold to
// reach that tier.
const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4
	LowThreshold    = 0.2
)

// UnverifiedMarker is appended to lines at or below LowThreshold.
const UnverifiedMarker = "[unverified]"

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unverified"
	}
}

// TierFor classifies a confidence in [0,1].
func TierFor(confidence float64) Tier {
	switch {
	case confidence > HighThreshold:
		return TierHigh
	case confidence > MediumThreshold:
		return TierMedium
	case confidence > LowThreshold:
		return TierLow
	default:
		return TierUnverified
	}
}

// TextLine is one recognized line.
type TextLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Tier returns the line's confidence tier.
func (l TextLine) Tier() Tier { return TierFor(l.Confidence) }

// Render returns the line text, marked when unverified.
func (l TextLine) Render() string {
	if l.Tier() == TierUnverified {
		return l.Text + " " + UnverifiedMarker
	}
	return l.Text
}

// JoinLines renders lines one per row, skipping blank text.
func JoinLines(lines []TextLine) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		out = append(out, l.Render())
	}
	return strings.Join(out, "\n")
}

// StripMarkers removes tier markers for display.
func StripMarkers(text string) string {
	text = strings.ReplaceAll(text, " "+UnverifiedMarker, "")
	return strings.ReplaceAll(text, UnverifiedMarker, "")
}
