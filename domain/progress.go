package domain

import "time"

// Stage labels a fixed pipeline checkpoint.
type Stage string

const (
	StageValidate  Stage = "validate"
	StagePrepare   Stage = "prepare"
	StageParse     Stage = "parse"
	StageLegacy    Stage = "legacy"
	StageOCR       Stage = "ocr"
	StageAI        Stage = "ai"
	StageSave      Stage = "save"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
	StageCancelled Stage = "cancelled"
)

// checkpoints maps each stage to its fixed percentage.
var checkpoints = map[Stage]int{
	StageValidate:  10,
	StagePrepare:   20,
	StageParse:     30,
	StageLegacy:    60,
	StageOCR:       70,
	StageAI:        80,
	StageSave:      90,
	StageCompleted: 100,
	StageFailed:    100,
	StageCancelled: 100,
}

// Percent returns the checkpoint percentage of s, or 0 for unknown stages.
func (s Stage) Percent() int {
	return checkpoints[s]
}

// ProgressEvent is one checkpoint notification for a conversion.
type ProgressEvent struct {
	ConversionID string    `json:"conversion_id"`
	Percent      int       `json:"percent"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status"`
	FileName     string    `json:"file_name"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// ProgressSink receives checkpoint notifications. Implementations must not
// block for long; the pipeline calls Report inline.
type ProgressSink interface {
	Report(stage Stage, message string)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(stage Stage, message string)

// Report implements ProgressSink.
func (f ProgressFunc) Report(stage Stage, message string) { f(stage, message) }

// NopProgress discards all notifications.
var NopProgress ProgressSink = ProgressFunc(func(Stage, string) {})
