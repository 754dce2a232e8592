// Package domain holds the value types shared by the conversion pipeline:
// requests, results, progress events and the error taxonomy.
package domain

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle state of a single conversion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Flags are the caller-selected mode switches of a conversion.
type Flags struct {
	UseAIMode         bool `json:"use_ai_mode"`
	UseAPIEnhancement bool `json:"use_api_enhancement"`
}

// ConversionRequest describes one unit of work.
type ConversionRequest struct {
	Input         string `json:"input"`
	Ext           string `json:"ext"`
	Flags         Flags  `json:"flags"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewRequest builds a request for input, deriving the extension.
func NewRequest(input string, flags Flags) ConversionRequest {
	return ConversionRequest{Input: input, Ext: DetectExt(input), Flags: flags}
}

// IsURL reports whether the input is an http(s) reference.
func (r ConversionRequest) IsURL() bool {
	return IsURL(r.Input)
}

// FileName is the base name used in progress events and output naming.
func (r ConversionRequest) FileName() string {
	if r.IsURL() {
		u, err := url.Parse(r.Input)
		if err == nil && u.Host != "" {
			return u.Host
		}
		return r.Input
	}
	return filepath.Base(r.Input)
}

// IsURL reports whether s is an http or https reference.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DetectExt returns the lower-case extension of a local path without the
// leading dot. URLs have no extension.
func DetectExt(input string) string {
	if IsURL(input) {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
}

// ConversionResult is the single terminal outcome of a conversion.
type ConversionResult struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	InputFile   string        `json:"input_file"`
	OutputFile  string        `json:"output_file,omitempty"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Markdown    string        `json:"markdown,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
}

// NewResult returns a pending result for id.
func NewResult(id, input string) *ConversionResult {
	return &ConversionResult{ID: id, Status: StatusPending, InputFile: input, CreatedAt: time.Now()}
}

// Start moves a pending result to processing. It is a no-op otherwise.
func (r *ConversionResult) Start() {
	if r.Status == StatusPending {
		r.Status = StatusProcessing
	}
}

// Finish sets the terminal state exactly once. Later calls are ignored and
// report false.
func (r *ConversionResult) Finish(status Status, markdown string, err error) bool {
	if r.Status.Terminal() || !status.Terminal() {
		return false
	}
	r.Status = status
	r.Markdown = markdown
	if err != nil {
		r.Error = err.Error()
	}
	r.CompletedAt = time.Now()
	r.Elapsed = r.CompletedAt.Sub(r.CreatedAt)
	return true
}
