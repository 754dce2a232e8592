// Package llm describes images and summarizes documents through a chat
// model. When no model is configured the Mock client returns clearly
// labeled placeholder text instead of failing.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

// DocumentExcerptChars bounds how much markdown is sent for enhancement.
const DocumentExcerptChars = 3000

// Client is the capability the pipeline consumes.
type Client interface {
	DescribeImage(ctx context.Context, imagePath, context string) (string, error)
	EnhanceDocument(ctx context.Context, markdown, docType string) (string, error)
	// Available is false for placeholder clients.
	Available() bool
	Model() string
}

// New returns an OpenAI-compatible client when an API key is configured and
// the Mock otherwise.
func New(cfg config.LLMConfig, log zerolog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		log.Info().Msg("no LLM API key configured; AI sections use placeholder text")
		return Mock{}, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewChat(model, cfg.Model, cfg.MaxTokens), nil
}

// Chat adapts a langchaingo model to Client.
type Chat struct {
	model     llms.Model
	name      string
	maxTokens int
}

// NewChat wraps model.
func NewChat(model llms.Model, name string, maxTokens int) *Chat {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Chat{model: model, name: name, maxTokens: maxTokens}
}

// Available implements Client.
func (c *Chat) Available() bool { return true }

// Model implements Client.
func (c *Chat) Model() string { return c.name }

func describePrompt(imageContext string) string {
	if imageContext == "" {
		imageContext = "This image was extracted from a document."
	}
	return "Please analyze this image and provide:\n" +
		"1. A brief description of what the image contains\n" +
		"2. Any text visible in the image (if applicable)\n" +
		"3. The type of content (diagram, chart, photo, screenshot, etc.)\n" +
		"4. Key information or data points shown\n\n" +
		"Context: " + imageContext + "\n\n" +
		"Please be concise but thorough."
}

func enhancePrompt(markdown, docType string) string {
	r := []rune(markdown)
	if len(r) > DocumentExcerptChars {
		markdown = string(r[:DocumentExcerptChars])
	}
	return "You are analyzing a " + docType + " document that has been converted to markdown.\n\n" +
		"Original content:\n" + markdown + "\n\n" +
		"Please provide:\n" +
		"1. A brief summary of the document's main topics\n" +
		"2. Key points or takeaways\n" +
		"3. Document structure analysis\n" +
		"4. Any notable data or findings\n\n" +
		"Keep the response in markdown format."
}

// DescribeImage implements Client.
func (c *Chat) DescribeImage(ctx context.Context, imagePath, imageContext string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image for description: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	return c.generate(ctx, []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(describePrompt(imageContext)), llms.ImageURLPart(uri)},
	}}, c.maxTokens)
}

// EnhanceDocument implements Client. It returns the analysis only; the
// caller decides where to place it.
func (c *Chat) EnhanceDocument(ctx context.Context, markdown, docType string) (string, error) {
	return c.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a document analysis assistant."),
		llms.TextParts(llms.ChatMessageTypeHuman, enhancePrompt(markdown, docType)),
	}, 2*c.maxTokens)
}

var errEmptyResponse = errors.New("model returned no choices")

func (c *Chat) generate(ctx context.Context, msgs []llms.MessageContent, maxTokens int) (string, error) {
	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("llm %s: %w", c.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm %s: %w", c.name, errEmptyResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Mock returns labeled placeholder content.
type Mock struct{}

// Available implements Client.
func (Mock) Available() bool { return false }

// Model implements Client.
func (Mock) Model() string { return "mock" }

// DescribeImage implements Client.
func (Mock) DescribeImage(_ context.Context, imagePath, imageContext string) (string, error) {
	if imageContext == "" {
		imageContext = "Document image"
	}
	return "[AI Mock Description]\n" +
		"Placeholder description for " + filepath.Base(imagePath) + ".\n" +
		"Context: " + imageContext + "\n\n" +
		"Note: This is a mock description. Configure an LLM API key for real AI analysis.", nil
}

// EnhanceDocument implements Client.
func (Mock) EnhanceDocument(_ context.Context, _ string, docType string) (string, error) {
	return "**Document Type:** " + docType + "\n\n" +
		"**Summary:** [AI Mock Analysis] This document was processed in mock AI mode. " +
		"Configure an LLM API key for document analysis.", nil
}
