package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/extract"
)

// ModelClient runs extractions against the model provider with the
// service credential, using the same prompt contract and validation as
// the extension's direct path.
type ModelClient struct {
	apiKey string
	model  string
}

func NewModelClient(cfg *Config) *ModelClient {
	return &ModelClient{
		apiKey: cfg.ModelAPIKey,
		model:  cfg.ModelName,
	}
}

func (c *ModelClient) ExtractEvents(ctx context.Context, text string) (*event.ExtractionResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	now := time.Now()
	resp, err := client.Models.GenerateContent(ctx, c.model,
		genai.Text(extract.UserPrompt(text, now)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(extract.SystemPrompt(now), genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.3),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}

	raw := resp.Text()
	slog.Debug("model response received", "length", len(raw))

	result, err := event.ParseResult([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("model returned invalid event JSON: %w", err)
	}
	return result, nil
}
