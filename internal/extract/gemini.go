package extract

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/ryoshumei/add-to-calendar/internal/event"
	"github.com/ryoshumei/add-to-calendar/internal/logger"
)

// GeminiExtractor calls the model provider directly with a credential the
// user supplied. Errors here surface as-is: the user opted into this
// path, so there is no further fallback.
type GeminiExtractor struct {
	apiKey string
	model  string
	now    func() time.Time
}

func NewGeminiExtractor(apiKey, model string) *GeminiExtractor {
	return &GeminiExtractor{
		apiKey: apiKey,
		model:  model,
		now:    time.Now,
	}
}

func (g *GeminiExtractor) Strategy() Strategy {
	return StrategyModel
}

func (g *GeminiExtractor) Extract(ctx context.Context, text string) (*event.ExtractionResult, error) {
	if g.apiKey == "" {
		return nil, NewAuthError("no API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewError(StrategyModel, "failed to create model client").WithCause(err)
	}

	now := g.now()
	resp, err := client.Models.GenerateContent(ctx, g.model,
		genai.Text(UserPrompt(text, now)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt(now), genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.3),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		if IsAuthMessage(err.Error()) {
			return nil, NewAuthError("model provider rejected the API key").WithCause(err)
		}
		return nil, NewError(StrategyModel, "model request failed").WithCause(err)
	}

	raw := resp.Text()
	logger.Debug("model response received", "length", len(raw))

	result, err := event.ParseResult([]byte(raw))
	if err != nil {
		return nil, NewError(StrategyModel, "model returned invalid event JSON").WithCause(err)
	}

	return result, nil
}
