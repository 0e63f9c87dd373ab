package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/fablecast/storypipe/internal/config"
)

// GeminiText is the Text LLM adapter, backed by langchaingo's Google AI
// client.
type GeminiText struct {
	llm     *googleai.GoogleAI
	model   string
	timeout time.Duration
	retry   RetryPolicy
}

// NewGeminiText constructs the Text LLM adapter.
func NewGeminiText(ctx context.Context, cfg *config.Config) (*GeminiText, error) {
	llm, err := googleai.New(ctx, googleai.WithAPIKey(cfg.GeminiAPIKey), googleai.WithDefaultModel(cfg.GeminiModelText))
	if err != nil {
		return nil, err
	}
	return &GeminiText{
		llm:     llm,
		model:   cfg.GeminiModelText,
		timeout: cfg.AdapterTimeoutText,
		retry:   DefaultRetryPolicy(),
	}, nil
}

// GenerateText runs a single system+user turn and returns the raw text
// response. Callers in internal/prompt are responsible for parsing it.
func (g *GeminiText) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	return WithRetry(ctx, g.retry, "gemini-text", func(ctx context.Context) (string, error) {
		resp, err := g.llm.GenerateContent(ctx, content, llms.WithModel(g.model), llms.WithTemperature(0.8))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			return "", fmt.Errorf("empty response from text model")
		}
		return resp.Choices[0].Content, nil
	})
}
