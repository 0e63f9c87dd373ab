package providers

import (
	"context"
	"fmt"

	"github.com/fablecast/storypipe/internal/config"
)

// TextProvider generates plan/profile/scene-moment text from a prompt pair.
type TextProvider interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageProvider renders a scene illustration from an assembled prompt.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, contentType string, err error)
}

// AudioProvider synthesizes narration audio for a scene's text.
type AudioProvider interface {
	GenerateAudio(ctx context.Context, text string) (data []byte, contentType string, err error)
}

// Set bundles the three adapters the Orchestrator depends on.
type Set struct {
	Text  TextProvider
	Image ImageProvider
	Audio AudioProvider
}

// NewSet wires the adapter set from config: real Gemini-family adapters, or
// the mock set when mock_ai is enabled (local dev, CI, tests).
func NewSet(ctx context.Context, cfg *config.Config) (*Set, error) {
	if cfg.MockAI {
		return &Set{Text: NewMockText(), Image: NewMockImage(), Audio: NewMockAudio()}, nil
	}

	text, err := NewGeminiText(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init text adapter: %w", err)
	}
	image, err := NewGeminiImage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init image adapter: %w", err)
	}
	audio, err := NewGeminiAudio(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init audio adapter: %w", err)
	}

	return &Set{Text: text, Image: image, Audio: audio}, nil
}
