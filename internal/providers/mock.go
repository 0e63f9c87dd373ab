package providers

import (
	"context"
	"fmt"
	"strings"
)

// MockText, MockImage and MockAudio back the mock_ai config flag: fast,
// deterministic fixtures for local development and tests, with no external
// API calls and no credentials required.

type MockText struct{}

func NewMockText() *MockText { return &MockText{} }

// GenerateText returns stage-appropriate canned JSON by inspecting which of
// the four prompt builders produced systemPrompt, so mock_ai runs can drive
// a story all the way to completed rather than failing parse at the first
// stage.
func (m *MockText) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch {
	case strings.Contains(systemPrompt, "story planner"):
		return `{"characters": ["Mock Hero"], "scenes": [
			{"sequence": 0, "title": "Beginning", "text": "The mock hero sets out."},
			{"sequence": 1, "title": "End", "text": "The mock hero returns home."}
		]}`, nil
	case strings.Contains(systemPrompt, "consistent character appearances"):
		return `{"profiles": {"Mock Hero": "a traveler in a worn cloak"}}`, nil
	case strings.Contains(systemPrompt, "cohesive illustration style"):
		return `{"style": "flat vector illustration, muted palette"}`, nil
	case strings.Contains(systemPrompt, "illustratable moment"):
		return `{"moment": "the mock hero stands at a crossroads"}`, nil
	default:
		return "", fmt.Errorf("mock text: unrecognized stage, prompt_len=%d", len(userPrompt))
	}
}

type MockImage struct{}

func NewMockImage() *MockImage { return &MockImage{} }

func (m *MockImage) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	return placeholderImage(), "image/png", nil
}

type MockAudio struct{}

func NewMockAudio() *MockAudio { return &MockAudio{} }

func (m *MockAudio) GenerateAudio(ctx context.Context, text string) ([]byte, string, error) {
	return convertToWAV(make([]byte, 4096), 24000), "audio/wav", nil
}

// placeholderImage returns a minimal PNG signature padded past the Blob
// Uploader's minimum-payload guard; it is never decoded, only stored and
// linked, so it doesn't need to be a valid image.
func placeholderImage() []byte {
	sig := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(sig, make([]byte, 200)...)
}
