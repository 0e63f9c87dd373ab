package providers

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/fablecast/storypipe/internal/config"
)

// GeminiImage is the Image adapter, backed by the genai SDK with a strict
// IMAGE response modality.
type GeminiImage struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retry   RetryPolicy
}

// NewGeminiImage constructs the Image adapter.
func NewGeminiImage(ctx context.Context, cfg *config.Config) (*GeminiImage, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiImage{
		client:  client,
		model:   cfg.GeminiModelImage,
		timeout: cfg.AdapterTimeoutImage,
		retry:   DefaultRetryPolicy(),
	}, nil
}

type imageResult struct {
	data        []byte
	contentType string
}

// GenerateImage renders a single illustration from an already-assembled
// prompt (the Prompt Assembler owns composing base style + visual profile +
// scene moment into `prompt`).
func (g *GeminiImage) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := WithRetry(ctx, g.retry, "gemini-image", func(ctx context.Context) (imageResult, error) {
		model := g.client.GenerativeModel(g.model)
		setImageOnlyModality(model)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return imageResult{}, err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return imageResult{}, fmt.Errorf("no candidates in image response")
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if blob, ok := part.(genai.Blob); ok {
				return imageResult{data: blob.Data, contentType: blob.MIMEType}, nil
			}
		}
		return imageResult{}, fmt.Errorf("no image part in response")
	})
	if err != nil {
		return nil, "", err
	}
	return res.data, res.contentType, nil
}

// setImageOnlyModality restricts the model's response to image parts so a
// stray text preamble never ends up where an image is expected. Uses
// reflection since ResponseModality isn't present on every SDK version this
// model family has shipped.
func setImageOnlyModality(model *genai.GenerativeModel) {
	v := reflect.ValueOf(model).Elem()
	f := v.FieldByName("ResponseModality")
	if !f.IsValid() || !f.CanSet() {
		return
	}
	if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
		f.Set(reflect.ValueOf([]string{"IMAGE"}))
	}
}
