package providers

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/fablecast/storypipe/internal/config"
)

// GeminiAudio is the Audio adapter, backed by the unified google.golang.org/genai
// SDK's streaming TTS, wrapped into a single request/response call that
// returns a playable WAV container.
type GeminiAudio struct {
	client  *genai.Client
	model   string
	voice   string
	timeout time.Duration
	retry   RetryPolicy
}

// NewGeminiAudio constructs the Audio adapter.
func NewGeminiAudio(ctx context.Context, cfg *config.Config) (*GeminiAudio, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, err
	}
	return &GeminiAudio{
		client:  client,
		model:   cfg.GeminiModelTTS,
		voice:   cfg.GeminiTTSVoice,
		timeout: cfg.AdapterTimeoutAudio,
		retry:   DefaultRetryPolicy(),
	}, nil
}

type audioResult struct {
	pcm      []byte
	mimeType string
}

// GenerateAudio synthesizes narration for a scene's text and returns a WAV
// file (provider TTS responses come back as raw PCM; WAV is what the Blob
// Uploader and downstream players expect).
func (g *GeminiAudio) GenerateAudio(ctx context.Context, text string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(text)},
		},
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"audio"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	res, err := WithRetry(ctx, g.retry, "gemini-audio", func(ctx context.Context) (audioResult, error) {
		var pcm bytes.Buffer
		var mimeType string

		for resp, streamErr := range g.client.Models.GenerateContentStream(ctx, g.model, contents, genCfg) {
			if streamErr != nil {
				return audioResult{}, streamErr
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					pcm.Write(part.InlineData.Data)
					if part.InlineData.MIMEType != "" {
						mimeType = part.InlineData.MIMEType
					}
				}
			}
		}
		if pcm.Len() == 0 {
			return audioResult{}, fmt.Errorf("no audio part in response")
		}
		return audioResult{pcm: pcm.Bytes(), mimeType: mimeType}, nil
	})
	if err != nil {
		return nil, "", err
	}

	wav := convertToWAV(res.pcm, parseSampleRate(res.mimeType))
	return wav, "audio/wav", nil
}

// parseSampleRate extracts the rate=NNNNN parameter Gemini's TTS mime type
// carries (e.g. "audio/L16;rate=24000"), defaulting to 24kHz.
func parseSampleRate(mimeType string) int {
	const defaultRate = 24000
	idx := strings.Index(mimeType, "rate=")
	if idx == -1 {
		return defaultRate
	}
	rateStr := mimeType[idx+len("rate="):]
	if end := strings.IndexByte(rateStr, ';'); end != -1 {
		rateStr = rateStr[:end]
	}
	rate, err := strconv.Atoi(rateStr)
	if err != nil {
		return defaultRate
	}
	return rate
}

// convertToWAV wraps raw 16-bit signed little-endian mono PCM in a WAV
// container so downstream players don't need to know the provider's raw format.
func convertToWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
