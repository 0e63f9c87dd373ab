package providers

import (
	"context"
	"testing"
)

func TestMockText_Deterministic(t *testing.T) {
	m := NewMockText()
	system := "You are a story planner for an illustrated audio story."
	a, err := m.GenerateText(context.Background(), system, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.GenerateText(context.Background(), system, "hello")
	if a != b {
		t.Errorf("mock text not deterministic: %q != %q", a, b)
	}
}

func TestMockImage_AboveMinPayload(t *testing.T) {
	m := NewMockImage()
	data, contentType, err := m.GenerateImage(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) < 100 {
		t.Errorf("mock image payload too small: %d bytes", len(data))
	}
	if contentType != "image/png" {
		t.Errorf("unexpected content type: %q", contentType)
	}
}

func TestMockAudio_ReturnsWAV(t *testing.T) {
	m := NewMockAudio()
	data, contentType, err := m.GenerateAudio(context.Background(), "once upon a time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("WAV payload too small to contain a header: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Errorf("expected RIFF/WAVE header, got %q/%q", data[0:4], data[8:12])
	}
	if contentType != "audio/wav" {
		t.Errorf("unexpected content type: %q", contentType)
	}
}
