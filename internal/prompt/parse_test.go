package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/fablecast/storypipe/internal/providers"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "surrounded by prose",
			raw:  "Sure, here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!",
			want: `{"a": 1}`,
		},
		{
			name: "braces inside string values don't break balance",
			raw:  `{"text": "a {nested} brace", "n": 2}`,
			want: `{"text": "a {nested} brace", "n": 2}`,
		},
		{
			name:    "no object",
			raw:     "no json here",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			raw:     `{"a": 1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	raw := `{"characters": ["Mira", "Old Tom"], "scenes": [
		{"sequence": 0, "title": "A", "text": "one"},
		{"sequence": 1, "title": "B", "text": "two"}
	]}`

	plan, err := ParsePlan(raw, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Scenes) != 2 {
		t.Errorf("expected 2 scenes, got %d", len(plan.Scenes))
	}
	if len(plan.Characters) != 2 {
		t.Errorf("expected 2 characters, got %d", len(plan.Characters))
	}
}

func TestParsePlan_NoScenes(t *testing.T) {
	_, err := ParsePlan(`{"characters": ["Mira"], "scenes": []}`, 5)
	if err == nil {
		t.Fatal("expected error for empty scenes")
	}
	if !errors.Is(err, providers.ErrUpstreamMalformed) {
		t.Errorf("expected ErrUpstreamMalformed, got %v", err)
	}
}

func TestParsePlan_NoCharacters(t *testing.T) {
	raw := `{"characters": [], "scenes": [{"sequence": 0, "title": "A", "text": "one"}]}`
	_, err := ParsePlan(raw, 5)
	if err == nil {
		t.Fatal("expected error for empty characters")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("expected error to mention malformed, got %v", err)
	}
}

func TestParsePlan_EmptySceneText(t *testing.T) {
	raw := `{"characters": ["Mira"], "scenes": [{"sequence": 0, "title": "A", "text": ""}]}`
	_, err := ParsePlan(raw, 5)
	if err == nil {
		t.Fatal("expected error for empty scene text")
	}
}

func TestParsePlan_NonContiguousSequences(t *testing.T) {
	raw := `{"characters": ["Mira"], "scenes": [
		{"sequence": 1, "title": "A", "text": "one"},
		{"sequence": 2, "title": "B", "text": "two"}
	]}`
	_, err := ParsePlan(raw, 5)
	if err == nil {
		t.Fatal("expected error for non-zero-based sequences")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("expected error to mention malformed, got %v", err)
	}
}

func TestParseBaseStyle_EmptyStyle(t *testing.T) {
	_, err := ParseBaseStyle(`{"style": ""}`)
	if err == nil {
		t.Fatal("expected error for empty style")
	}
}

func TestParseSceneMoment(t *testing.T) {
	sm, err := ParseSceneMoment(`{"moment": "she opens the door"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sm.Moment, "door") {
		t.Errorf("unexpected moment: %q", sm.Moment)
	}
}
