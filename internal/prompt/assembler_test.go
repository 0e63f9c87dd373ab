package prompt

import (
	"strings"
	"testing"
)

func TestMentionsCharacter(t *testing.T) {
	tests := []struct {
		name string
		text string
		who  string
		want bool
	}{
		{"exact", "Mira walked to the door.", "Mira", true},
		{"case insensitive", "mira walked to the door.", "Mira", true},
		{"substring of another word not matched", "Miranda walked to the door.", "Mira", false},
		{"punctuation boundary", "\"Mira,\" she said.", "Mira", true},
		{"not present", "Tom walked to the door.", "Mira", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mentionsCharacter(tt.text, tt.who); got != tt.want {
				t.Errorf("mentionsCharacter(%q, %q) = %v, want %v", tt.text, tt.who, got, tt.want)
			}
		})
	}
}

func TestComposeImagePrompt_OnlyMentionedCharacters(t *testing.T) {
	profiles := map[string]string{
		"Mira":    "a young girl in a blue coat",
		"Old Tom": "a grizzled lighthouse keeper",
	}

	prompt := ComposeImagePrompt("watercolor, warm light", profiles, "Mira ran down the pier.", "she waves at a passing boat")

	if !strings.Contains(prompt, "Mira: a young girl in a blue coat") {
		t.Errorf("expected Mira's profile in prompt, got %q", prompt)
	}
	if strings.Contains(prompt, "Old Tom") {
		t.Errorf("did not expect Old Tom's profile in prompt, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "she waves at a passing boat") {
		t.Errorf("expected moment at end of prompt, got %q", prompt)
	}
}

func TestComposeImagePrompt_Deterministic(t *testing.T) {
	profiles := map[string]string{
		"Mira":    "a young girl",
		"Old Tom": "a lighthouse keeper",
	}
	text := "Mira and Old Tom stood on the pier."

	first := ComposeImagePrompt("style", profiles, text, "moment")
	for i := 0; i < 5; i++ {
		if got := ComposeImagePrompt("style", profiles, text, "moment"); got != first {
			t.Fatalf("ComposeImagePrompt not deterministic: %q != %q", got, first)
		}
	}
}
