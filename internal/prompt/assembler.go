// Package prompt implements the Prompt Assembler: the four stateless prompt
// builders (plan, visual profile, base style, scene moment) paired with
// tolerant parsers, plus the deterministic image-prompt composition rule.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// PlannedScene is one scene as the plan stage proposes it, before any image
// or audio generation has run.
type PlannedScene struct {
	Sequence int    `json:"sequence"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

// Plan is the plan stage's parsed output.
type Plan struct {
	Characters []string       `json:"characters"`
	Scenes     []PlannedScene `json:"scenes"`
}

// VisualProfile maps each character name to a short physical description
// used to keep their depiction consistent across scenes.
type VisualProfile struct {
	Profiles map[string]string `json:"profiles"`
}

// BaseStyle is the overall illustration style shared by every scene.
type BaseStyle struct {
	Style string `json:"style"`
}

// SceneMoment is the single visual beat extracted from a scene's narration,
// the part of the scene the image should actually depict.
type SceneMoment struct {
	Moment string `json:"moment"`
}

// BuildPlanPrompt asks the Text LLM adapter to break a story prompt into an
// ordered list of scenes plus its cast of characters.
func BuildPlanPrompt(title, storyPrompt string, maxScenes int) (system, user string) {
	system = "You are a story planner for an illustrated audio story. " +
		"Given a title and a prompt, produce a JSON object with two fields: " +
		`"characters" (a list of character names that appear in the story) and ` +
		`"scenes" (an ordered list of objects with "sequence" (0-based int, starting at 0), "title" and "text"). ` +
		fmt.Sprintf("Produce no more than %d scenes. Reply with JSON only, no surrounding prose.", maxScenes)

	user = fmt.Sprintf("Title: %s\n\nPrompt: %s", title, storyPrompt)
	return system, user
}

// BuildVisualProfilePrompt asks for a short, consistent visual description of
// each named character, used later to keep their look stable across scenes.
func BuildVisualProfilePrompt(title string, characters []string) (system, user string) {
	system = "You design consistent character appearances for an illustrated story. " +
		`Reply with a JSON object {"profiles": {"<character>": "<short visual description>"}} covering every character listed, JSON only.`
	user = fmt.Sprintf("Story: %s\nCharacters: %s", title, strings.Join(characters, ", "))
	return system, user
}

// BuildBaseStylePrompt asks for the overall illustration style every scene's
// image prompt will share.
func BuildBaseStylePrompt(title, storyPrompt string) (system, user string) {
	system = "You choose a single cohesive illustration style for an audio story's scenes " +
		`(e.g. medium, palette, mood). Reply with JSON {"style": "<description>"} only.`
	user = fmt.Sprintf("Title: %s\nPrompt: %s", title, storyPrompt)
	return system, user
}

// BuildSceneMomentPrompt asks the Text LLM adapter to pick the single visual
// beat a scene's narration should be illustrated as.
func BuildSceneMomentPrompt(sceneTitle, sceneText string) (system, user string) {
	system = "You pick the single most illustratable moment from a scene of narration. " +
		`Reply with JSON {"moment": "<one vivid visual description, present tense>"} only.`
	user = fmt.Sprintf("Scene: %s\n\n%s", sceneTitle, sceneText)
	return system, user
}

// ComposeImagePrompt deterministically builds the final image-generation
// prompt: base style, then the visual profile of every character actually
// mentioned in this scene (so unrelated characters don't bleed into scenes
// they're not in), then the scene's moment.
func ComposeImagePrompt(baseStyle string, profiles map[string]string, sceneText, moment string) string {
	var b strings.Builder
	b.WriteString(baseStyle)

	for _, name := range mentionedCharacters(profiles, sceneText) {
		b.WriteString(". ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(profiles[name])
	}

	b.WriteString(". ")
	b.WriteString(moment)
	return b.String()
}

// mentionedCharacters returns the names from profiles that appear in text as
// a case-insensitive whole word, sorted for a deterministic prompt.
func mentionedCharacters(profiles map[string]string, text string) []string {
	var names []string
	for name := range profiles {
		if mentionsCharacter(text, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
