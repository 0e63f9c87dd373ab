package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/fablecast/storypipe/internal/providers"
)

// ParsePlan extracts the plan stage's JSON object from a raw model response
// and validates it. A plan with more than maxScenes scenes is truncated to
// its first maxScenes entries, not rejected. Scene sequences must be 0-based and
// contiguous ({0, 1, ..., N-1}); anything else is treated the same as
// malformed upstream JSON, since it's the plan stage inventing scene
// numbering the rest of the pipeline can't rely on.
func ParsePlan(raw string, maxScenes int) (*Plan, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("plan: unmarshal: %w", err)
	}
	if len(plan.Scenes) == 0 {
		return nil, fmt.Errorf("plan: %w: no scenes", providers.ErrUpstreamMalformed)
	}
	if len(plan.Characters) == 0 {
		return nil, fmt.Errorf("plan: %w: no characters", providers.ErrUpstreamMalformed)
	}
	if len(plan.Scenes) > maxScenes {
		plan.Scenes = plan.Scenes[:maxScenes]
	}
	for _, s := range plan.Scenes {
		if s.Text == "" {
			return nil, fmt.Errorf("plan: %w: scene %d has empty text", providers.ErrUpstreamMalformed, s.Sequence)
		}
	}
	if err := validateSequences(plan.Scenes); err != nil {
		return nil, fmt.Errorf("plan: %w: %s", providers.ErrUpstreamMalformed, err)
	}
	return &plan, nil
}

// validateSequences requires scene sequences to form the contiguous range
// {0, 1, ..., len(scenes)-1}, in any order.
func validateSequences(scenes []PlannedScene) error {
	seen := make(map[int]bool, len(scenes))
	for _, s := range scenes {
		if seen[s.Sequence] {
			return fmt.Errorf("duplicate scene sequence %d", s.Sequence)
		}
		seen[s.Sequence] = true
	}
	for i := range scenes {
		if !seen[i] {
			return fmt.Errorf("sequences must form a contiguous 0..%d range, missing %d", len(scenes)-1, i)
		}
	}
	return nil
}

// ParseVisualProfile extracts the visual-profile stage's JSON object.
func ParseVisualProfile(raw string) (*VisualProfile, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("visual profile: %w", err)
	}
	var vp VisualProfile
	if err := json.Unmarshal(body, &vp); err != nil {
		return nil, fmt.Errorf("visual profile: unmarshal: %w", err)
	}
	return &vp, nil
}

// ParseBaseStyle extracts the base-style stage's JSON object.
func ParseBaseStyle(raw string) (*BaseStyle, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("base style: %w", err)
	}
	var bs BaseStyle
	if err := json.Unmarshal(body, &bs); err != nil {
		return nil, fmt.Errorf("base style: unmarshal: %w", err)
	}
	if bs.Style == "" {
		return nil, fmt.Errorf("base style: empty style")
	}
	return &bs, nil
}

// ParseSceneMoment extracts the scene-moment stage's JSON object.
func ParseSceneMoment(raw string) (*SceneMoment, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("scene moment: %w", err)
	}
	var sm SceneMoment
	if err := json.Unmarshal(body, &sm); err != nil {
		return nil, fmt.Errorf("scene moment: unmarshal: %w", err)
	}
	if sm.Moment == "" {
		return nil, fmt.Errorf("scene moment: empty moment")
	}
	return &sm, nil
}

// extractJSONObject tolerates surrounding prose (and ```json fences) around
// a single JSON object by scanning for the first balanced {...} block,
// tracking string-quote and escape state so braces inside string values
// don't throw off the balance count.
func extractJSONObject(raw string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return []byte(raw[start : i+1]), nil
				}
			}
		}
	}

	return nil, fmt.Errorf("no balanced JSON object found")
}
