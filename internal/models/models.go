package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Story's position in the job state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Story is one illustrated audio story generation job.
type Story struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Title     string         `json:"title"`
	Prompt    string         `json:"prompt"`
	Status    Status         `json:"status"`
	Metadata  StoryMetadata  `json:"metadata"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StoryMetadata holds the plan-stage output shared by every scene:
// the cast of characters (for visual-profile lookups) and the overall
// illustration style used to seed each scene's image prompt.
type StoryMetadata struct {
	Characters  []string          `json:"characters,omitempty"`
	Profiles    map[string]string `json:"profiles,omitempty"`
	VisualStyle string            `json:"visual_style,omitempty"`
	SceneCount  int               `json:"scene_count,omitempty"`
}

// Planned reports whether the plan stage has already run for this story
// (used by the Orchestrator to skip re-planning on a reclaim).
func (m StoryMetadata) Planned() bool {
	return m.SceneCount > 0
}

// Scene is one beat of a Story: narration text plus its generated image
// and audio. Both URLs are populated once the scene reaches its terminal
// state; either may be empty while generation is still in flight.
type Scene struct {
	ID          uuid.UUID `json:"id"`
	StoryID     uuid.UUID `json:"story_id"`
	Sequence    int       `json:"sequence"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	ImagePrompt string    `json:"image_prompt"`
	ImageURL    string    `json:"image_url,omitempty"`
	AudioURL    string    `json:"audio_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Done reports whether a scene has finished generation (both assets present).
func (s Scene) Done() bool {
	return s.ImageURL != "" && s.AudioURL != ""
}

// SubmitStoryRequest is the Dispatcher's input shape.
type SubmitStoryRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Prompt string    `json:"prompt"`
}

// SubmitStoryResponse is returned immediately after a successful submission.
type SubmitStoryResponse struct {
	StoryID   uuid.UUID `json:"story_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryStatusResponse is the full read-model for a story, scenes included.
type StoryStatusResponse struct {
	Story  Story   `json:"story"`
	Scenes []Scene `json:"scenes"`
}
