// Package dispatcher implements the Dispatcher: the synchronous entry point
// that validates a story request, persists it, and enqueues it for the
// Pipeline Orchestrator to pick up.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/broker"
	"github.com/fablecast/storypipe/internal/config"
	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/models"
)

// Dispatcher is the Story submission entry point.
type Dispatcher struct {
	stories *database.StoryRepository
	broker  *broker.Client
	cfg     *config.Config
}

// New creates a Dispatcher.
func New(stories *database.StoryRepository, b *broker.Client, cfg *config.Config) *Dispatcher {
	return &Dispatcher{stories: stories, broker: b, cfg: cfg}
}

// Submit validates, persists, and enqueues a new story. On enqueue failure
// the story is immediately marked FAILED with error "enqueue_failed" and the
// error is surfaced to the caller: a job is never left stuck in PENDING
// with nothing that will ever pick it up.
func (d *Dispatcher) Submit(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error) {
	if err := d.validate(req); err != nil {
		return nil, err
	}

	story := &models.Story{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Title:     req.Title,
		Prompt:    req.Prompt,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}

	if err := d.stories.CreateStory(ctx, story); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	if err := d.broker.Enqueue(ctx, story.ID); err != nil {
		log.Error().Err(err).Str("story_id", story.ID.String()).Msg("failed to enqueue story, marking failed")
		reason := "enqueue_failed"
		if setErr := d.stories.SetStatus(ctx, story.ID, models.StatusPending, models.StatusFailed, &reason); setErr != nil {
			log.Error().Err(setErr).Str("story_id", story.ID.String()).Msg("failed to mark story failed after enqueue failure")
		}
		return nil, fmt.Errorf("enqueue story: %w", err)
	}

	log.Info().Str("story_id", story.ID.String()).Msg("story submitted")

	return &models.SubmitStoryResponse{
		StoryID:   story.ID,
		Status:    story.Status,
		CreatedAt: story.CreatedAt,
	}, nil
}

func (d *Dispatcher) validate(req models.SubmitStoryRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(req.Title) > d.cfg.MaxTitleLength {
		return fmt.Errorf("title exceeds maximum length of %d", d.cfg.MaxTitleLength)
	}
	if req.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(req.Prompt) > d.cfg.MaxPromptLength {
		return fmt.Errorf("prompt exceeds maximum length of %d", d.cfg.MaxPromptLength)
	}
	if req.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	return nil
}
