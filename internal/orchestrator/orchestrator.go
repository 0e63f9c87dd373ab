// Package orchestrator implements the Pipeline Orchestrator: the worker-side
// state machine that turns a claimed Story into a finished set of Scenes,
// fanning out per-scene work with bounded concurrency and resuming cleanly
// after a crash or redelivery.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/config"
	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/models"
	"github.com/fablecast/storypipe/internal/obs"
	"github.com/fablecast/storypipe/internal/prompt"
	"github.com/fablecast/storypipe/internal/providers"
	"github.com/fablecast/storypipe/internal/statemachine"
	"github.com/fablecast/storypipe/internal/storage"
)

// storyRepository is the subset of database.StoryRepository the Orchestrator
// depends on (narrowed for testability with fakes).
type storyRepository interface {
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
	SetStatus(ctx context.Context, storyID uuid.UUID, from, to models.Status, errMsg *string) error
	SetMetadata(ctx context.Context, storyID uuid.UUID, metadata models.StoryMetadata) error
}

// sceneRepository is the subset of database.SceneRepository the Orchestrator
// depends on.
type sceneRepository interface {
	ListScenes(ctx context.Context, storyID uuid.UUID) ([]*models.Scene, error)
	InsertScenesBatch(ctx context.Context, scenes []*models.Scene) error
	SetSceneImage(ctx context.Context, sceneID uuid.UUID, imageURL, imagePrompt string) error
	SetSceneAudio(ctx context.Context, sceneID uuid.UUID, audioURL string) error
}

// blobUploader is the subset of storage.Client the Orchestrator depends on.
type blobUploader interface {
	PutImage(ctx context.Context, storyID string, sequence int, ext string, data []byte, contentType string) (string, error)
	PutAudio(ctx context.Context, storyID string, sequence int, ext string, data []byte, contentType string) (string, error)
}

// Orchestrator processes one story at a time end-to-end.
type Orchestrator struct {
	stories   storyRepository
	scenes    sceneRepository
	providers *providers.Set
	storage   blobUploader
	cfg       *config.Config
}

// New creates an Orchestrator.
func New(stories *database.StoryRepository, scenes *database.SceneRepository, providerSet *providers.Set, storageClient *storage.Client, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		stories:   stories,
		scenes:    scenes,
		providers: providerSet,
		storage:   storageClient,
		cfg:       cfg,
	}
}

// ErrShouldRetry marks a failure the caller should Nack (leave for
// redelivery) rather than mark the story permanently FAILED.
var ErrShouldRetry = fmt.Errorf("orchestrator: retryable stage failure")

// ProcessJob runs the full pipeline for one story. It is safe to call more
// than once for the same story (broker redelivery, worker restart): already
// persisted scenes are detected and skipped, and the claim step guards
// against two workers racing on the same story.
func (o *Orchestrator) ProcessJob(ctx context.Context, storyID uuid.UUID) error {
	log.Info().Str("story_id", storyID.String()).Msg("starting story processing")

	story, err := o.stories.GetStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}

	// Step 1: terminal-guard, idempotent no-op for duplicate deliveries.
	if statemachine.Terminal(story.Status) {
		log.Info().Str("story_id", storyID.String()).Str("status", string(story.Status)).Msg("story already terminal, skipping")
		return nil
	}

	// Step 2: claim. PENDING->PROCESSING on first pickup, PROCESSING->PROCESSING
	// on a reclaim after a crashed worker (the state machine allows both).
	if err := o.stories.SetStatus(ctx, storyID, story.Status, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("%w: claim story: %w", ErrShouldRetry, err)
	}
	story.Status = models.StatusProcessing

	if err := o.runPipeline(ctx, story); err != nil {
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("story processing failed")

		// A non-retryable failure (malformed output, a persistence error) is
		// permanent on its own; the broker will never redeliver it into a
		// different outcome, so fail the story now instead of leaving it
		// stuck in PROCESSING. A retryable failure is left for the caller to
		// Nack; Fail is invoked once its attempt budget is exhausted.
		if !errors.Is(err, ErrShouldRetry) {
			reason := err.Error()
			if failErr := o.stories.SetStatus(ctx, storyID, story.Status, models.StatusFailed, &reason); failErr != nil {
				log.Error().Err(failErr).Str("story_id", storyID.String()).Msg("failed to mark story failed")
			}
		}
		return err
	}

	if err := o.stories.SetStatus(ctx, storyID, models.StatusProcessing, models.StatusCompleted, nil); err != nil {
		return fmt.Errorf("finalize story: %w", err)
	}

	log.Info().Str("story_id", storyID.String()).Msg("story processing completed")
	return nil
}

// Fail transitions a story to FAILED with reason, for a retryable failure
// whose attempt budget the caller (the worker's ack/nack loop) has
// determined is exhausted. It is a no-op if the story already reached a
// terminal state.
func (o *Orchestrator) Fail(ctx context.Context, storyID uuid.UUID, reason string) error {
	story, err := o.stories.GetStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if statemachine.Terminal(story.Status) {
		return nil
	}
	return o.stories.SetStatus(ctx, storyID, story.Status, models.StatusFailed, &reason)
}

func (o *Orchestrator) runPipeline(ctx context.Context, story *models.Story) error {
	// Steps 3-4: plan, then visual profile + base style concurrently. Only
	// on first pickup; a reclaim reuses the already-persisted plan.
	if !story.Metadata.Planned() {
		if err := o.plan(ctx, story); err != nil {
			return fmt.Errorf("plan stage: %w", err)
		}
	}

	// Step 5: list already-persisted scenes for partial-resume.
	existing, err := o.scenes.ListScenes(ctx, story.ID)
	if err != nil {
		return fmt.Errorf("list scenes: %w", err)
	}

	pending := make([]*models.Scene, 0, len(existing))
	for _, scene := range existing {
		if !scene.Done() {
			pending = append(pending, scene)
		}
	}

	// Step 6: per-scene fan-out bounded by scene_parallelism.
	if err := o.processScenes(ctx, story, pending); err != nil {
		return err
	}

	return nil
}

// plan runs the plan stage, then visual-profile and base-style concurrently,
// and persists the resulting metadata plus the initial (empty-asset) scene rows.
func (o *Orchestrator) plan(ctx context.Context, story *models.Story) error {
	system, user := prompt.BuildPlanPrompt(story.Title, story.Prompt, o.cfg.MaxSceneCount)
	raw, err := o.providers.Text.GenerateText(ctx, system, user)
	if err != nil {
		return fmt.Errorf("%w: generate plan: %w", ErrShouldRetry, err)
	}
	plan, err := prompt.ParsePlan(raw, o.cfg.MaxSceneCount)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}

	var (
		wg            sync.WaitGroup
		visualProfile *prompt.VisualProfile
		baseStyle     *prompt.BaseStyle
		profileErr    error
		baseStyleErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		system, user := prompt.BuildVisualProfilePrompt(story.Title, plan.Characters)
		raw, err := o.providers.Text.GenerateText(ctx, system, user)
		if err != nil {
			profileErr = err
			return
		}
		visualProfile, profileErr = prompt.ParseVisualProfile(raw)
	}()
	go func() {
		defer wg.Done()
		system, user := prompt.BuildBaseStylePrompt(story.Title, story.Prompt)
		raw, err := o.providers.Text.GenerateText(ctx, system, user)
		if err != nil {
			baseStyleErr = err
			return
		}
		baseStyle, baseStyleErr = prompt.ParseBaseStyle(raw)
	}()
	wg.Wait()

	if profileErr != nil {
		return fmt.Errorf("%w: visual profile: %w", ErrShouldRetry, profileErr)
	}
	if baseStyleErr != nil {
		return fmt.Errorf("%w: base style: %w", ErrShouldRetry, baseStyleErr)
	}

	metadata := models.StoryMetadata{
		Characters:  plan.Characters,
		Profiles:    visualProfile.Profiles,
		VisualStyle: baseStyle.Style,
		SceneCount:  len(plan.Scenes),
	}

	// Insert the scene rows before marking the story planned. Metadata.Planned()
	// is what tells a reclaim to skip straight past this stage, so if a crash
	// lands between the two writes, it must land before the story looks
	// planned: otherwise a reclaim would skip planning, find zero scenes, and
	// complete the story having generated nothing.
	now := time.Now()
	rows := make([]*models.Scene, 0, len(plan.Scenes))
	for _, ps := range plan.Scenes {
		rows = append(rows, &models.Scene{
			ID:        uuid.New(),
			StoryID:   story.ID,
			Sequence:  ps.Sequence,
			Title:     ps.Title,
			Text:      ps.Text,
			CreatedAt: now,
		})
	}
	if err := o.scenes.InsertScenesBatch(ctx, rows); err != nil {
		return fmt.Errorf("persist scenes: %w", err)
	}

	if err := o.stories.SetMetadata(ctx, story.ID, metadata); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	story.Metadata = metadata

	return nil
}

// processScenes fans out moment->image (sequential within a scene) and audio
// (concurrent with the image work) across scenes, bounded by
// cfg.SceneParallelism, and captures the first error encountered.
func (o *Orchestrator) processScenes(ctx context.Context, story *models.Story, scenes []*models.Scene) error {
	concurrency := o.cfg.SceneParallelism
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, scene := range scenes {
		scene := scene
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			log.Info().Str("story_id", story.ID.String()).Int("scene", scene.Sequence).Msg("processing scene")

			if err := o.processScene(ctx, story, scene); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("scene %d: %w", scene.Sequence, err)
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// processScene generates the scene's moment and image sequentially, and its
// audio concurrently with the image work, per §4.G.
func (o *Orchestrator) processScene(ctx context.Context, story *models.Story, scene *models.Scene) error {
	var wg sync.WaitGroup
	var imageErr, audioErr error

	wg.Add(2)

	go func() {
		defer wg.Done()
		imageErr = o.generateImage(ctx, story, scene)
	}()
	go func() {
		defer wg.Done()
		audioErr = o.generateAudio(ctx, story, scene)
	}()

	wg.Wait()

	if imageErr != nil {
		return imageErr
	}
	if audioErr != nil {
		return audioErr
	}
	obs.ScenesGenerated.Inc()
	return nil
}

func (o *Orchestrator) generateImage(ctx context.Context, story *models.Story, scene *models.Scene) error {
	if scene.ImageURL != "" {
		return nil
	}

	system, user := prompt.BuildSceneMomentPrompt(scene.Title, scene.Text)
	raw, err := o.providers.Text.GenerateText(ctx, system, user)
	if err != nil {
		return fmt.Errorf("%w: scene moment: %w", ErrShouldRetry, err)
	}
	moment, err := prompt.ParseSceneMoment(raw)
	if err != nil {
		return fmt.Errorf("parse scene moment: %w", err)
	}

	imagePrompt := prompt.ComposeImagePrompt(story.Metadata.VisualStyle, story.Metadata.Profiles, scene.Text, moment.Moment)

	data, contentType, err := o.providers.Image.GenerateImage(ctx, imagePrompt)
	if err != nil {
		return fmt.Errorf("%w: generate image: %w", ErrShouldRetry, err)
	}

	ext := imageExtension(contentType)
	url, err := o.storage.PutImage(ctx, story.ID.String(), scene.Sequence, ext, data, contentType)
	if err != nil {
		return fmt.Errorf("%w: upload image: %w", ErrShouldRetry, err)
	}

	if err := o.scenes.SetSceneImage(ctx, scene.ID, url, imagePrompt); err != nil {
		return fmt.Errorf("persist image url: %w", err)
	}
	scene.ImagePrompt = imagePrompt
	scene.ImageURL = url
	return nil
}

func (o *Orchestrator) generateAudio(ctx context.Context, story *models.Story, scene *models.Scene) error {
	if scene.AudioURL != "" {
		return nil
	}

	data, contentType, err := o.providers.Audio.GenerateAudio(ctx, scene.Text)
	if err != nil {
		return fmt.Errorf("%w: generate audio: %w", ErrShouldRetry, err)
	}

	ext := audioExtension(contentType)
	url, err := o.storage.PutAudio(ctx, story.ID.String(), scene.Sequence, ext, data, contentType)
	if err != nil {
		return fmt.Errorf("%w: upload audio: %w", ErrShouldRetry, err)
	}

	if err := o.scenes.SetSceneAudio(ctx, scene.ID, url); err != nil {
		return fmt.Errorf("persist audio url: %w", err)
	}
	scene.AudioURL = url
	return nil
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

func audioExtension(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return "mp3"
	default:
		return "wav"
	}
}
