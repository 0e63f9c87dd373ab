package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/fablecast/storypipe/internal/models"
)

// SceneRepository handles scene-related database operations.
type SceneRepository struct {
	db *DB
}

// NewSceneRepository creates a new SceneRepository.
func NewSceneRepository(db *DB) *SceneRepository {
	return &SceneRepository{db: db}
}

// InsertScene inserts a scene. A unique violation on (story_id, sequence) is
// treated as an idempotent no-op: the Orchestrator may re-attempt an insert
// after a crash or redelivery, and the row is already there.
func (r *SceneRepository) InsertScene(ctx context.Context, scene *models.Scene) error {
	query := `
		INSERT INTO scenes (
			id, story_id, sequence, title, text, image_prompt, image_url, audio_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		scene.ID, scene.StoryID, scene.Sequence, scene.Title, scene.Text,
		scene.ImagePrompt, nullString(scene.ImageURL), nullString(scene.AudioURL), scene.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// InsertScenesBatch inserts several scenes in a single transaction, used
// after the plan stage produces the full scene list.
func (r *SceneRepository) InsertScenesBatch(ctx context.Context, scenes []*models.Scene) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO scenes (
			id, story_id, sequence, title, text, image_prompt, image_url, audio_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (story_id, sequence) DO NOTHING
	`
	for _, scene := range scenes {
		if _, err := tx.ExecContext(ctx, query,
			scene.ID, scene.StoryID, scene.Sequence, scene.Title, scene.Text,
			scene.ImagePrompt, nullString(scene.ImageURL), nullString(scene.AudioURL), scene.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetSceneImage records a scene's generated image URL together with the
// composed prompt that produced it.
func (r *SceneRepository) SetSceneImage(ctx context.Context, sceneID uuid.UUID, imageURL, imagePrompt string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scenes SET image_url = $1, image_prompt = $2, updated_at = now() WHERE id = $3`,
		imageURL, imagePrompt, sceneID)
	return err
}

// SetSceneAudio records a scene's generated audio URL.
func (r *SceneRepository) SetSceneAudio(ctx context.Context, sceneID uuid.UUID, audioURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scenes SET audio_url = $1, updated_at = now() WHERE id = $2`, audioURL, sceneID)
	return err
}

// ListScenes retrieves all scenes for a story, ordered by sequence. The
// Orchestrator uses this on every (re)claim to find already-persisted
// scenes and skip regenerating the ones that are already done.
func (r *SceneRepository) ListScenes(ctx context.Context, storyID uuid.UUID) ([]*models.Scene, error) {
	query := `
		SELECT id, story_id, sequence, title, text, image_prompt,
			COALESCE(image_url, ''), COALESCE(audio_url, ''), created_at, updated_at
		FROM scenes
		WHERE story_id = $1
		ORDER BY sequence ASC
	`
	rows, err := r.db.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*models.Scene
	for rows.Next() {
		scene := &models.Scene{}
		if err := rows.Scan(
			&scene.ID, &scene.StoryID, &scene.Sequence, &scene.Title, &scene.Text,
			&scene.ImagePrompt, &scene.ImageURL, &scene.AudioURL, &scene.CreatedAt, &scene.UpdatedAt,
		); err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
