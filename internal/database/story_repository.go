package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fablecast/storypipe/internal/models"
	"github.com/fablecast/storypipe/internal/statemachine"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a status transition is illegal, or an insert
// collides with a row that already exists under a unique constraint.
var ErrConflict = fmt.Errorf("conflict")

// StoryRepository handles story-related database operations.
type StoryRepository struct {
	db *DB
}

// NewStoryRepository creates a new StoryRepository.
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// CreateStory inserts a new story row in PENDING status.
func (r *StoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	metaJSON, err := json.Marshal(story.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO stories (id, user_id, title, prompt, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		story.ID, story.UserID, story.Title, story.Prompt, story.Status, metaJSON, story.CreatedAt,
	)
	return err
}

// GetStory retrieves a story by ID.
func (r *StoryRepository) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	query := `
		SELECT id, user_id, title, prompt, status, metadata, error, created_at, updated_at
		FROM stories WHERE id = $1
	`
	story := &models.Story{}
	var metaJSON []byte
	err := r.db.QueryRowContext(ctx, query, storyID).Scan(
		&story.ID, &story.UserID, &story.Title, &story.Prompt, &story.Status,
		&metaJSON, &story.Error, &story.CreatedAt, &story.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &story.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return story, nil
}

// SetStatus transitions a story to a new status, guarded by the state
// machine. The transition is also enforced at the row level via the WHERE
// clause so two workers racing to claim the same story can't both succeed.
func (r *StoryRepository) SetStatus(ctx context.Context, storyID uuid.UUID, from, to models.Status, errMsg *string) error {
	if !statemachine.Allowed(from, to) {
		return fmt.Errorf("%w: illegal transition %s -> %s", ErrConflict, from, to)
	}

	query := `
		UPDATE stories
		SET status = $1, error = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, to, errMsg, storyID, from)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: story %s is not in status %s", ErrConflict, storyID, from)
	}
	return nil
}

// SetMetadata persists the plan stage's output (characters, visual style,
// scene count) onto the story row.
func (r *StoryRepository) SetMetadata(ctx context.Context, storyID uuid.UUID, metadata models.StoryMetadata) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `UPDATE stories SET metadata = $1, updated_at = now() WHERE id = $2`
	_, err = r.db.ExecContext(ctx, query, metaJSON, storyID)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
