package database

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fablecast/storypipe/internal/models"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"other pq error", &pq.Error{Code: "23503"}, false},
		{"non-pq error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestStoryRepository_SetStatus requires a live database to exercise the
// statemachine guard together with the row-level conditional update.
func TestStoryRepository_SetStatus(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := Connect(dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	repo := NewStoryRepository(db)
	story := &models.Story{
		ID: uuid.New(), UserID: uuid.New(), Title: "t", Prompt: "p",
		Status: models.StatusPending, CreatedAt: time.Now(),
	}
	if err := repo.CreateStory(t.Context(), story); err != nil {
		t.Fatalf("create story: %v", err)
	}

	if err := repo.SetStatus(t.Context(), story.ID, models.StatusPending, models.StatusCompleted, nil); err == nil {
		t.Error("expected illegal-transition error for pending->completed")
	}

	if err := repo.SetStatus(t.Context(), story.ID, models.StatusPending, models.StatusProcessing, nil); err != nil {
		t.Fatalf("expected pending->processing to succeed: %v", err)
	}

	if err := repo.SetStatus(t.Context(), story.ID, models.StatusPending, models.StatusProcessing, nil); err == nil {
		t.Error("expected conflict when racing an already-claimed story")
	}
}
