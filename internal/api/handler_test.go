package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/models"
)

type fakeSubmitter struct {
	submit func(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error) {
	return f.submit(ctx, req)
}

type fakeStoryReader struct {
	story *models.Story
	err   error
}

func (f *fakeStoryReader) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	return f.story, f.err
}

type fakeSceneLister struct {
	scenes []*models.Scene
	err    error
}

func (f *fakeSceneLister) ListScenes(ctx context.Context, storyID uuid.UUID) ([]*models.Scene, error) {
	return f.scenes, f.err
}

func TestSubmitStory_Success(t *testing.T) {
	storyID := uuid.New()
	h := NewHandler(&fakeSubmitter{
		submit: func(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error) {
			return &models.SubmitStoryResponse{StoryID: storyID, Status: models.StatusPending}, nil
		},
	}, nil, nil)

	body := bytes.NewBufferString(`{"user_id":"` + uuid.New().String() + `","title":"A Story","prompt":"once upon a time"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", body)
	rec := httptest.NewRecorder()

	h.SubmitStory(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SubmitStoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StoryID != storyID {
		t.Errorf("story_id %s != expected %s", resp.StoryID, storyID)
	}
}

func TestSubmitStory_InvalidBody(t *testing.T) {
	h := NewHandler(&fakeSubmitter{}, nil, nil)

	body := bytes.NewBufferString(`{invalid json`)
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", body)
	rec := httptest.NewRecorder()

	h.SubmitStory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitStory_ValidationErrorFromDispatcher(t *testing.T) {
	h := NewHandler(&fakeSubmitter{
		submit: func(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error) {
			return nil, fmt.Errorf("title is required")
		},
	}, nil, nil)

	body := bytes.NewBufferString(`{"user_id":"` + uuid.New().String() + `","prompt":"once upon a time"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", body)
	rec := httptest.NewRecorder()

	h.SubmitStory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetStory_InvalidID(t *testing.T) {
	h := &Handler{stories: &fakeStoryReader{}, scenes: &fakeSceneLister{}}

	req := httptest.NewRequest(http.MethodGet, "/v1/stories/not-a-uuid", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "not-a-uuid"})
	rec := httptest.NewRecorder()

	h.GetStory(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetStory_NotFound(t *testing.T) {
	h := &Handler{stories: &fakeStoryReader{err: database.ErrNotFound}, scenes: &fakeSceneLister{}}

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/stories/"+id.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	h.GetStory(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetStory_Success(t *testing.T) {
	id := uuid.New()
	story := &models.Story{ID: id, Title: "A Story", Status: models.StatusCompleted}
	scenes := []*models.Scene{
		{ID: uuid.New(), StoryID: id, Sequence: 1, ImageURL: "img.png", AudioURL: "aud.wav"},
	}
	h := &Handler{stories: &fakeStoryReader{story: story}, scenes: &fakeSceneLister{scenes: scenes}}

	req := httptest.NewRequest(http.MethodGet, "/v1/stories/"+id.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()

	h.GetStory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.StoryStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Story.ID != id {
		t.Errorf("story id %s != expected %s", resp.Story.ID, id)
	}
	if len(resp.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(resp.Scenes))
	}
}
