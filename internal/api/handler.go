// Package api implements the thin HTTP ingress in front of the Dispatcher:
// submit a story, and read back its status and scenes. It deliberately does
// not implement request auth, rate limiting, or routing policy; those sit
// in front of this service in production and are out of scope here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/models"
)

// submitter is the subset of Dispatcher used by Handler (for testability).
type submitter interface {
	Submit(ctx context.Context, req models.SubmitStoryRequest) (*models.SubmitStoryResponse, error)
}

// storyReader is the subset of database.StoryRepository used by Handler.
type storyReader interface {
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
}

// sceneLister is the subset of database.SceneRepository used by Handler.
type sceneLister interface {
	ListScenes(ctx context.Context, storyID uuid.UUID) ([]*models.Scene, error)
}

// Handler contains the story HTTP handlers.
type Handler struct {
	dispatcher submitter
	stories    storyReader
	scenes     sceneLister
}

// NewHandler creates a new Handler.
func NewHandler(dispatcher submitter, stories *database.StoryRepository, scenes *database.SceneRepository) *Handler {
	return &Handler{dispatcher: dispatcher, stories: stories, scenes: scenes}
}

// SubmitStory handles POST /v1/stories
func (h *Handler) SubmitStory(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.dispatcher.Submit(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("failed to submit story")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// GetStory handles GET /v1/stories/{id} and GET /v1/stories/{id}/status; both
// routes return the story together with its scenes.
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	storyID, err := storyIDFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid story id")
		return
	}

	story, err := h.stories.GetStory(r.Context(), storyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "story not found")
			return
		}
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("failed to get story")
		writeJSONError(w, http.StatusInternalServerError, "failed to get story")
		return
	}

	scenes, err := h.scenes.ListScenes(r.Context(), storyID)
	if err != nil {
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("failed to list scenes")
		writeJSONError(w, http.StatusInternalServerError, "failed to list scenes")
		return
	}

	sceneVals := make([]models.Scene, 0, len(scenes))
	for _, s := range scenes {
		sceneVals = append(sceneVals, *s)
	}

	writeJSON(w, http.StatusOK, models.StoryStatusResponse{Story: *story, Scenes: sceneVals})
}

func storyIDFromPath(r *http.Request) (uuid.UUID, error) {
	vars := mux.Vars(r)
	return uuid.Parse(vars["id"])
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
