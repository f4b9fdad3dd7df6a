// internal/server/handlers/run.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"impactlens/internal/adapter/storage"
	"impactlens/internal/domain/run"
)

// RunService drives pipeline runs
type RunService interface {
	Start(ctx context.Context, topic string) (string, error)
	Cancel(runID string) error
	GetRun(ctx context.Context, runID string) (*run.PipelineRun, error)
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	service RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunService) *RunHandler {
	return &RunHandler{
		service: service,
	}
}

// StartRun launches a new analysis run for a topic
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		respondWithError(w, http.StatusBadRequest, "Missing topic", nil)
		return
	}

	runID, err := h.service.Start(r.Context(), req.Topic)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to start run", err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
	})
}

// GetRun returns the current state of a run
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing run ID", nil)
		return
	}

	pr, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			respondWithError(w, http.StatusNotFound, "Run not found", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to get run", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, runResponse(pr))
}

// CancelRun requests cancellation of an in-flight run
func (h *RunHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing run ID", nil)
		return
	}

	if err := h.service.Cancel(id); err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			respondWithError(w, http.StatusNotFound, "Run not found", nil)
			return
		}
		respondWithError(w, http.StatusConflict, "Run cannot be cancelled", err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": "cancel_requested",
	})
}

func runResponse(pr *run.PipelineRun) map[string]interface{} {
	resp := map[string]interface{}{
		"run_id":        pr.ID,
		"topic_id":      pr.TopicID,
		"topic":         pr.Topic,
		"state":         pr.State,
		"stage_history": pr.StageHistory,
		"started_at":    pr.StartedAt,
	}
	if pr.FinishedAt != nil {
		resp["finished_at"] = pr.FinishedAt
	}
	if pr.Error != "" {
		resp["error"] = pr.Error
	}
	if pr.State == run.StageComplete {
		resp["stats"] = pr.Stats
	}
	return resp
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil && code < 500 {
		response["detail"] = err.Error()
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
