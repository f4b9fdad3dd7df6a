// internal/server/handlers/synthesis.go

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/run"
)

// DigestSource serves the item summaries fed to synthesis
type DigestSource interface {
	GetDigests(ctx context.Context, topicID string) ([]analysis.ItemDigest, error)
}

// RunHistorySource resolves a topic's display name from its runs
type RunHistorySource interface {
	ListRunsForTopic(ctx context.Context, topicID string, limit int) ([]run.PipelineRun, error)
}

// NarrativeCache serves cached or freshly generated narratives
type NarrativeCache interface {
	GetOrGenerate(ctx context.Context, input analysis.SynthesisInput, forceRefresh bool) (analysis.SynthesisRecord, error)
}

// SynthesisHandler handles narrative synthesis HTTP requests
type SynthesisHandler struct {
	cache   NarrativeCache
	digests DigestSource
	runs    RunHistorySource
}

// NewSynthesisHandler creates a new synthesis handler
func NewSynthesisHandler(cache NarrativeCache, digests DigestSource, runs RunHistorySource) *SynthesisHandler {
	return &SynthesisHandler{
		cache:   cache,
		digests: digests,
		runs:    runs,
	}
}

// GetSynthesis returns the topic narrative, generating or refreshing it
// when needed. A stale record whose refresh fails is still served, with
// degraded set so clients can flag it.
func (h *SynthesisHandler) GetSynthesis(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "id")
	if topicID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing topic ID", nil)
		return
	}
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	digests, err := h.digests.GetDigests(r.Context(), topicID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load topic items", err)
		return
	}
	if len(digests) == 0 {
		respondWithError(w, http.StatusNotFound, "No analyzed items for topic", nil)
		return
	}

	topicName := topicID
	if runs, err := h.runs.ListRunsForTopic(r.Context(), topicID, 1); err == nil && len(runs) > 0 {
		topicName = runs[0].Topic
	}

	record, err := h.cache.GetOrGenerate(r.Context(), analysis.SynthesisInput{
		TopicID:   topicID,
		TopicName: topicName,
		Items:     digests,
	}, forceRefresh)

	degraded := false
	if err != nil {
		var genErr *analysis.SynthesisGenerationError
		if errors.As(err, &genErr) && record.Narrative != "" {
			degraded = true
		} else {
			respondWithError(w, http.StatusBadGateway, "Failed to generate synthesis", err)
			return
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"topic_id":          record.TopicID,
		"narrative":         record.Narrative,
		"generated_at":      record.GeneratedAt,
		"source_item_count": record.SourceItemCount,
		"stale":             record.Stale,
		"degraded":          degraded,
	})
}
