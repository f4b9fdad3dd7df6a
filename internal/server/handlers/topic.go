// internal/server/handlers/topic.go

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"impactlens/internal/adapter/storage"
	"impactlens/internal/domain/analysis"
)

// ScoredItemSource serves a topic's scored items
type ScoredItemSource interface {
	GetScoredItems(ctx context.Context, topicID string) ([]storage.ScoredItem, error)
}

// ArtifactSource serves topic-level aggregates
type ArtifactSource interface {
	GetProfile(ctx context.Context, topicID string) (*analysis.TopicEmotionProfile, error)
	GetGraph(ctx context.Context, topicID string) ([]analysis.GraphNode, []analysis.GraphEdge, error)
}

// TopicHandler handles topic artifact HTTP requests
type TopicHandler struct {
	items     ScoredItemSource
	artifacts ArtifactSource
}

// NewTopicHandler creates a new topic handler
func NewTopicHandler(items ScoredItemSource, artifacts ArtifactSource) *TopicHandler {
	return &TopicHandler{
		items:     items,
		artifacts: artifacts,
	}
}

// GetScores returns a topic's items ranked by impact
func (h *TopicHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "id")
	if topicID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing topic ID", nil)
		return
	}

	scored, err := h.items.GetScoredItems(r.Context(), topicID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get scores", err)
		return
	}

	items := make([]map[string]interface{}, 0, len(scored))
	for _, si := range scored {
		items = append(items, map[string]interface{}{
			"item_id":      si.Item.ID,
			"kind":         si.Item.Kind,
			"title":        si.Item.Title,
			"url":          si.Item.URL,
			"provider":     si.Item.Provider,
			"label":        si.Label,
			"published_at": si.Item.PublishedAt,
			"engagement": map[string]int64{
				"views":    si.Item.Engagement.Views,
				"likes":    si.Item.Engagement.Likes,
				"comments": si.Item.Engagement.Comments,
			},
			"components": map[string]float64{
				"reach":      si.Score.Reach,
				"engagement": si.Score.Engagement,
				"sentiment":  si.Score.SentimentComponent,
				"quality":    si.Score.Quality,
				"recency":    si.Score.RecencyBoost,
			},
			"composite": si.Score.Composite,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"topic_id": topicID,
		"items":    items,
	})
}

// GetEmotions returns a topic's aggregated emotion profile
func (h *TopicHandler) GetEmotions(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "id")
	if topicID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing topic ID", nil)
		return
	}

	profile, err := h.artifacts.GetProfile(r.Context(), topicID)
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			respondWithError(w, http.StatusNotFound, "No emotion profile for topic", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to get emotion profile", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"topic_id":   profile.TopicID,
		"item_count": profile.ItemCount,
		"emotions": map[string]float64{
			"joy":      profile.Emotions.Joy,
			"sadness":  profile.Emotions.Sadness,
			"anger":    profile.Emotions.Anger,
			"fear":     profile.Emotions.Fear,
			"surprise": profile.Emotions.Surprise,
			"disgust":  profile.Emotions.Disgust,
		},
	})
}

// GetGraph returns a topic's visualization graph
func (h *TopicHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "id")
	if topicID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing topic ID", nil)
		return
	}

	nodes, edges, err := h.artifacts.GetGraph(r.Context(), topicID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get graph", err)
		return
	}

	nodeList := make([]map[string]interface{}, 0, len(nodes))
	for _, n := range nodes {
		nodeList = append(nodeList, map[string]interface{}{
			"item_id": n.ItemID,
			"x":       n.X,
			"y":       n.Y,
			"radius":  n.Radius,
		})
	}
	edgeList := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		edgeList = append(edgeList, map[string]interface{}{
			"source": e.SourceID,
			"target": e.TargetID,
			"reason": e.Reason,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"topic_id": topicID,
		"nodes":    nodeList,
		"edges":    edgeList,
	})
}
