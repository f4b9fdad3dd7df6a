package emotion

import (
	"impactlens/internal/domain/analysis"
)

// Aggregator combines per-item emotion vectors into a topic profile.
type Aggregator struct{}

// NewAggregator creates a new emotion aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the per-dimension arithmetic mean over the items
// that carried an emotion vector. Items without emotion data are not
// part of the denominator. With no contributing items the profile is
// the all-zero vector with ItemCount 0.
func (a *Aggregator) Aggregate(topicID string, vectors []analysis.EmotionVector) analysis.TopicEmotionProfile {
	profile := analysis.TopicEmotionProfile{TopicID: topicID}
	if len(vectors) == 0 {
		return profile
	}

	for _, v := range vectors {
		profile.Emotions.Add(v)
	}
	profile.Emotions.Scale(1 / float64(len(vectors)))
	profile.ItemCount = len(vectors)
	return profile
}
