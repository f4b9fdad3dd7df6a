package analysis

import (
	"time"
)

// Label is a sentiment classification produced by a model or by fusion.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelMixed    Label = "mixed"
	// LabelUnknown is assigned to items for which every model failed.
	LabelUnknown Label = "unknown"
)

// EmotionVector is the fixed, closed set of emotion dimensions. Values
// are intensities in [0,100]. A closed struct rather than a map keeps
// aggregation total over every dimension.
type EmotionVector struct {
	Joy      float64 `json:"joy"`
	Sadness  float64 `json:"sadness"`
	Anger    float64 `json:"anger"`
	Fear     float64 `json:"fear"`
	Surprise float64 `json:"surprise"`
	Disgust  float64 `json:"disgust"`
}

// Add accumulates another vector into this one.
func (v *EmotionVector) Add(o EmotionVector) {
	v.Joy += o.Joy
	v.Sadness += o.Sadness
	v.Anger += o.Anger
	v.Fear += o.Fear
	v.Surprise += o.Surprise
	v.Disgust += o.Disgust
}

// Scale multiplies every dimension by f.
func (v *EmotionVector) Scale(f float64) {
	v.Joy *= f
	v.Sadness *= f
	v.Anger *= f
	v.Fear *= f
	v.Surprise *= f
	v.Disgust *= f
}

// SentimentVerdict is one model's judgment of one item.
type SentimentVerdict struct {
	ItemID        string
	ModelID       string
	Label         Label
	Confidence    float64
	Emotions      *EmotionVector
	Justification string
}

// FusedSentiment is the single resolved sentiment for an item. Items
// where every model failed carry label unknown with zero confidence and
// no contributing models; they are excluded from scoring.
type FusedSentiment struct {
	ItemID             string
	Label              Label
	Confidence         float64
	Agreement          bool
	ContributingModels []string
}

// ImpactScore is the composite ranking for one item. Every component is
// normalized to [0,1]; Composite is in [0,5].
type ImpactScore struct {
	ItemID             string
	Reach              float64
	Engagement         float64
	SentimentComponent float64
	Quality            float64
	RecencyBoost       float64
	Composite          float64
}

// TopicEmotionProfile is the per-dimension mean over all items that
// carried an emotion vector. ItemCount counts only contributing items.
type TopicEmotionProfile struct {
	TopicID   string
	Emotions  EmotionVector
	ItemCount int
}

// GraphNode is one circle in the similarity visualization.
type GraphNode struct {
	ItemID string  `json:"item_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// EdgeReason tags why two nodes are connected.
type EdgeReason string

const (
	EdgeSameSentiment EdgeReason = "same_sentiment"
	EdgeSimilarImpact EdgeReason = "similar_impact"
)

// GraphEdge connects two existing graph nodes.
type GraphEdge struct {
	SourceID string     `json:"source_id"`
	TargetID string     `json:"target_id"`
	Reason   EdgeReason `json:"reason"`
}

// SynthesisRecord is a memoized narrative summary for a topic. Stale
// means newer source items exist than the narrative was built from; the
// narrative itself is retained until a replacement succeeds.
type SynthesisRecord struct {
	TopicID         string
	Narrative       string
	GeneratedAt     time.Time
	SourceItemCount int
	Stale           bool
}

// ItemDigest is the per-item summary handed to the synthesizer.
type ItemDigest struct {
	Title     string  `json:"title"`
	Kind      string  `json:"kind"`
	Label     Label   `json:"sentiment"`
	Composite float64 `json:"impact_score"`
	Views     int64   `json:"views"`
}

// SynthesisInput is the settled snapshot a narrative is generated from.
type SynthesisInput struct {
	TopicID   string
	TopicName string
	Items     []ItemDigest
}
