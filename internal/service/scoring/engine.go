package scoring

import (
	"fmt"
	"math"
	"time"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

// Weights are the relative shares of the five impact components. They
// must sum to 1.
type Weights struct {
	Reach      float64
	Engagement float64
	Sentiment  float64
	Quality    float64
	Recency    float64
}

// DefaultWeights mirror the production tuning: engagement dominates,
// reach second, then sentiment, quality and recency.
func DefaultWeights() Weights {
	return Weights{
		Reach:      0.25,
		Engagement: 0.30,
		Sentiment:  0.20,
		Quality:    0.15,
		Recency:    0.10,
	}
}

// Validate checks the weights sum to 1 within a small tolerance.
func (w Weights) Validate() error {
	sum := w.Reach + w.Engagement + w.Sentiment + w.Quality + w.Recency
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Config contains configuration for the scoring engine.
type Config struct {
	Weights Weights
	// RecencyFloor is the minimum recency boost for the oldest item in a
	// run; it keeps old items contributing without ever reaching 0.
	RecencyFloor float64
}

// DefaultRecencyFloor keeps the oldest item in a batch at 30% boost.
const DefaultRecencyFloor = 0.3

// Engine computes composite impact scores. Reach and engagement are
// normalized against the maxima observed in the same run, so scores are
// only computed over a settled batch, never an in-flight one.
type Engine struct {
	config Config
}

// NewEngine creates a new scoring engine.
func NewEngine(config Config) (*Engine, error) {
	if config.Weights == (Weights{}) {
		config.Weights = DefaultWeights()
	}
	if err := config.Weights.Validate(); err != nil {
		return nil, err
	}
	if config.RecencyFloor <= 0 || config.RecencyFloor > 1 {
		config.RecencyFloor = DefaultRecencyFloor
	}
	return &Engine{config: config}, nil
}

// Input is one settled item with its fused sentiment.
type Input struct {
	Item  content.SourceItem
	Fused analysis.FusedSentiment
	// Justified is true when at least one contributing verdict carried a
	// justification text.
	Justified bool
}

// BatchContext holds the run-level normalization maxima and date range.
type BatchContext struct {
	MaxLogReach       float64
	MaxEngagementRate float64
	Oldest            time.Time
	Newest            time.Time
}

// BatchContextFor derives the normalization context from a settled batch.
func BatchContextFor(inputs []Input) BatchContext {
	var bc BatchContext
	for _, in := range inputs {
		if lr := logReach(in.Item.Engagement.Views); lr > bc.MaxLogReach {
			bc.MaxLogReach = lr
		}
		if er := engagementRate(in.Item.Engagement); er > bc.MaxEngagementRate {
			bc.MaxEngagementRate = er
		}
		pub := in.Item.PublishedAt
		if pub.IsZero() {
			continue
		}
		if bc.Oldest.IsZero() || pub.Before(bc.Oldest) {
			bc.Oldest = pub
		}
		if bc.Newest.IsZero() || pub.After(bc.Newest) {
			bc.Newest = pub
		}
	}
	return bc
}

// ScoreBatch scores every item in a settled batch.
func (e *Engine) ScoreBatch(inputs []Input, now time.Time) []analysis.ImpactScore {
	bc := BatchContextFor(inputs)
	scores := make([]analysis.ImpactScore, 0, len(inputs))
	for _, in := range inputs {
		scores = append(scores, e.Score(in, bc, now))
	}
	return scores
}

// Score computes the composite impact for one item against its batch
// context. Every component is in [0,1]; the composite is in [0,5].
func (e *Engine) Score(in Input, bc BatchContext, now time.Time) analysis.ImpactScore {
	reach := 0.0
	if bc.MaxLogReach > 0 {
		reach = logReach(in.Item.Engagement.Views) / bc.MaxLogReach
	}

	engagement := 0.0
	if bc.MaxEngagementRate > 0 {
		engagement = engagementRate(in.Item.Engagement) / bc.MaxEngagementRate
	}

	sentiment := sentimentComponent(in.Fused)
	quality := e.qualityComponent(in)
	recency := e.recencyBoost(in.Item.PublishedAt, bc)

	w := e.config.Weights
	composite := 5 * (w.Reach*reach +
		w.Engagement*engagement +
		w.Sentiment*sentiment +
		w.Quality*quality +
		w.Recency*recency)

	return analysis.ImpactScore{
		ItemID:             in.Item.ID,
		Reach:              reach,
		Engagement:         engagement,
		SentimentComponent: sentiment,
		Quality:            quality,
		RecencyBoost:       recency,
		Composite:          clamp(composite, 0, 5),
	}
}

// logReach compresses raw view counts; 1k, 100k and 10M views land a
// log step apart instead of four orders of magnitude.
func logReach(views int64) float64 {
	if views <= 0 {
		return 0
	}
	return math.Log10(float64(views) + 1)
}

func engagementRate(e content.Engagement) float64 {
	views := e.Views
	if views < 1 {
		views = 1
	}
	return float64(e.Likes+e.Comments) / float64(views)
}

// sentimentComponent maps (label, confidence) monotonically into [0,1]:
// positive confidence pushes toward 1, negative toward 0, neutral and
// mixed sit at the center.
func sentimentComponent(f analysis.FusedSentiment) float64 {
	switch f.Label {
	case analysis.LabelPositive:
		return clamp(0.5+f.Confidence/2, 0, 1)
	case analysis.LabelNegative:
		return clamp(0.5-f.Confidence/2, 0, 1)
	default:
		return 0.5
	}
}

// qualityComponent rewards model agreement and justification presence,
// and discounts sole-model fallbacks.
func (e *Engine) qualityComponent(in Input) float64 {
	q := 0.5
	if in.Fused.Agreement && len(in.Fused.ContributingModels) > 1 {
		q += 0.3
	}
	if len(in.Fused.ContributingModels) < 2 {
		q -= 0.2
	}
	if in.Justified {
		q += 0.2
	}
	return clamp(q, 0, 1)
}

// recencyBoost decays with item age relative to the batch date range.
// The newest item gets 1.0 and the oldest the configured floor; items
// never decay to 0 inside a run.
func (e *Engine) recencyBoost(published time.Time, bc BatchContext) float64 {
	if published.IsZero() || bc.Newest.IsZero() {
		return e.config.RecencyFloor
	}
	span := bc.Newest.Sub(bc.Oldest)
	if span <= 0 {
		return 1.0
	}
	ageFrac := float64(bc.Newest.Sub(published)) / float64(span)
	ageFrac = clamp(ageFrac, 0, 1)
	return e.config.RecencyFloor + (1-e.config.RecencyFloor)*(1-ageFrac)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
