package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

func scoredInput(id string, views, likes, comments int64, published time.Time, fused analysis.FusedSentiment) Input {
	fused.ItemID = id
	return Input{
		Item: content.SourceItem{
			ID:   id,
			Kind: content.KindVideo,
			Engagement: content.Engagement{
				Views:    views,
				Likes:    likes,
				Comments: comments,
			},
			PublishedAt: published,
		},
		Fused:     fused,
		Justified: true,
	}
}

func TestScoreBatchTopItemNearCeiling(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	top := scoredInput("top", 1_000_000, 50_000, 2_000, now, analysis.FusedSentiment{
		Label:              analysis.LabelPositive,
		Confidence:         0.9,
		Agreement:          true,
		ContributingModels: []string{"generative", "lexicon"},
	})
	other := scoredInput("other", 10_000, 100, 5, now.AddDate(0, 0, -60), analysis.FusedSentiment{
		Label:              analysis.LabelNeutral,
		Confidence:         0.5,
		Agreement:          true,
		ContributingModels: []string{"generative", "lexicon"},
	})

	scores := e.ScoreBatch([]Input{top, other}, now)
	require.Len(t, scores, 2)

	byID := map[string]analysis.ImpactScore{}
	for _, s := range scores {
		byID[s.ItemID] = s
	}

	assert.InDelta(t, 1.0, byID["top"].Reach, 1e-9)
	assert.InDelta(t, 1.0, byID["top"].Engagement, 1e-9)
	assert.InDelta(t, 1.0, byID["top"].RecencyBoost, 1e-9)
	assert.Greater(t, byID["top"].Composite, 4.5)
	assert.Greater(t, byID["top"].Composite, byID["other"].Composite)
}

func TestScoreCompositeStaysInRange(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	now := time.Now()
	inputs := []Input{
		scoredInput("a", 0, 0, 0, time.Time{}, analysis.FusedSentiment{
			Label: analysis.LabelNegative, Confidence: 1.0,
			ContributingModels: []string{"lexicon"},
		}),
		scoredInput("b", 1, 1_000_000, 1_000_000, now, analysis.FusedSentiment{
			Label: analysis.LabelPositive, Confidence: 1.0, Agreement: true,
			ContributingModels: []string{"generative", "lexicon"},
		}),
	}

	for _, s := range e.ScoreBatch(inputs, now) {
		assert.GreaterOrEqual(t, s.Composite, 0.0)
		assert.LessOrEqual(t, s.Composite, 5.0)
		assert.GreaterOrEqual(t, s.RecencyBoost, DefaultRecencyFloor)
		assert.LessOrEqual(t, s.RecencyBoost, 1.0)
	}
}

func TestSentimentComponentMonotone(t *testing.T) {
	pos := sentimentComponent(analysis.FusedSentiment{Label: analysis.LabelPositive, Confidence: 0.9})
	neg := sentimentComponent(analysis.FusedSentiment{Label: analysis.LabelNegative, Confidence: 0.9})
	neu := sentimentComponent(analysis.FusedSentiment{Label: analysis.LabelNeutral, Confidence: 0.9})
	mixed := sentimentComponent(analysis.FusedSentiment{Label: analysis.LabelMixed, Confidence: 0.9})

	assert.Greater(t, pos, neu)
	assert.Less(t, neg, neu)
	assert.Equal(t, 0.5, neu)
	assert.Equal(t, 0.5, mixed)
}

func TestQualityDiscountsSoleModel(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	solo := e.qualityComponent(Input{Fused: analysis.FusedSentiment{
		Agreement:          true,
		ContributingModels: []string{"lexicon"},
	}})
	both := e.qualityComponent(Input{Fused: analysis.FusedSentiment{
		Agreement:          true,
		ContributingModels: []string{"generative", "lexicon"},
	}})

	assert.Less(t, solo, both)
}

func TestRecencySameDayBatchGetsFullBoost(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)

	now := time.Now()
	in := scoredInput("only", 100, 10, 1, now, analysis.FusedSentiment{
		Label: analysis.LabelNeutral, Confidence: 0.5,
		ContributingModels: []string{"lexicon"},
	})

	scores := e.ScoreBatch([]Input{in}, now)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores[0].RecencyBoost, 1e-9)
}

func TestWeightsMustSumToOne(t *testing.T) {
	_, err := NewEngine(Config{Weights: Weights{Reach: 0.5, Engagement: 0.5, Sentiment: 0.5}})
	assert.Error(t, err)
}
