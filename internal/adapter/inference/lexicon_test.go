package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

func TestLexiconPositiveText(t *testing.T) {
	m := NewLexiconModel()
	v, err := m.Analyze(context.Background(), "An amazing breakthrough, great progress and impressive gains", content.KindArticle)
	require.NoError(t, err)
	assert.Equal(t, analysis.LabelPositive, v.Label)
	assert.Greater(t, v.Confidence, 0.5)
}

func TestLexiconNegativeText(t *testing.T) {
	m := NewLexiconModel()
	v, err := m.Analyze(context.Background(), "A terrible crisis: the collapse caused huge losses and fear", content.KindArticle)
	require.NoError(t, err)
	assert.Equal(t, analysis.LabelNegative, v.Label)
}

func TestLexiconNeutralWithoutSentimentWords(t *testing.T) {
	m := NewLexiconModel()
	v, err := m.Analyze(context.Background(), "The committee met on Tuesday to review the quarterly schedule", content.KindArticle)
	require.NoError(t, err)
	assert.Equal(t, analysis.LabelNeutral, v.Label)
	assert.InDelta(t, 0.5, v.Confidence, 0.001)
}

func TestLexiconNegationFlips(t *testing.T) {
	m := NewLexiconModel()

	pos, err := m.Analyze(context.Background(), "this is good", content.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, analysis.LabelPositive, pos.Label)

	neg, err := m.Analyze(context.Background(), "this is not good", content.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, analysis.LabelNegative, neg.Label)
}

func TestLexiconBoosterRaisesConfidence(t *testing.T) {
	m := NewLexiconModel()

	plain, err := m.Analyze(context.Background(), "a good result", content.KindArticle)
	require.NoError(t, err)
	boosted, err := m.Analyze(context.Background(), "an extremely good result", content.KindArticle)
	require.NoError(t, err)

	assert.Greater(t, boosted.Confidence, plain.Confidence)
}

func TestLexiconNoEmotionsOrJustification(t *testing.T) {
	m := NewLexiconModel()
	v, err := m.Analyze(context.Background(), "great", content.KindArticle)
	require.NoError(t, err)
	assert.Nil(t, v.Emotions)
	assert.Empty(t, v.Justification)
}

func TestEmotionClampKeepsFullScale(t *testing.T) {
	assert.Equal(t, 87.0, clampEmotion(87))
	assert.Equal(t, 100.0, clampEmotion(250))
	assert.Equal(t, 0.0, clampEmotion(-3))
}

func TestCleanJSONResponse(t *testing.T) {
	fenced := "```json\n{\"label\": \"positive\"}\n```"
	assert.Equal(t, `{"label": "positive"}`, cleanJSONResponse(fenced))

	prose := "Here is the analysis: {\"label\": \"mixed\"} hope that helps"
	assert.Equal(t, `{"label": "mixed"}`, cleanJSONResponse(prose))
}
