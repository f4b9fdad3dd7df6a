package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactlens/internal/domain/analysis"
)

func verdict(model string, label analysis.Label, confidence float64) analysis.SentimentVerdict {
	return analysis.SentimentVerdict{
		ItemID:     "item-1",
		ModelID:    model,
		Label:      label,
		Confidence: confidence,
	}
}

func TestFuseMajorityPositiveWithDissent(t *testing.T) {
	e := NewEngine(Config{})

	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("lexicon", analysis.LabelPositive, 0.9),
		verdict("generative", analysis.LabelPositive, 0.8),
		verdict("aux", analysis.LabelNegative, 0.3),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelPositive, fused.Label)
	assert.False(t, fused.Agreement)
	assert.InDelta(t, 0.85, fused.Confidence, 1e-9)
	assert.Len(t, fused.ContributingModels, 3)
}

func TestFuseNearTieBecomesMixed(t *testing.T) {
	e := NewEngine(Config{})

	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("lexicon", analysis.LabelPositive, 0.5),
		verdict("generative", analysis.LabelNegative, 0.49),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelMixed, fused.Label)
	assert.False(t, fused.Agreement)
}

func TestFuseFullAgreement(t *testing.T) {
	e := NewEngine(Config{})

	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("lexicon", analysis.LabelNegative, 0.7),
		verdict("generative", analysis.LabelNegative, 0.6),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelNegative, fused.Label)
	assert.True(t, fused.Agreement)
	assert.InDelta(t, 1.0, fused.Confidence, 1e-9)
}

func TestFuseSingleVerdict(t *testing.T) {
	e := NewEngine(Config{})

	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("generative", analysis.LabelNeutral, 0.4),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelNeutral, fused.Label)
	assert.True(t, fused.Agreement)
	assert.InDelta(t, 1.0, fused.Confidence, 1e-9)
	require.Len(t, fused.ContributingModels, 1)
}

func TestFuseExactTieOverriddenToMixed(t *testing.T) {
	e := NewEngine(Config{DisagreementMargin: 0.01})

	// A dead tie between differing labels always falls under the margin.
	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("lexicon", analysis.LabelPositive, 0.5),
		verdict("generative", analysis.LabelNegative, 0.5),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelMixed, fused.Label)
}

func TestFuseAllMixedVerdicts(t *testing.T) {
	e := NewEngine(Config{})

	fused, err := e.Fuse([]analysis.SentimentVerdict{
		verdict("lexicon", analysis.LabelMixed, 0.6),
		verdict("generative", analysis.LabelMixed, 0.8),
	})
	require.NoError(t, err)

	assert.Equal(t, analysis.LabelMixed, fused.Label)
	assert.True(t, fused.Agreement)
}

func TestFuseEmptyInputIsError(t *testing.T) {
	e := NewEngine(Config{})

	_, err := e.Fuse(nil)
	assert.Error(t, err)
}
