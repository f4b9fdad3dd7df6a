// internal/adapter/inference/lexicon.go

package inference

import (
	"context"
	"math"
	"strings"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

// valence maps sentiment-bearing words to signed intensities. The table
// is a curated subset tuned for news and video commentary; scores follow
// the usual -4..4 lexicon convention.
var valence = map[string]float64{
	"good": 1.9, "great": 3.1, "excellent": 3.2, "amazing": 2.8,
	"awesome": 3.1, "fantastic": 3.0, "wonderful": 2.7, "best": 3.2,
	"love": 3.2, "loved": 2.9, "like": 1.5, "enjoy": 2.2,
	"success": 2.7, "successful": 2.8, "win": 2.8, "winning": 2.4,
	"breakthrough": 2.6, "improve": 1.9, "improved": 2.1, "growth": 2.0,
	"strong": 2.3, "positive": 2.3, "promising": 2.0, "hope": 1.9,
	"hopeful": 2.3, "optimistic": 2.4, "benefit": 1.9, "beneficial": 2.1,
	"innovative": 2.1, "impressive": 2.5, "progress": 1.8, "safe": 1.8,
	"gain": 1.7, "gains": 1.7, "record": 1.2, "boost": 1.8,
	"happy": 2.7, "glad": 2.0, "exciting": 2.2, "excited": 2.4,

	"bad": -2.5, "terrible": -3.1, "horrible": -2.9, "awful": -3.0,
	"worst": -3.1, "hate": -2.7, "hated": -2.9, "dislike": -1.6,
	"fail": -2.5, "failed": -2.3, "failure": -2.4, "failing": -2.2,
	"crisis": -3.1, "disaster": -3.1, "catastrophe": -3.4, "collapse": -2.7,
	"crash": -2.6, "decline": -1.9, "drop": -1.2, "loss": -1.3,
	"losses": -1.3, "weak": -1.9, "negative": -2.3, "risk": -1.1,
	"risky": -1.6, "danger": -2.4, "dangerous": -2.6, "threat": -2.1,
	"fear": -2.2, "afraid": -2.2, "worried": -2.0, "worry": -1.9,
	"concern": -1.2, "concerns": -1.2, "problem": -1.7, "problems": -1.7,
	"scandal": -2.4, "fraud": -3.0, "lawsuit": -1.6, "death": -2.9,
	"dead": -2.6, "killed": -3.0, "war": -2.9, "attack": -2.2,
	"angry": -2.3, "outrage": -2.5, "sad": -2.1, "tragic": -2.9,
}

// boosters scale the next sentiment word up or down.
var boosters = map[string]float64{
	"very": 0.293, "really": 0.293, "extremely": 0.4, "incredibly": 0.4,
	"hugely": 0.35, "slightly": -0.293, "somewhat": -0.2, "barely": -0.35,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true,
	"nobody": true, "none": true, "cannot": true, "without": true,
	"isnt": true, "wasnt": true, "dont": true, "didnt": true,
	"doesnt": true, "wont": true, "cant": true,
}

// normalization constant for the compound score; keeps single strong
// words from saturating the scale.
const compoundAlpha = 15.0

// Sentiment labels flip outside this compound band.
const neutralBand = 0.05

// LexiconModel is the deterministic rule-based sentiment model. It runs
// locally with no external calls, so it always contributes a verdict
// even when generative inference is degraded.
type LexiconModel struct{}

// NewLexiconModel creates a new lexicon sentiment model
func NewLexiconModel() *LexiconModel {
	return &LexiconModel{}
}

func (m *LexiconModel) ModelID() string { return "lexicon" }

// Analyze scores the text against the valence table. Negations flip
// and boosters scale the following sentiment word.
func (m *LexiconModel) Analyze(ctx context.Context, text string, kind content.Kind) (analysis.SentimentVerdict, error) {
	tokens := tokenize(text)

	var sum float64
	negate := false
	boost := 0.0
	for _, tok := range tokens {
		if negations[tok] {
			negate = true
			continue
		}
		if b, ok := boosters[tok]; ok {
			boost += b
			continue
		}

		score, ok := valence[tok]
		if !ok {
			negate = false
			boost = 0
			continue
		}

		if score > 0 {
			score += boost
		} else {
			score -= boost
		}
		if negate {
			score = -score * 0.74
		}
		sum += score
		negate = false
		boost = 0
	}

	compound := sum / math.Sqrt(sum*sum+compoundAlpha)

	label := analysis.LabelNeutral
	switch {
	case compound >= neutralBand:
		label = analysis.LabelPositive
	case compound <= -neutralBand:
		label = analysis.LabelNegative
	}

	return analysis.SentimentVerdict{
		Label:      label,
		Confidence: 0.5 + math.Abs(compound)/2,
	}, nil
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	// Contractions collapse so "isn't" matches the negation table.
	text = strings.ReplaceAll(text, "'", "")
	text = strings.ReplaceAll(text, "’", "")
	return strings.FieldsFunc(text, func(r rune) bool {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= '0' && r <= '9' {
			return false
		}
		return true
	})
}
