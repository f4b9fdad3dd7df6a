package fusion

import (
	"fmt"
	"sort"

	"impactlens/internal/domain/analysis"
)

// DefaultDisagreementMargin is the fraction of total contributing weight
// below which a contested vote is overridden to mixed.
const DefaultDisagreementMargin = 0.15

// Config contains configuration for the fusion engine.
type Config struct {
	// DisagreementMargin is relative to the total weight of all
	// contributing verdicts.
	DisagreementMargin float64
}

// Engine combines per-model sentiment verdicts for one item into a
// single fused verdict with an agreement flag.
type Engine struct {
	config Config
}

// NewEngine creates a new fusion engine.
func NewEngine(config Config) *Engine {
	if config.DisagreementMargin <= 0 {
		config.DisagreementMargin = DefaultDisagreementMargin
	}
	return &Engine{config: config}
}

// votedLabels are the labels that accumulate weight directly. Mixed
// verdicts contribute to total weight but not to any single bucket.
var votedLabels = []analysis.Label{
	analysis.LabelPositive,
	analysis.LabelNegative,
	analysis.LabelNeutral,
}

// Fuse resolves 1..N verdicts from distinct models into one fused
// sentiment. Calling it with no verdicts is a caller bug.
func (e *Engine) Fuse(verdicts []analysis.SentimentVerdict) (analysis.FusedSentiment, error) {
	if len(verdicts) == 0 {
		return analysis.FusedSentiment{}, fmt.Errorf("fuse requires at least one verdict")
	}

	scores := make(map[analysis.Label]float64, len(votedLabels))
	var totalWeight float64
	models := make([]string, 0, len(verdicts))

	for _, v := range verdicts {
		totalWeight += v.Confidence
		models = append(models, v.ModelID)
		for _, l := range votedLabels {
			if v.Label == l {
				scores[l] += v.Confidence
				break
			}
		}
	}
	sort.Strings(models)

	// Deterministic winner: highest accumulated weight, ties broken in
	// the fixed order positive > negative > neutral.
	winner := votedLabels[0]
	for _, l := range votedLabels[1:] {
		if scores[l] > scores[winner] {
			winner = l
		}
	}

	label := winner
	if scores[winner] == 0 {
		// Every verdict was mixed; nothing accumulated.
		label = analysis.LabelMixed
	} else if labelsDiffer(verdicts) {
		margin := scores[winner] - secondBest(scores, winner)
		if margin < e.config.DisagreementMargin*totalWeight {
			label = analysis.LabelMixed
		}
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = scores[winner] / totalWeight
	}

	fused := analysis.FusedSentiment{
		ItemID:             verdicts[0].ItemID,
		Label:              label,
		Confidence:         confidence,
		ContributingModels: models,
	}
	fused.Agreement = allAgree(verdicts, label)
	return fused, nil
}

func labelsDiffer(verdicts []analysis.SentimentVerdict) bool {
	for _, v := range verdicts[1:] {
		if v.Label != verdicts[0].Label {
			return true
		}
	}
	return false
}

func secondBest(scores map[analysis.Label]float64, winner analysis.Label) float64 {
	best := 0.0
	for _, l := range votedLabels {
		if l != winner && scores[l] > best {
			best = scores[l]
		}
	}
	return best
}

func allAgree(verdicts []analysis.SentimentVerdict, label analysis.Label) bool {
	for _, v := range verdicts {
		if v.Label != label {
			return false
		}
	}
	return true
}
