package analysis

import (
	"context"
	"fmt"

	"impactlens/internal/domain/content"
)

// SentimentModelAdapter is one independent sentiment model. The service
// runs several of these per item and fuses their verdicts.
type SentimentModelAdapter interface {
	// ModelID returns a stable identifier recorded on every verdict
	ModelID() string

	// Analyze classifies the given text. A failure excludes this model's
	// verdict from fusion for the item; it never aborts the run.
	Analyze(ctx context.Context, text string, kind content.Kind) (SentimentVerdict, error)
}

// Synthesizer generates a narrative summary from a settled topic snapshot.
type Synthesizer interface {
	Synthesize(ctx context.Context, input SynthesisInput) (string, error)
}

// ModelInferenceError wraps a single model's failure on a single item.
type ModelInferenceError struct {
	ModelID string
	ItemID  string
	Err     error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("model %s failed on item %s: %v", e.ModelID, e.ItemID, e.Err)
}

func (e *ModelInferenceError) Unwrap() error {
	return e.Err
}

// SynthesisGenerationError is surfaced to SynthesisCache callers when
// narrative generation fails; any previously cached narrative is retained.
type SynthesisGenerationError struct {
	TopicID string
	Err     error
}

func (e *SynthesisGenerationError) Error() string {
	return fmt.Sprintf("synthesis generation failed for topic %s: %v", e.TopicID, e.Err)
}

func (e *SynthesisGenerationError) Unwrap() error {
	return e.Err
}
