// internal/adapter/inference/anthropic.go

package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
)

const sentimentSystemPrompt = `You are a sentiment analyst. Given a piece of content about a topic, respond with ONLY a JSON object, no prose, in this exact shape:
{
  "label": "positive" | "negative" | "neutral" | "mixed",
  "confidence": 0.0-1.0,
  "emotions": {"joy": 0-100, "sadness": 0-100, "anger": 0-100, "fear": 0-100, "surprise": 0-100, "disgust": 0-100},
  "justification": "one short sentence"
}`

// GenerativeModel is the LLM-backed sentiment model. It returns the
// full emotion vector alongside the label; the lexicon model cannot.
type GenerativeModel struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewGenerativeModel creates a new generative sentiment model
func NewGenerativeModel(apiKey, model string) *GenerativeModel {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &GenerativeModel{
		client: &client,
		model:  anthropic.Model(model),
	}
}

func (m *GenerativeModel) ModelID() string { return "generative" }

// Analyze asks the model for a strict-JSON verdict over the text.
func (m *GenerativeModel) Analyze(ctx context.Context, text string, kind content.Kind) (analysis.SentimentVerdict, error) {
	userPrompt := fmt.Sprintf("Content type: %s\n\n%s", kind, truncate(text, 8000))

	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: sentimentSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return analysis.SentimentVerdict{}, &analysis.ModelInferenceError{ModelID: m.ModelID(), Err: err}
	}
	if len(resp.Content) == 0 {
		return analysis.SentimentVerdict{}, &analysis.ModelInferenceError{
			ModelID: m.ModelID(),
			Err:     fmt.Errorf("empty response"),
		}
	}

	var parsed struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Emotions   struct {
			Joy      float64 `json:"joy"`
			Sadness  float64 `json:"sadness"`
			Anger    float64 `json:"anger"`
			Fear     float64 `json:"fear"`
			Surprise float64 `json:"surprise"`
			Disgust  float64 `json:"disgust"`
		} `json:"emotions"`
		Justification string `json:"justification"`
	}
	cleaned := cleanJSONResponse(resp.Content[0].Text)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return analysis.SentimentVerdict{}, &analysis.ModelInferenceError{
			ModelID: m.ModelID(),
			Err:     fmt.Errorf("failed to parse response: %w", err),
		}
	}

	label, err := parseLabel(parsed.Label)
	if err != nil {
		return analysis.SentimentVerdict{}, &analysis.ModelInferenceError{ModelID: m.ModelID(), Err: err}
	}

	return analysis.SentimentVerdict{
		Label:      label,
		Confidence: clamp01(parsed.Confidence),
		Emotions: &analysis.EmotionVector{
			Joy:      clampEmotion(parsed.Emotions.Joy),
			Sadness:  clampEmotion(parsed.Emotions.Sadness),
			Anger:    clampEmotion(parsed.Emotions.Anger),
			Fear:     clampEmotion(parsed.Emotions.Fear),
			Surprise: clampEmotion(parsed.Emotions.Surprise),
			Disgust:  clampEmotion(parsed.Emotions.Disgust),
		},
		Justification: parsed.Justification,
	}, nil
}

func parseLabel(s string) (analysis.Label, error) {
	switch analysis.Label(strings.ToLower(strings.TrimSpace(s))) {
	case analysis.LabelPositive:
		return analysis.LabelPositive, nil
	case analysis.LabelNegative:
		return analysis.LabelNegative, nil
	case analysis.LabelNeutral:
		return analysis.LabelNeutral, nil
	case analysis.LabelMixed:
		return analysis.LabelMixed, nil
	}
	return "", fmt.Errorf("unexpected label %q", s)
}

// cleanJSONResponse strips markdown fences and surrounding prose the
// model sometimes wraps around its JSON.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampEmotion bounds a model-reported intensity to the 0-100 scale.
func clampEmotion(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
