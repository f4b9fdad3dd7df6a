// internal/adapter/inference/synthesizer.go

package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"impactlens/internal/domain/analysis"
)

const synthesisSystemPrompt = `You are a media analyst. Write a concise narrative synthesis of how a topic is being covered, based on the analyzed items you are given. Cover the overall sentiment balance, the highest-impact items and any notable divergence between video and article coverage. Write 2-3 short paragraphs of plain prose. Do not use headings or bullet points.`

// NarrativeSynthesizer generates the topic narrative from item digests.
type NarrativeSynthesizer struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewNarrativeSynthesizer creates a new narrative synthesizer
func NewNarrativeSynthesizer(apiKey, model string) *NarrativeSynthesizer {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &NarrativeSynthesizer{
		client: &client,
		model:  anthropic.Model(model),
	}
}

// Synthesize generates a narrative over the analyzed items.
func (s *NarrativeSynthesizer) Synthesize(ctx context.Context, input analysis.SynthesisInput) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nAnalyzed items: %d\n\n", input.TopicName, len(input.Items))
	for _, item := range input.Items {
		fmt.Fprintf(&sb, "- [%s] %q, sentiment %s, impact %.2f/5, views %d\n",
			item.Kind, item.Title, item.Label, item.Composite, item.Views)
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: synthesisSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}

	narrative := strings.TrimSpace(resp.Content[0].Text)
	if narrative == "" {
		return "", fmt.Errorf("empty narrative")
	}
	return narrative, nil
}
