// internal/adapter/transcription/client.go

package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"impactlens/internal/domain/content"
)

// Client talks to the speech-to-text sidecar over HTTP. Transcription
// never fails a run: unreachable sidecar, non-200 responses and videos
// without detectable speech all degrade to an absent transcript.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new transcription client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Transcribe requests a transcript for a video item.
func (c *Client) Transcribe(ctx context.Context, item content.SourceItem) (content.Transcript, error) {
	payload, err := json.Marshal(map[string]string{
		"item_id": item.ID,
		"url":     item.URL,
	})
	if err != nil {
		return content.Transcript{ItemID: item.ID}, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcribe", bytes.NewReader(payload))
	if err != nil {
		return content.Transcript{ItemID: item.ID}, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return content.Transcript{ItemID: item.ID}, fmt.Errorf("error calling transcription sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return content.Transcript{ItemID: item.ID}, fmt.Errorf("transcription sidecar returned status %d", resp.StatusCode)
	}

	var result struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return content.Transcript{ItemID: item.ID}, fmt.Errorf("error decoding response: %w", err)
	}

	if result.Text == "" {
		// No detectable speech. Not an error; the item falls back to its
		// title and description.
		c.logger.Debug("no speech detected", zap.String("item_id", item.ID))
		return content.Transcript{ItemID: item.ID}, nil
	}

	return content.Transcript{
		ItemID:     item.ID,
		Text:       result.Text,
		Confidence: result.Confidence,
		Present:    true,
	}, nil
}
