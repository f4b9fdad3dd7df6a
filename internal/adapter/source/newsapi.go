// internal/adapter/source/newsapi.go

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"impactlens/internal/domain/content"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIAdapter discovers topic articles via newsapi.org.
type NewsAPIAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewNewsAPIAdapter creates a new NewsAPI source adapter
func NewNewsAPIAdapter(apiKey string, client *http.Client, logger *zap.Logger) *NewsAPIAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NewsAPIAdapter{
		apiKey:  apiKey,
		baseURL: newsAPIBaseURL,
		client:  client,
		logger:  logger,
	}
}

func (a *NewsAPIAdapter) Kind() content.Kind { return content.KindArticle }
func (a *NewsAPIAdapter) Provider() string   { return "newsapi" }

// Fetch searches the last week of articles for the topic.
func (a *NewsAPIAdapter) Fetch(ctx context.Context, topic string, limit int) ([]content.SourceItem, error) {
	if a.apiKey == "" {
		return nil, a.wrap(content.ErrNoContent)
	}

	params := url.Values{
		"q":        {topic},
		"from":     {time.Now().AddDate(0, 0, -7).Format("2006-01-02")},
		"language": {"en"},
		"sortBy":   {"relevancy"},
		"pageSize": {fmt.Sprintf("%d", limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, a.wrap(fmt.Errorf("error building request: %w", err))
	}
	req.Header.Set("X-Api-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.wrap(fmt.Errorf("error calling newsapi: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, a.wrap(content.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, a.wrap(fmt.Errorf("newsapi returned status %d", resp.StatusCode))
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, a.wrap(fmt.Errorf("error decoding response: %w", err))
	}
	if result.Status != "ok" {
		return nil, a.wrap(fmt.Errorf("newsapi returned status %q", result.Status))
	}

	var items []content.SourceItem
	for _, art := range result.Articles {
		if art.URL == "" || art.Title == "" || art.Title == "[Removed]" {
			continue
		}

		body := strings.TrimSpace(art.Content)
		if body == "" {
			body = strings.TrimSpace(art.Description)
		}

		var publishedAt time.Time
		if t, err := time.Parse(time.RFC3339, art.PublishedAt); err == nil {
			publishedAt = t
		}

		items = append(items, content.SourceItem{
			Kind:        content.KindArticle,
			Title:       strings.TrimSpace(art.Title),
			Body:        body,
			URL:         art.URL,
			Provider:    "newsapi",
			PublishedAt: publishedAt,
			Raw: map[string]interface{}{
				"outlet": art.Source.Name,
			},
		})
		if len(items) >= limit {
			break
		}
	}

	a.logger.Debug("newsapi discovery finished",
		zap.String("topic", topic),
		zap.Int("kept", len(items)))
	return items, nil
}

func (a *NewsAPIAdapter) wrap(err error) error {
	return &content.SourceFetchError{Kind: content.KindArticle, Provider: "newsapi", Err: err}
}
