// internal/adapter/source/guardian.go

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

const guardianBaseURL = "https://content.guardianapis.com/search"

// GuardianAdapter discovers topic articles via the Guardian content API.
// It complements NewsAPI so article coverage survives either provider
// degrading.
type GuardianAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewGuardianAdapter creates a new Guardian source adapter
func NewGuardianAdapter(apiKey string, client *http.Client, logger *zap.Logger) *GuardianAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GuardianAdapter{
		apiKey:  apiKey,
		baseURL: guardianBaseURL,
		client:  client,
		logger:  logger,
	}
}

func (a *GuardianAdapter) Kind() content.Kind { return content.KindArticle }
func (a *GuardianAdapter) Provider() string   { return "guardian" }

// Fetch searches recent Guardian articles for the topic.
func (a *GuardianAdapter) Fetch(ctx context.Context, topic string, limit int) ([]content.SourceItem, error) {
	if a.apiKey == "" {
		return nil, a.wrap(content.ErrNoContent)
	}

	params := url.Values{
		"q":           {topic},
		"from-date":   {time.Now().AddDate(0, 0, -7).Format("2006-01-02")},
		"order-by":    {"relevance"},
		"page-size":   {fmt.Sprintf("%d", limit)},
		"show-fields": {"trailText,bodyText"},
		"api-key":     {a.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, a.wrap(fmt.Errorf("error building request: %w", err))
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.wrap(fmt.Errorf("error calling guardian api: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, a.wrap(content.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, a.wrap(fmt.Errorf("guardian api returned status %d", resp.StatusCode))
	}

	var result struct {
		Response struct {
			Status  string `json:"status"`
			Results []struct {
				ID       string `json:"id"`
				WebTitle string `json:"webTitle"`
				WebURL   string `json:"webUrl"`
				WebDate  string `json:"webPublicationDate"`
				Section  string `json:"sectionName"`
				Fields   struct {
					TrailText string `json:"trailText"`
					BodyText  string `json:"bodyText"`
				} `json:"fields"`
			} `json:"results"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, a.wrap(fmt.Errorf("error decoding response: %w", err))
	}
	if result.Response.Status != "ok" {
		return nil, a.wrap(fmt.Errorf("guardian api returned status %q", result.Response.Status))
	}

	var items []content.SourceItem
	for _, art := range result.Response.Results {
		if art.WebURL == "" || art.WebTitle == "" {
			continue
		}

		body := strings.TrimSpace(art.Fields.BodyText)
		if body == "" {
			body = strings.TrimSpace(art.Fields.TrailText)
		}

		var publishedAt time.Time
		if t, err := time.Parse(time.RFC3339, art.WebDate); err == nil {
			publishedAt = t
		}

		items = append(items, content.SourceItem{
			ID:          "guardian-" + strings.ReplaceAll(art.ID, "/", "-"),
			Kind:        content.KindArticle,
			Title:       strings.TrimSpace(art.WebTitle),
			Body:        body,
			URL:         art.WebURL,
			Provider:    "guardian",
			PublishedAt: publishedAt,
			Raw: map[string]interface{}{
				"section": art.Section,
			},
		})
		if len(items) >= limit {
			break
		}
	}

	a.logger.Debug("guardian discovery finished",
		zap.String("topic", topic),
		zap.Int("kept", len(items)))
	return items, nil
}

func (a *GuardianAdapter) wrap(err error) error {
	return &content.SourceFetchError{Kind: content.KindArticle, Provider: "guardian", Err: err}
}
