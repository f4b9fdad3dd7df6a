// internal/adapter/source/youtube.go

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"impactlens/internal/domain/content"
)

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

// Videos longer than this are skipped; long-form content dominates
// transcription time without adding topical signal.
const maxVideoMinutes = 35.0

// YouTubeAdapter discovers topic videos via the YouTube Data API. A
// search call yields candidate ids; a videos call fills in statistics
// and duration for filtering.
type YouTubeAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewYouTubeAdapter creates a new YouTube source adapter
func NewYouTubeAdapter(apiKey string, client *http.Client, logger *zap.Logger) *YouTubeAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &YouTubeAdapter{
		apiKey:  apiKey,
		baseURL: youtubeBaseURL,
		client:  client,
		logger:  logger,
	}
}

func (a *YouTubeAdapter) Kind() content.Kind { return content.KindVideo }
func (a *YouTubeAdapter) Provider() string   { return "youtube" }

// Fetch searches for topic videos, keeping English uploads of at most 35
// minutes, and returns up to limit of them.
func (a *YouTubeAdapter) Fetch(ctx context.Context, topic string, limit int) ([]content.SourceItem, error) {
	if a.apiKey == "" {
		return nil, a.wrap(content.ErrNoContent)
	}

	ids, err := a.search(ctx, topic)
	if err != nil {
		return nil, a.wrap(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	videos, err := a.details(ctx, ids)
	if err != nil {
		return nil, a.wrap(err)
	}

	if len(videos) > limit {
		videos = videos[:limit]
	}
	a.logger.Debug("youtube discovery finished",
		zap.String("topic", topic),
		zap.Int("candidates", len(ids)),
		zap.Int("kept", len(videos)))
	return videos, nil
}

func (a *YouTubeAdapter) search(ctx context.Context, topic string) ([]string, error) {
	params := url.Values{
		"part":              {"snippet"},
		"q":                 {topic},
		"type":              {"video"},
		"maxResults":        {"50"},
		"relevanceLanguage": {"en"},
		"key":               {a.apiKey},
	}

	var result struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := a.get(ctx, a.baseURL+"/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

func (a *YouTubeAdapter) details(ctx context.Context, ids []string) ([]content.SourceItem, error) {
	params := url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(ids, ",")},
		"key":  {a.apiKey},
	}

	var result struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title           string `json:"title"`
				Description     string `json:"description"`
				PublishedAt     string `json:"publishedAt"`
				ChannelTitle    string `json:"channelTitle"`
				DefaultLanguage string `json:"defaultAudioLanguage"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
			Statistics struct {
				ViewCount    string `json:"viewCount"`
				LikeCount    string `json:"likeCount"`
				CommentCount string `json:"commentCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := a.get(ctx, a.baseURL+"/videos?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	var items []content.SourceItem
	for _, v := range result.Items {
		minutes := durationMinutes(v.ContentDetails.Duration)
		if minutes <= 0 || minutes > maxVideoMinutes {
			continue
		}
		if !englishLanguage(v.Snippet.DefaultLanguage) {
			continue
		}

		var publishedAt time.Time
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			publishedAt = t
		}

		items = append(items, content.SourceItem{
			ID:       "yt-" + v.ID,
			Kind:     content.KindVideo,
			Title:    v.Snippet.Title,
			Body:     v.Snippet.Description,
			URL:      "https://www.youtube.com/watch?v=" + v.ID,
			Provider: "youtube",
			Engagement: content.Engagement{
				Views:    parseCount(v.Statistics.ViewCount),
				Likes:    parseCount(v.Statistics.LikeCount),
				Comments: parseCount(v.Statistics.CommentCount),
			},
			PublishedAt: publishedAt,
			Raw: map[string]interface{}{
				"channel":          v.Snippet.ChannelTitle,
				"duration_minutes": minutes,
			},
		})
	}
	return items, nil
}

func (a *YouTubeAdapter) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling youtube api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		// 403 is how the Data API reports an exhausted daily quota.
		return content.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("youtube api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (a *YouTubeAdapter) wrap(err error) error {
	return &content.SourceFetchError{Kind: content.KindVideo, Provider: "youtube", Err: err}
}

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// durationMinutes parses an ISO 8601 duration like PT1H2M10S.
func durationMinutes(duration string) float64 {
	m := durationPattern.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	return float64(hours*3600+minutes*60+seconds) / 60.0
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// englishLanguage treats a missing language tag as English, matching
// how most uploads omit it.
func englishLanguage(lang string) bool {
	if lang == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(lang), "en")
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
