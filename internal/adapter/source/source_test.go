package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"impactlens/internal/domain/content"
)

func TestNewsAPIFetchMapsArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "climate policy", r.URL.Query().Get("q"))
		w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{
					"url": "https://example.com/a",
					"title": "Climate bill passes",
					"description": "short take",
					"content": "full text here",
					"publishedAt": "2025-08-20T10:00:00Z",
					"source": {"name": "Example Times"}
				},
				{
					"url": "https://removed.com",
					"title": "[Removed]"
				}
			]
		}`))
	}))
	defer srv.Close()

	a := NewNewsAPIAdapter("test-key", srv.Client(), zap.NewNop())
	a.baseURL = srv.URL

	items, err := a.Fetch(context.Background(), "climate policy", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, content.KindArticle, items[0].Kind)
	assert.Equal(t, "Climate bill passes", items[0].Title)
	assert.Equal(t, "full text here", items[0].Body)
	assert.Equal(t, "newsapi", items[0].Provider)
	assert.False(t, items[0].PublishedAt.IsZero())
}

func TestNewsAPIFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewNewsAPIAdapter("test-key", srv.Client(), zap.NewNop())
	a.baseURL = srv.URL

	_, err := a.Fetch(context.Background(), "anything", 5)
	var fetchErr *content.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, errors.Is(err, content.ErrRateLimited))
	assert.True(t, fetchErr.Retryable())
}

func TestNewsAPIFetchWithoutKeyIsNotRetryable(t *testing.T) {
	a := NewNewsAPIAdapter("", nil, zap.NewNop())

	_, err := a.Fetch(context.Background(), "anything", 5)
	var fetchErr *content.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.False(t, fetchErr.Retryable())
}

func TestGuardianFetchMapsArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g-key", r.URL.Query().Get("api-key"))
		w.Write([]byte(`{
			"response": {
				"status": "ok",
				"results": [
					{
						"id": "world/2025/aug/20/example",
						"webTitle": "World reacts",
						"webUrl": "https://theguardian.com/world/example",
						"webPublicationDate": "2025-08-20T08:00:00Z",
						"sectionName": "World",
						"fields": {"trailText": "trail", "bodyText": "body text"}
					}
				]
			}
		}`))
	}))
	defer srv.Close()

	a := NewGuardianAdapter("g-key", srv.Client(), zap.NewNop())
	a.baseURL = srv.URL

	items, err := a.Fetch(context.Background(), "world", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "guardian-world-2025-aug-20-example", items[0].ID)
	assert.Equal(t, "body text", items[0].Body)
}

func TestYouTubeDurationFilter(t *testing.T) {
	assert.InDelta(t, 15.55, durationMinutes("PT15M33S"), 0.01)
	assert.InDelta(t, 62.17, durationMinutes("PT1H2M10S"), 0.01)
	assert.InDelta(t, 0.75, durationMinutes("PT45S"), 0.01)
	assert.Equal(t, 0.0, durationMinutes(""))
	assert.Equal(t, 0.0, durationMinutes("bogus"))
}

func TestYouTubeLanguageFilter(t *testing.T) {
	assert.True(t, englishLanguage(""))
	assert.True(t, englishLanguage("en-GB"))
	assert.False(t, englishLanguage("hi"))
}
