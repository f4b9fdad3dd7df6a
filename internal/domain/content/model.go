package content

import (
	"time"
)

// Kind identifies the category of a source item.
type Kind string

const (
	KindVideo   Kind = "video"
	KindArticle Kind = "article"
)

// Engagement holds the raw engagement counters reported by a provider.
// Articles typically carry none of these.
type Engagement struct {
	Views    int64
	Likes    int64
	Comments int64
}

// SourceItem is one piece of content discovered for a topic. Items are
// immutable once created; re-fetching the same content produces a new item.
type SourceItem struct {
	ID          string
	TopicID     string
	Kind        Kind
	Title       string
	Body        string
	URL         string
	Provider    string
	Engagement  Engagement
	PublishedAt time.Time
	FetchedAt   time.Time
	Raw         map[string]interface{}
}

// AnalysisText returns the text to feed sentiment models for items that
// have no transcript: title plus body/description.
func (s SourceItem) AnalysisText() string {
	if s.Body == "" {
		return s.Title
	}
	return s.Title + "\n\n" + s.Body
}

// Transcript is the speech-to-text result for a video item. Present is
// false when no speech was detectable or the engine failed; that is not
// an error condition.
type Transcript struct {
	ItemID     string
	Text       string
	Confidence float64
	Present    bool
}
