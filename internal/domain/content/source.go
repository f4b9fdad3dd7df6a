package content

import (
	"context"
	"errors"
	"fmt"
)

// SourceAdapter discovers raw content items for a topic from one provider.
type SourceAdapter interface {
	// Kind returns the category of items this adapter yields
	Kind() Kind

	// Provider returns the provider name for logging and degradation tracking
	Provider() string

	// Fetch returns up to limit items for the topic
	Fetch(ctx context.Context, topic string, limit int) ([]SourceItem, error)
}

// TranscriptionAdapter converts a video item's audio into text.
type TranscriptionAdapter interface {
	// Transcribe returns the transcript for a video item. A transcript with
	// Present=false means no usable speech; callers must not treat that as
	// a failure of the item.
	Transcribe(ctx context.Context, item SourceItem) (Transcript, error)
}

// Sentinel causes for source fetch failures.
var (
	ErrRateLimited = errors.New("source rate limited")
	ErrNoContent   = errors.New("no content found")
)

// SourceFetchError wraps a provider failure during discovery. Retryable
// failures are retried with backoff up to a bounded count before the
// source kind is marked degraded.
type SourceFetchError struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source fetch failed for %s/%s: %v", e.Kind, e.Provider, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the fetch is worth retrying. Rate limits are
// retryable; an empty result set is not.
func (e *SourceFetchError) Retryable() bool {
	return !errors.Is(e.Err, ErrNoContent)
}
