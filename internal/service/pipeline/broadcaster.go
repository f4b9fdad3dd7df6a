package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"impactlens/internal/domain/run"
)

// subscriberBuffer is the channel depth per live subscriber. A slow
// subscriber that falls this far behind is dropped; it can reconnect
// with replay from its last sequence.
const subscriberBuffer = 64

// Broadcaster owns per-run progress streams: it assigns monotonic
// sequence numbers, retains events for replay and fans them out to the
// run's subscriber. Events are also published to NATS for external
// consumers; in-process ordering is authoritative.
type Broadcaster struct {
	eventBus *nats.Conn
	logger   *zap.Logger

	mu   sync.RWMutex
	runs map[string]*runStream
}

type runStream struct {
	mu      sync.Mutex
	seq     uint64
	events  []run.ProgressEvent
	subs    map[int]chan run.ProgressEvent
	nextSub int
	closed  bool
}

// NewBroadcaster creates a new progress broadcaster. eventBus may be
// nil when no NATS connection is configured.
func NewBroadcaster(eventBus *nats.Conn, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		eventBus: eventBus,
		logger:   logger,
		runs:     make(map[string]*runStream),
	}
}

// Open creates the stream for a run. Called once at run start.
func (b *Broadcaster) Open(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.runs[runID]; !ok {
		b.runs[runID] = &runStream{subs: make(map[int]chan run.ProgressEvent)}
	}
}

// Emit appends an event to the run's stream and delivers it to the live
// subscriber. percent may be nil when a stage has no meaningful progress
// fraction.
func (b *Broadcaster) Emit(runID string, stage run.Stage, message string, percent *float64) {
	b.mu.RLock()
	stream, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		b.logger.Warn("progress event for unknown run dropped", zap.String("run_id", runID))
		return
	}

	stream.mu.Lock()
	if stream.closed {
		stream.mu.Unlock()
		return
	}
	stream.seq++
	event := run.ProgressEvent{
		RunID:     runID,
		Sequence:  stream.seq,
		Stage:     stage,
		Message:   message,
		Percent:   percent,
		Timestamp: time.Now().UTC(),
	}
	stream.events = append(stream.events, event)
	if stage.Terminal() {
		stream.closed = true
	}
	for id, ch := range stream.subs {
		select {
		case ch <- event:
		default:
			// Slow consumer: drop it rather than block the pipeline.
			delete(stream.subs, id)
			close(ch)
		}
	}
	if stream.closed {
		for id, ch := range stream.subs {
			delete(stream.subs, id)
			close(ch)
		}
	}
	stream.mu.Unlock()

	b.publish(event)
}

// Subscribe returns a channel that first replays every retained event
// with sequence greater than fromSequence and then carries live events,
// gap-free and in order. The returned func cancels the subscription.
func (b *Broadcaster) Subscribe(runID string, fromSequence uint64) (<-chan run.ProgressEvent, func(), error) {
	b.mu.RLock()
	stream, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown run: %s", runID)
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	var replay []run.ProgressEvent
	for _, e := range stream.events {
		if e.Sequence > fromSequence {
			replay = append(replay, e)
		}
	}

	ch := make(chan run.ProgressEvent, subscriberBuffer+len(replay))
	for _, e := range replay {
		ch <- e
	}

	if stream.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := stream.nextSub
	stream.nextSub++
	stream.subs[id] = ch

	cancel := func() {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		if c, ok := stream.subs[id]; ok {
			delete(stream.subs, id)
			close(c)
		}
	}
	return ch, cancel, nil
}

// Release drops a run's stream and retained events. Called after the
// replay retention window of a terminal run has passed.
func (b *Broadcaster) Release(runID string) {
	b.mu.Lock()
	stream, ok := b.runs[runID]
	if ok {
		delete(b.runs, runID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	stream.closed = true
	for id, ch := range stream.subs {
		delete(stream.subs, id)
		close(ch)
	}
}

// publish mirrors the event onto the bus; failures are logged, never fatal.
func (b *Broadcaster) publish(event run.ProgressEvent) {
	if b.eventBus == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal progress event", zap.Error(err))
		return
	}
	subject := fmt.Sprintf("runs.%s.progress", event.RunID)
	if err := b.eventBus.Publish(subject, data); err != nil {
		b.logger.Warn("failed to publish progress event",
			zap.String("run_id", event.RunID),
			zap.Error(err))
	}
	if event.Stage.Terminal() {
		finished := fmt.Sprintf("runs.%s.finished", event.RunID)
		if err := b.eventBus.Publish(finished, data); err != nil {
			b.logger.Warn("failed to publish run finished event",
				zap.String("run_id", event.RunID),
				zap.Error(err))
		}
	}
}
