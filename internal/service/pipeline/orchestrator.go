package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"impactlens/internal/domain/analysis"
	"impactlens/internal/domain/content"
	"impactlens/internal/domain/run"
	"impactlens/internal/service/emotion"
	"impactlens/internal/service/fusion"
	"impactlens/internal/service/graph"
	"impactlens/internal/service/scoring"
	"impactlens/internal/service/synthesis"
)

// ItemStore persists source items and per-item analysis results.
type ItemStore interface {
	SaveItem(ctx context.Context, item content.SourceItem) error
	SaveVerdict(ctx context.Context, verdict analysis.SentimentVerdict) error
	SaveFused(ctx context.Context, fused analysis.FusedSentiment) error
	SaveScores(ctx context.Context, topicID string, scores []analysis.ImpactScore) error
}

// RunStore persists pipeline runs.
type RunStore interface {
	SaveRun(ctx context.Context, r run.PipelineRun) error
	GetRun(ctx context.Context, id string) (*run.PipelineRun, error)
}

// ArtifactStore persists topic-level aggregates.
type ArtifactStore interface {
	SaveProfile(ctx context.Context, profile analysis.TopicEmotionProfile) error
	ReplaceGraph(ctx context.Context, topicID string, nodes []analysis.GraphNode, edges []analysis.GraphEdge) error
}

// DiscoveryCache is an optional TTL cache in front of source discovery.
type DiscoveryCache interface {
	GetItems(ctx context.Context, topic string, kind content.Kind) ([]content.SourceItem, bool)
	SetItems(ctx context.Context, topic string, kind content.Kind, items []content.SourceItem)
}

// Config contains configuration for the orchestrator.
type Config struct {
	// ItemWorkers bounds concurrent per-item work; excess items queue.
	ItemWorkers int
	// SourceConcurrency and ModelConcurrency bound concurrent calls per
	// external dependency to respect provider rate limits.
	SourceConcurrency int
	ModelConcurrency  int

	SourceLimit   int
	SourceRetries int
	SourceBackoff time.Duration

	SourceTimeout     time.Duration
	TranscribeTimeout time.Duration
	ModelTimeout      time.Duration
	SynthesisTimeout  time.Duration

	// ReplayRetention keeps a finished run's progress stream available
	// for websocket replay before it is released.
	ReplayRetention time.Duration
}

func (c *Config) applyDefaults() {
	if c.ItemWorkers <= 0 {
		c.ItemWorkers = 5
	}
	if c.SourceConcurrency <= 0 {
		c.SourceConcurrency = 2
	}
	if c.ModelConcurrency <= 0 {
		c.ModelConcurrency = 4
	}
	if c.SourceLimit <= 0 {
		c.SourceLimit = 5
	}
	if c.SourceRetries <= 0 {
		c.SourceRetries = 3
	}
	if c.SourceBackoff <= 0 {
		c.SourceBackoff = 2 * time.Second
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 30 * time.Second
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 5 * time.Minute
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = 60 * time.Second
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = 2 * time.Minute
	}
	if c.ReplayRetention <= 0 {
		c.ReplayRetention = 10 * time.Minute
	}
}

// Orchestrator sequences all pipeline stages for one topic run, fanning
// out per-item work under bounded concurrency and tolerating partial
// failures. Item-level errors degrade the item; only empty discovery
// across all source kinds or impossible aggregate persistence fail a run.
type Orchestrator struct {
	sources     []content.SourceAdapter
	transcriber content.TranscriptionAdapter
	models      []analysis.SentimentModelAdapter
	fusion      *fusion.Engine
	scoring     *scoring.Engine
	emotions    *emotion.Aggregator
	graph       *graph.Builder
	synthesis   *synthesis.Cache
	items       ItemStore
	runs        RunStore
	artifacts   ArtifactStore
	discovery   DiscoveryCache
	broadcaster *Broadcaster
	logger      *zap.Logger
	config      Config

	sourceSem chan struct{}
	modelSem  chan struct{}

	mu     sync.RWMutex
	active map[string]*activeRun

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type activeRun struct {
	mu        sync.Mutex
	run       *run.PipelineRun
	cancelRun context.CancelFunc
	cancelled atomic.Bool
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(
	sources []content.SourceAdapter,
	transcriber content.TranscriptionAdapter,
	models []analysis.SentimentModelAdapter,
	fusionEngine *fusion.Engine,
	scoringEngine *scoring.Engine,
	emotionAggregator *emotion.Aggregator,
	graphBuilder *graph.Builder,
	synthesisCache *synthesis.Cache,
	items ItemStore,
	runs RunStore,
	artifacts ArtifactStore,
	discovery DiscoveryCache,
	broadcaster *Broadcaster,
	logger *zap.Logger,
	config Config,
) *Orchestrator {
	config.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		sources:     sources,
		transcriber: transcriber,
		models:      models,
		fusion:      fusionEngine,
		scoring:     scoringEngine,
		emotions:    emotionAggregator,
		graph:       graphBuilder,
		synthesis:   synthesisCache,
		items:       items,
		runs:        runs,
		artifacts:   artifacts,
		discovery:   discovery,
		broadcaster: broadcaster,
		logger:      logger,
		config:      config,
		sourceSem:   make(chan struct{}, config.SourceConcurrency),
		modelSem:    make(chan struct{}, config.ModelConcurrency),
		active:      make(map[string]*activeRun),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// TopicIDFor derives the stable topic identifier artifacts are stored
// under. Runs for the same topic share it.
func TopicIDFor(topic string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("topic:"+normalizeTopic(topic))).String()
}

// Start launches a new pipeline run for the topic and returns its id.
func (o *Orchestrator) Start(ctx context.Context, topic string) (string, error) {
	if normalizeTopic(topic) == "" {
		return "", fmt.Errorf("topic must not be empty")
	}

	now := time.Now().UTC()
	r := &run.PipelineRun{
		ID:        uuid.New().String(),
		TopicID:   TopicIDFor(topic),
		Topic:     topic,
		State:     run.StageCreated,
		StartedAt: now,
		StageHistory: []run.StageTransition{
			{Stage: run.StageCreated, At: now},
		},
	}
	if err := o.runs.SaveRun(ctx, *r); err != nil {
		return "", fmt.Errorf("failed to persist run: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(o.ctx)
	active := &activeRun{run: r, cancelRun: cancelRun}

	o.mu.Lock()
	o.active[r.ID] = active
	o.mu.Unlock()

	o.broadcaster.Open(r.ID)
	o.broadcaster.Emit(r.ID, run.StageCreated, fmt.Sprintf("analysis queued for %q", topic), nil)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancelRun()
		o.execute(runCtx, active)
	}()

	return r.ID, nil
}

// Cancel requests cooperative cancellation of a run. The cancellation
// flag is observed between stages and before each per-item dispatch;
// in-flight external calls are aborted via context.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.RLock()
	active, ok := o.active[runID]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", run.ErrNotFound, runID)
	}

	active.mu.Lock()
	terminal := active.run.State.Terminal()
	active.mu.Unlock()
	if terminal {
		return fmt.Errorf("run %s already finished", runID)
	}

	active.mu.Lock()
	active.run.CancelRequested = true
	active.mu.Unlock()
	active.cancelled.Store(true)
	active.cancelRun()
	return nil
}

// GetRun returns the current state of a run.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*run.PipelineRun, error) {
	o.mu.RLock()
	active, ok := o.active[runID]
	o.mu.RUnlock()
	if ok {
		active.mu.Lock()
		snapshot := *active.run
		snapshot.StageHistory = append([]run.StageTransition(nil), active.run.StageHistory...)
		active.mu.Unlock()
		return &snapshot, nil
	}
	return o.runs.GetRun(ctx, runID)
}

// Stop cancels all in-flight runs and waits for them to settle.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// itemResult is the settled outcome for one item after fan-out.
type itemResult struct {
	input    scoring.Input
	emotions *analysis.EmotionVector
	ok       bool
}

func (o *Orchestrator) execute(ctx context.Context, active *activeRun) {
	runID := active.run.ID
	topicID := active.run.TopicID
	topic := active.run.Topic

	if !o.advance(ctx, active, run.StageFetchingSources, "discovering sources", nil) {
		return
	}

	items := o.fetchSources(ctx, topic, topicID)
	if o.checkCancelled(active) {
		return
	}
	if len(items) == 0 {
		o.fail(active, &run.PipelineFatalError{RunID: runID, Reason: "no items found for any source kind"})
		return
	}

	var videos []content.SourceItem
	articleCount := 0
	for _, item := range items {
		if item.Kind == content.KindVideo {
			videos = append(videos, item)
		} else {
			articleCount++
		}
	}

	// Transcribing is skipped entirely for runs without video items.
	transcripts := make(map[string]content.Transcript)
	if len(videos) > 0 {
		if !o.advance(ctx, active, run.StageTranscribing, fmt.Sprintf("transcribing %d videos", len(videos)), nil) {
			return
		}
		transcripts = o.transcribeAll(ctx, active, videos)
		if o.checkCancelled(active) {
			return
		}
	}

	if !o.advance(ctx, active, run.StageAnalyzingSentiment, fmt.Sprintf("analyzing %d items", len(items)), nil) {
		return
	}
	results := o.analyzeAll(ctx, active, items, transcripts)
	if o.checkCancelled(active) {
		return
	}

	// Aggregation only ever runs over the settled batch collected above.
	var inputs []scoring.Input
	var vectors []analysis.EmotionVector
	for _, res := range results {
		if !res.ok {
			continue
		}
		inputs = append(inputs, res.input)
		if res.emotions != nil {
			vectors = append(vectors, *res.emotions)
		}
	}

	if !o.advance(ctx, active, run.StageScoring, fmt.Sprintf("scoring %d items", len(inputs)), nil) {
		return
	}
	scores := o.scoring.ScoreBatch(inputs, time.Now().UTC())
	if err := o.items.SaveScores(ctx, topicID, scores); err != nil {
		o.fail(active, &run.PipelineFatalError{RunID: runID, Reason: "failed to persist impact scores", Err: err})
		return
	}
	profile := o.emotions.Aggregate(topicID, vectors)

	if !o.advance(ctx, active, run.StageBuildingGraph, "building similarity graph", nil) {
		return
	}
	if err := o.artifacts.SaveProfile(ctx, profile); err != nil {
		o.fail(active, &run.PipelineFatalError{RunID: runID, Reason: "failed to persist emotion profile", Err: err})
		return
	}
	nodes, edges := o.graph.Build(graphInputs(inputs, scores))
	if err := o.artifacts.ReplaceGraph(ctx, topicID, nodes, edges); err != nil {
		o.fail(active, &run.PipelineFatalError{RunID: runID, Reason: "failed to persist graph", Err: err})
		return
	}

	if !o.advance(ctx, active, run.StageSynthesizing, "generating narrative synthesis", nil) {
		return
	}
	o.warmSynthesis(ctx, topicID, topic, inputs, scores)

	active.mu.Lock()
	active.run.Stats = buildStats(items, articleCount, len(videos), inputs, scores)
	active.mu.Unlock()

	o.advance(ctx, active, run.StageComplete, "analysis complete", nil)
}

// fetchSources queries every adapter concurrently, retrying retryable
// failures with backoff. A degraded source yields zero items; only all
// kinds coming back empty is fatal (decided by the caller).
func (o *Orchestrator) fetchSources(ctx context.Context, topic, topicID string) []content.SourceItem {
	var (
		mu  sync.Mutex
		all []content.SourceItem
		wg  sync.WaitGroup
	)

	for _, adapter := range o.sources {
		wg.Add(1)
		go func(adapter content.SourceAdapter) {
			defer wg.Done()

			if o.discovery != nil {
				if cached, ok := o.discovery.GetItems(ctx, topic, adapter.Kind()); ok {
					mu.Lock()
					all = append(all, cached...)
					mu.Unlock()
					return
				}
			}

			items, err := o.fetchWithRetry(ctx, adapter, topic)
			if err != nil {
				o.logger.Warn("source degraded",
					zap.String("kind", string(adapter.Kind())),
					zap.String("provider", adapter.Provider()),
					zap.Error(err))
				return
			}

			now := time.Now().UTC()
			for i := range items {
				items[i].TopicID = topicID
				items[i].FetchedAt = now
				if items[i].ID == "" {
					items[i].ID = uuid.New().String()
				}
				if err := o.items.SaveItem(ctx, items[i]); err != nil {
					o.logger.Warn("failed to persist source item",
						zap.String("item_id", items[i].ID),
						zap.Error(err))
				}
			}
			if o.discovery != nil {
				o.discovery.SetItems(ctx, topic, adapter.Kind(), items)
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()
	return all
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, adapter content.SourceAdapter, topic string) ([]content.SourceItem, error) {
	var lastErr error
	for attempt := 0; attempt <= o.config.SourceRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.SourceBackoff * time.Duration(attempt)):
			}
		}

		select {
		case o.sourceSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		fetchCtx, cancel := context.WithTimeout(ctx, o.config.SourceTimeout)
		items, err := adapter.Fetch(fetchCtx, topic, o.config.SourceLimit)
		cancel()
		<-o.sourceSem

		if err == nil {
			return items, nil
		}
		lastErr = err

		var fetchErr *content.SourceFetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// transcribeAll fans out transcription over the bounded item pool.
// Failures and timeouts degrade to an absent transcript.
func (o *Orchestrator) transcribeAll(ctx context.Context, active *activeRun, videos []content.SourceItem) map[string]content.Transcript {
	var mu sync.Mutex
	transcripts := make(map[string]content.Transcript, len(videos))
	total := len(videos)
	done := 0

	o.forEachItem(ctx, active, videos, func(itemCtx context.Context, item content.SourceItem) {
		tctx, cancel := context.WithTimeout(itemCtx, o.config.TranscribeTimeout)
		transcript, err := o.transcriber.Transcribe(tctx, item)
		cancel()
		if err != nil {
			o.logger.Warn("transcription unavailable",
				zap.String("item_id", item.ID),
				zap.Error(err))
			transcript = content.Transcript{ItemID: item.ID}
		}

		mu.Lock()
		transcripts[item.ID] = transcript
		done++
		pct := float64(done) / float64(total) * 100
		mu.Unlock()
		o.broadcaster.Emit(active.run.ID, run.StageTranscribing,
			fmt.Sprintf("transcribed %d/%d videos", done, total), &pct)
	})
	return transcripts
}

// analyzeAll runs every active model against every item's best text and
// fuses the verdicts. An item where every model fails is degraded to
// label unknown and excluded from scoring and aggregation.
func (o *Orchestrator) analyzeAll(ctx context.Context, active *activeRun, items []content.SourceItem, transcripts map[string]content.Transcript) []itemResult {
	var mu sync.Mutex
	results := make([]itemResult, 0, len(items))
	total := len(items)
	done := 0

	o.forEachItem(ctx, active, items, func(itemCtx context.Context, item content.SourceItem) {
		res := o.analyzeItem(itemCtx, item, transcripts)

		mu.Lock()
		results = append(results, res)
		done++
		pct := float64(done) / float64(total) * 100
		mu.Unlock()
		o.broadcaster.Emit(active.run.ID, run.StageAnalyzingSentiment,
			fmt.Sprintf("analyzed %d/%d items", done, total), &pct)
	})
	return results
}

func (o *Orchestrator) analyzeItem(ctx context.Context, item content.SourceItem, transcripts map[string]content.Transcript) itemResult {
	text := item.AnalysisText()
	if item.Kind == content.KindVideo {
		if t, ok := transcripts[item.ID]; ok && t.Present {
			text = t.Text
		}
	}
	if text == "" {
		o.logger.Warn("item has no analyzable text, skipping sentiment",
			zap.String("item_id", item.ID))
		return itemResult{}
	}

	var verdicts []analysis.SentimentVerdict
	var emotions *analysis.EmotionVector
	justified := false

	for _, model := range o.models {
		select {
		case o.modelSem <- struct{}{}:
		case <-ctx.Done():
			return itemResult{}
		}
		mctx, cancel := context.WithTimeout(ctx, o.config.ModelTimeout)
		verdict, err := model.Analyze(mctx, text, item.Kind)
		cancel()
		<-o.modelSem

		if err != nil {
			o.logger.Warn("model inference failed, excluding verdict",
				zap.String("model_id", model.ModelID()),
				zap.String("item_id", item.ID),
				zap.Error(err))
			continue
		}
		verdict.ItemID = item.ID
		verdict.ModelID = model.ModelID()
		verdicts = append(verdicts, verdict)
		if verdict.Justification != "" {
			justified = true
		}
		if emotions == nil && verdict.Emotions != nil {
			emotions = verdict.Emotions
		}
		if err := o.items.SaveVerdict(ctx, verdict); err != nil {
			o.logger.Warn("failed to persist verdict",
				zap.String("item_id", item.ID),
				zap.Error(err))
		}
	}

	if len(verdicts) == 0 {
		o.logger.Warn("all models failed for item, label unknown",
			zap.String("item_id", item.ID))
		unknown := analysis.FusedSentiment{ItemID: item.ID, Label: analysis.LabelUnknown}
		if err := o.items.SaveFused(ctx, unknown); err != nil {
			o.logger.Warn("failed to persist unknown sentiment",
				zap.String("item_id", item.ID),
				zap.Error(err))
		}
		return itemResult{}
	}

	fused, err := o.fusion.Fuse(verdicts)
	if err != nil {
		o.logger.Error("fusion failed", zap.String("item_id", item.ID), zap.Error(err))
		return itemResult{}
	}
	if err := o.items.SaveFused(ctx, fused); err != nil {
		o.logger.Warn("failed to persist fused sentiment",
			zap.String("item_id", item.ID),
			zap.Error(err))
	}

	return itemResult{
		input:    scoring.Input{Item: item, Fused: fused, Justified: justified},
		emotions: emotions,
		ok:       true,
	}
}

// forEachItem fans fn out over the bounded item worker pool. The
// cancellation flag is checked before dispatching each item; queued
// items are skipped once cancellation is requested.
func (o *Orchestrator) forEachItem(ctx context.Context, active *activeRun, items []content.SourceItem, fn func(context.Context, content.SourceItem)) {
	workers := o.config.ItemWorkers
	if workers > len(items) {
		workers = len(items)
	}
	if workers == 0 {
		return
	}

	itemChan := make(chan content.SourceItem, len(items))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				if active.cancelled.Load() || ctx.Err() != nil {
					continue
				}
				fn(ctx, item)
			}
		}()
	}

	for _, item := range items {
		itemChan <- item
	}
	close(itemChan)
	wg.Wait()
}

// warmSynthesis populates the narrative cache from the settled run.
// Generation failures are non-fatal for the run.
func (o *Orchestrator) warmSynthesis(ctx context.Context, topicID, topic string, inputs []scoring.Input, scores []analysis.ImpactScore) {
	composites := make(map[string]float64, len(scores))
	for _, s := range scores {
		composites[s.ItemID] = s.Composite
	}
	digests := make([]analysis.ItemDigest, 0, len(inputs))
	for _, in := range inputs {
		digests = append(digests, analysis.ItemDigest{
			Title:     in.Item.Title,
			Kind:      string(in.Item.Kind),
			Label:     in.Fused.Label,
			Composite: composites[in.Item.ID],
			Views:     in.Item.Engagement.Views,
		})
	}

	sctx, cancel := context.WithTimeout(ctx, o.config.SynthesisTimeout)
	defer cancel()
	_, err := o.synthesis.GetOrGenerate(sctx, analysis.SynthesisInput{
		TopicID:   topicID,
		TopicName: topic,
		Items:     digests,
	}, false)
	if err != nil {
		o.logger.Warn("synthesis warm-up failed, run continues",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
}

// advance moves the run forward one stage, persists it and emits a
// progress event. It returns false when the run was cancelled instead.
func (o *Orchestrator) advance(ctx context.Context, active *activeRun, stage run.Stage, message string, percent *float64) bool {
	if o.checkCancelled(active) {
		return false
	}

	active.mu.Lock()
	err := active.run.AdvanceTo(stage, time.Now().UTC())
	snapshot := *active.run
	active.mu.Unlock()
	if err != nil {
		o.logger.Error("stage transition rejected", zap.String("run_id", active.run.ID), zap.Error(err))
		return false
	}

	if err := o.runs.SaveRun(ctx, snapshot); err != nil {
		o.logger.Warn("failed to persist run state",
			zap.String("run_id", snapshot.ID),
			zap.Error(err))
	}
	o.broadcaster.Emit(snapshot.ID, stage, message, percent)

	if stage.Terminal() {
		o.retire(snapshot.ID)
	}
	return true
}

// checkCancelled settles a cancellation request; it is consulted between
// stages and before per-item dispatch. No partial aggregates are
// persisted for a cancelled run.
func (o *Orchestrator) checkCancelled(active *activeRun) bool {
	if !active.cancelled.Load() {
		return false
	}

	active.mu.Lock()
	alreadyTerminal := active.run.State.Terminal()
	if !alreadyTerminal {
		_ = active.run.AdvanceTo(run.StageCancelled, time.Now().UTC())
	}
	snapshot := *active.run
	active.mu.Unlock()
	if alreadyTerminal {
		return true
	}

	// Persist with a fresh context: the run context is already cancelled.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.runs.SaveRun(saveCtx, snapshot); err != nil {
		o.logger.Warn("failed to persist cancelled run", zap.String("run_id", snapshot.ID), zap.Error(err))
	}
	o.broadcaster.Emit(snapshot.ID, run.StageCancelled, "run cancelled", nil)
	o.retire(snapshot.ID)
	return true
}

// fail moves the run to its terminal Error state.
func (o *Orchestrator) fail(active *activeRun, fatal *run.PipelineFatalError) {
	o.logger.Error("pipeline run failed", zap.String("run_id", active.run.ID), zap.Error(fatal))

	active.mu.Lock()
	_ = active.run.AdvanceTo(run.StageError, time.Now().UTC())
	active.run.Error = fatal.Error()
	snapshot := *active.run
	active.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.runs.SaveRun(saveCtx, snapshot); err != nil {
		o.logger.Warn("failed to persist failed run", zap.String("run_id", snapshot.ID), zap.Error(err))
	}
	o.broadcaster.Emit(snapshot.ID, run.StageError, fatal.Reason, nil)
	o.retire(snapshot.ID)
}

// retire schedules release of the run's progress stream and drops it
// from the active set once the replay retention window passes.
func (o *Orchestrator) retire(runID string) {
	retention := o.config.ReplayRetention
	time.AfterFunc(retention, func() {
		o.broadcaster.Release(runID)
		o.mu.Lock()
		delete(o.active, runID)
		o.mu.Unlock()
	})
}

func graphInputs(inputs []scoring.Input, scores []analysis.ImpactScore) []graph.Input {
	composites := make(map[string]float64, len(scores))
	for _, s := range scores {
		composites[s.ItemID] = s.Composite
	}
	out := make([]graph.Input, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, graph.Input{
			ItemID:    in.Item.ID,
			Label:     in.Fused.Label,
			Composite: composites[in.Item.ID],
		})
	}
	return out
}

func buildStats(items []content.SourceItem, articles, videos int, inputs []scoring.Input, scores []analysis.ImpactScore) run.Stats {
	stats := run.Stats{
		ItemCount:    len(items),
		VideoCount:   videos,
		ArticleCount: articles,
		ScoredCount:  len(scores),
	}
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s.Composite
		}
		stats.AvgImpact = sum / float64(len(scores))
	}
	labelCounts := make(map[analysis.Label]int)
	for _, in := range inputs {
		labelCounts[in.Fused.Label]++
	}
	best := 0
	for label, count := range labelCounts {
		if count > best || (count == best && stats.DominantLabel == "") {
			best = count
			stats.DominantLabel = string(label)
		}
	}
	return stats
}

func normalizeTopic(topic string) string {
	out := make([]rune, 0, len(topic))
	lastSpace := true
	for _, r := range topic {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				out = append(out, ' ')
				lastSpace = true
			}
		default:
			out = append(out, r)
			lastSpace = false
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}
