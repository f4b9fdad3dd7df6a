package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type fakeSource struct {
	kind  content.Kind
	items []content.SourceItem
	err   error
	delay time.Duration
}

func (f *fakeSource) Kind() content.Kind { return f.kind }
func (f *fakeSource) Provider() string   { return "fake-" + string(f.kind) }

func (f *fakeSource) Fetch(ctx context.Context, topic string, limit int) ([]content.SourceItem, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, item content.SourceItem) (content.Transcript, error) {
	if f.err != nil {
		return content.Transcript{}, f.err
	}
	return content.Transcript{
		ItemID:     item.ID,
		Text:       "spoken words about " + item.Title,
		Confidence: 0.9,
		Present:    true,
	}, nil
}

type fakeModel struct {
	id      string
	label   analysis.Label
	conf    float64
	failFor map[string]bool
}

func (f *fakeModel) ModelID() string { return f.id }

func (f *fakeModel) Analyze(ctx context.Context, text string, kind content.Kind) (analysis.SentimentVerdict, error) {
	if f.failFor != nil && f.failFor[text] {
		return analysis.SentimentVerdict{}, errors.New("model overloaded")
	}
	return analysis.SentimentVerdict{
		Label:         f.label,
		Confidence:    f.conf,
		Emotions:      &analysis.EmotionVector{Joy: 60},
		Justification: "pattern match",
	}, nil
}

type fakeSynthesizer struct{}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, input analysis.SynthesisInput) (string, error) {
	return fmt.Sprintf("narrative over %d items", len(input.Items)), nil
}

// memStores backs every persistence interface the orchestrator needs.
type memStores struct {
	mu       sync.Mutex
	items    map[string]content.SourceItem
	verdicts []analysis.SentimentVerdict
	fused    map[string]analysis.FusedSentiment
	scores   map[string][]analysis.ImpactScore
	runs     map[string]run.PipelineRun
	profiles map[string]analysis.TopicEmotionProfile
	nodes    map[string][]analysis.GraphNode
	records  map[string]analysis.SynthesisRecord

	scoresErr error
}

func newMemStores() *memStores {
	return &memStores{
		items:    make(map[string]content.SourceItem),
		fused:    make(map[string]analysis.FusedSentiment),
		scores:   make(map[string][]analysis.ImpactScore),
		runs:     make(map[string]run.PipelineRun),
		profiles: make(map[string]analysis.TopicEmotionProfile),
		nodes:    make(map[string][]analysis.GraphNode),
		records:  make(map[string]analysis.SynthesisRecord),
	}
}

func (m *memStores) SaveItem(ctx context.Context, item content.SourceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memStores) SaveVerdict(ctx context.Context, v analysis.SentimentVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, v)
	return nil
}

func (m *memStores) SaveFused(ctx context.Context, f analysis.FusedSentiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fused[f.ItemID] = f
	return nil
}

func (m *memStores) SaveScores(ctx context.Context, topicID string, scores []analysis.ImpactScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scoresErr != nil {
		return m.scoresErr
	}
	m.scores[topicID] = scores
	return nil
}

func (m *memStores) SaveRun(ctx context.Context, r run.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return nil
}

func (m *memStores) GetRun(ctx context.Context, id string) (*run.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return &r, nil
}

func (m *memStores) SaveProfile(ctx context.Context, p analysis.TopicEmotionProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.TopicID] = p
	return nil
}

func (m *memStores) ReplaceGraph(ctx context.Context, topicID string, nodes []analysis.GraphNode, edges []analysis.GraphEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[topicID] = nodes
	return nil
}

func (m *memStores) GetRecord(ctx context.Context, topicID string) (*analysis.SynthesisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[topicID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStores) SaveRecord(ctx context.Context, r analysis.SynthesisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TopicID] = r
	return nil
}

func (m *memStores) LatestItemAt(ctx context.Context, topicID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, item := range m.items {
		if item.TopicID == topicID && item.FetchedAt.After(latest) {
			latest = item.FetchedAt
		}
	}
	return latest, nil
}

func videoItem(id string, views, likes int64) content.SourceItem {
	return content.SourceItem{
		ID:          id,
		Kind:        content.KindVideo,
		Title:       "video " + id,
		Engagement:  content.Engagement{Views: views, Likes: likes, Comments: likes / 2},
		PublishedAt: time.Now().Add(-24 * time.Hour),
	}
}

func articleItem(id string) content.SourceItem {
	return content.SourceItem{
		ID:          id,
		Kind:        content.KindArticle,
		Title:       "article " + id,
		Body:        "body of " + id,
		PublishedAt: time.Now().Add(-48 * time.Hour),
	}
}

func newTestOrchestrator(t *testing.T, stores *memStores, sources []content.SourceAdapter, models []analysis.SentimentModelAdapter) *Orchestrator {
	t.Helper()
	scoringEngine, err := scoring.NewEngine(scoring.Config{})
	require.NoError(t, err)

	cache := synthesis.NewCache(stores, stores, &fakeSynthesizer{}, zap.NewNop())
	broadcaster := NewBroadcaster(nil, zap.NewNop())

	return NewOrchestrator(
		sources,
		&fakeTranscriber{},
		models,
		fusion.NewEngine(fusion.Config{}),
		scoringEngine,
		emotion.NewAggregator(),
		graph.NewBuilder(graph.Config{}),
		cache,
		stores,
		stores,
		stores,
		nil,
		broadcaster,
		zap.NewNop(),
		Config{
			ItemWorkers:     2,
			SourceRetries:   1,
			SourceBackoff:   time.Millisecond,
			ReplayRetention: time.Hour,
		},
	)
}

func waitForTerminal(t *testing.T, o *Orchestrator, runID string) run.PipelineRun {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r, err := o.GetRun(context.Background(), runID)
		require.NoError(t, err)
		if r.State.Terminal() {
			return *r
		}
		select {
		case <-deadline:
			t.Fatalf("run %s did not reach a terminal state, last stage %s", runID, r.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func stagesOf(r run.PipelineRun) []run.Stage {
	stages := make([]run.Stage, 0, len(r.StageHistory))
	for _, tr := range r.StageHistory {
		stages = append(stages, tr.Stage)
	}
	return stages
}

func TestRunCompletesThroughAllStages(t *testing.T) {
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindVideo, items: []content.SourceItem{videoItem("v1", 1000, 100)}},
		&fakeSource{kind: content.KindArticle, items: []content.SourceItem{articleItem("a1")}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelPositive, conf: 0.7},
		&fakeModel{id: "generative", label: analysis.LabelPositive, conf: 0.9},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "electric cars")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageComplete, final.State)
	assert.Equal(t, []run.Stage{
		run.StageCreated,
		run.StageFetchingSources,
		run.StageTranscribing,
		run.StageAnalyzingSentiment,
		run.StageScoring,
		run.StageBuildingGraph,
		run.StageSynthesizing,
		run.StageComplete,
	}, stagesOf(final))

	topicID := TopicIDFor("electric cars")
	assert.Len(t, stores.scores[topicID], 2)
	assert.Len(t, stores.nodes[topicID], 2)
	assert.NotEmpty(t, stores.records[topicID].Narrative)
	assert.Equal(t, 2, final.Stats.ItemCount)
	assert.Equal(t, 1, final.Stats.VideoCount)
	assert.Equal(t, "positive", final.Stats.DominantLabel)
}

func TestTranscribingSkippedWithoutVideos(t *testing.T) {
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindArticle, items: []content.SourceItem{articleItem("a1"), articleItem("a2")}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelNeutral, conf: 0.6},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "quarterly earnings")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageComplete, final.State)
	assert.NotContains(t, stagesOf(final), run.StageTranscribing)
}

func TestItemDegradedWhenAllModelsFail(t *testing.T) {
	bad := articleItem("a-bad")
	good := articleItem("a-good")
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindArticle, items: []content.SourceItem{bad, good}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelPositive, conf: 0.8,
			failFor: map[string]bool{bad.AnalysisText(): true}},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "supply chain")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageComplete, final.State)

	topicID := TopicIDFor("supply chain")
	scores := stores.scores[topicID]
	require.Len(t, scores, 1)
	assert.Equal(t, good.ID, scores[0].ItemID)
	badFused, hasFused := stores.fused[bad.ID]
	require.True(t, hasFused)
	assert.Equal(t, analysis.LabelUnknown, badFused.Label)
	assert.Zero(t, badFused.Confidence)
	assert.Empty(t, badFused.ContributingModels)
	assert.Equal(t, 2, final.Stats.ItemCount)
	assert.Equal(t, 1, final.Stats.ScoredCount)
}

func TestRunFailsWhenAllSourcesEmpty(t *testing.T) {
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindVideo, err: &content.SourceFetchError{
			Kind: content.KindVideo, Provider: "fake", Err: content.ErrNoContent}},
		&fakeSource{kind: content.KindArticle, items: nil},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelNeutral, conf: 0.5},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "obscure topic")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageError, final.State)
	assert.Contains(t, final.Error, "no items found")
}

func TestOneEmptySourceKindDegrades(t *testing.T) {
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindVideo, err: errors.New("quota exceeded")},
		&fakeSource{kind: content.KindArticle, items: []content.SourceItem{articleItem("a1")}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelNegative, conf: 0.7},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "rate limited topic")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageComplete, final.State)
	assert.Equal(t, 1, final.Stats.ItemCount)
}

func TestCancelMovesRunToCancelled(t *testing.T) {
	stores := newMemStores()
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindArticle, delay: 5 * time.Second,
			items: []content.SourceItem{articleItem("a1")}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelNeutral, conf: 0.5},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "slow topic")
	require.NoError(t, err)

	// Let the run enter FetchingSources before cancelling.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, o.Cancel(runID))

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageCancelled, final.State)
	assert.True(t, final.CancelRequested)
	assert.Empty(t, stores.scores[TopicIDFor("slow topic")])
}

func TestCancelUnknownRun(t *testing.T) {
	stores := newMemStores()
	o := newTestOrchestrator(t, stores, nil, nil)
	defer o.Stop(context.Background())

	err := o.Cancel("no-such-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, run.ErrNotFound)
}

func TestScorePersistenceFailureIsFatal(t *testing.T) {
	stores := newMemStores()
	stores.scoresErr = errors.New("connection refused")
	sources := []content.SourceAdapter{
		&fakeSource{kind: content.KindArticle, items: []content.SourceItem{articleItem("a1")}},
	}
	models := []analysis.SentimentModelAdapter{
		&fakeModel{id: "lexicon", label: analysis.LabelPositive, conf: 0.8},
	}
	o := newTestOrchestrator(t, stores, sources, models)
	defer o.Stop(context.Background())

	runID, err := o.Start(context.Background(), "db down")
	require.NoError(t, err)

	final := waitForTerminal(t, o, runID)
	assert.Equal(t, run.StageError, final.State)
	assert.Contains(t, final.Error, "impact scores")
}

func TestSameTopicSharesTopicID(t *testing.T) {
	assert.Equal(t, TopicIDFor("Electric Cars"), TopicIDFor("electric  cars "))
	assert.NotEqual(t, TopicIDFor("electric cars"), TopicIDFor("electric bikes"))
}
