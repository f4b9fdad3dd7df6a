package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactlens/internal/domain/analysis"
)

func TestBuildCapsNodesAtMax(t *testing.T) {
	b := NewBuilder(Config{})

	var items []Input
	for i := 0; i < 20; i++ {
		items = append(items, Input{
			ItemID:    fmt.Sprintf("item-%02d", i),
			Label:     analysis.LabelNeutral,
			Composite: float64(i) * 0.2,
		})
	}

	nodes, edges := b.Build(items)
	assert.Len(t, nodes, DefaultMaxNodes)

	ids := map[string]bool{}
	for _, n := range nodes {
		ids[n.ItemID] = true
	}
	for _, e := range edges {
		assert.True(t, ids[e.SourceID], "edge source must be a node")
		assert.True(t, ids[e.TargetID], "edge target must be a node")
		assert.NotEqual(t, e.SourceID, e.TargetID)
	}
}

func TestBuildLargestNodeIsTopScorer(t *testing.T) {
	b := NewBuilder(Config{})

	nodes, _ := b.Build([]Input{
		{ItemID: "low", Label: analysis.LabelPositive, Composite: 1.0},
		{ItemID: "top", Label: analysis.LabelPositive, Composite: 4.8},
		{ItemID: "mid", Label: analysis.LabelNegative, Composite: 2.5},
	})
	require.Len(t, nodes, 3)

	// Selection is composite-descending, so the top scorer is first and
	// carries the full radius span.
	assert.Equal(t, "top", nodes[0].ItemID)
	for _, n := range nodes[1:] {
		assert.Less(t, n.Radius, nodes[0].Radius)
	}
	assert.InDelta(t, DefaultBaseNodeRadius+DefaultNodeRadiusSpan, nodes[0].Radius, 1e-9)
}

func TestBuildDeterministicTieBreakByID(t *testing.T) {
	b := NewBuilder(Config{MaxNodes: 2})

	nodes, _ := b.Build([]Input{
		{ItemID: "ccc", Composite: 3.0},
		{ItemID: "aaa", Composite: 3.0},
		{ItemID: "bbb", Composite: 3.0},
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, "aaa", nodes[0].ItemID)
	assert.Equal(t, "bbb", nodes[1].ItemID)
}

func TestEdgeReasons(t *testing.T) {
	b := NewBuilder(Config{})

	_, edges := b.Build([]Input{
		{ItemID: "a", Label: analysis.LabelPositive, Composite: 4.0},
		{ItemID: "b", Label: analysis.LabelPositive, Composite: 1.0},
		{ItemID: "c", Label: analysis.LabelNegative, Composite: 3.5},
	})

	reasons := map[string]analysis.EdgeReason{}
	for _, e := range edges {
		reasons[e.SourceID+"-"+e.TargetID] = e.Reason
	}

	// a and b share a label despite distant scores.
	assert.Equal(t, analysis.EdgeSameSentiment, reasons["a-b"])
	// a and c differ in label but 4.0 vs 3.5 is within 20% of 4.0.
	assert.Equal(t, analysis.EdgeSimilarImpact, reasons["a-c"])
	// b and c share nothing: labels differ, 1.0 vs 3.5 is far apart.
	assert.Len(t, edges, 2)
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewBuilder(Config{})

	nodes, edges := b.Build(nil)
	assert.Empty(t, nodes)
	assert.Empty(t, edges)
}
