package graph

import (
	"math"
	"sort"

	"impactlens/internal/domain/analysis"
)

// Defaults for the circular layout. Coordinates target a 500x500 canvas.
const (
	DefaultMaxNodes           = 12
	DefaultCenter             = 250.0
	DefaultLayoutRadius       = 180.0
	DefaultBaseNodeRadius     = 12.0
	DefaultNodeRadiusSpan     = 28.0
	DefaultSimilarImpactRatio = 0.2
)

// Config contains configuration for the graph builder.
type Config struct {
	MaxNodes           int
	CenterX            float64
	CenterY            float64
	LayoutRadius       float64
	BaseNodeRadius     float64
	NodeRadiusSpan     float64
	SimilarImpactRatio float64
}

// Builder derives the bounded visualization graph from scored items.
type Builder struct {
	config Config
}

// NewBuilder creates a new graph builder.
func NewBuilder(config Config) *Builder {
	if config.MaxNodes <= 0 {
		config.MaxNodes = DefaultMaxNodes
	}
	if config.CenterX == 0 {
		config.CenterX = DefaultCenter
	}
	if config.CenterY == 0 {
		config.CenterY = DefaultCenter
	}
	if config.LayoutRadius <= 0 {
		config.LayoutRadius = DefaultLayoutRadius
	}
	if config.BaseNodeRadius <= 0 {
		config.BaseNodeRadius = DefaultBaseNodeRadius
	}
	if config.NodeRadiusSpan <= 0 {
		config.NodeRadiusSpan = DefaultNodeRadiusSpan
	}
	if config.SimilarImpactRatio <= 0 {
		config.SimilarImpactRatio = DefaultSimilarImpactRatio
	}
	return &Builder{config: config}
}

// Input is one scored item considered for the graph.
type Input struct {
	ItemID    string
	Label     analysis.Label
	Composite float64
}

// Build selects the top MaxNodes items by composite score and lays them
// out on a circle. Selection is deterministic: composite descending,
// item id ascending on ties. Edges connect nodes sharing a fused label
// or whose composites differ by less than the similar-impact ratio of
// the larger score.
func (b *Builder) Build(items []Input) ([]analysis.GraphNode, []analysis.GraphEdge) {
	selected := make([]Input, len(items))
	copy(selected, items)
	sort.Slice(selected, func(i, j int) bool {
		if selected[i].Composite != selected[j].Composite {
			return selected[i].Composite > selected[j].Composite
		}
		return selected[i].ItemID < selected[j].ItemID
	})
	if len(selected) > b.config.MaxNodes {
		selected = selected[:b.config.MaxNodes]
	}
	if len(selected) == 0 {
		return nil, nil
	}

	maxComposite := selected[0].Composite

	nodes := make([]analysis.GraphNode, 0, len(selected))
	for i, item := range selected {
		angle := float64(i) * 2 * math.Pi / float64(len(selected))
		radius := b.config.BaseNodeRadius
		if maxComposite > 0 {
			radius += (item.Composite / maxComposite) * b.config.NodeRadiusSpan
		}
		nodes = append(nodes, analysis.GraphNode{
			ItemID: item.ItemID,
			X:      b.config.CenterX + b.config.LayoutRadius*math.Cos(angle),
			Y:      b.config.CenterY + b.config.LayoutRadius*math.Sin(angle),
			Radius: radius,
		})
	}

	var edges []analysis.GraphEdge
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			reason, ok := b.edgeReason(selected[i], selected[j])
			if !ok {
				continue
			}
			edges = append(edges, analysis.GraphEdge{
				SourceID: selected[i].ItemID,
				TargetID: selected[j].ItemID,
				Reason:   reason,
			})
		}
	}
	return nodes, edges
}

// edgeReason prefers same_sentiment when both conditions hold.
func (b *Builder) edgeReason(a, c Input) (analysis.EdgeReason, bool) {
	if a.Label == c.Label {
		return analysis.EdgeSameSentiment, true
	}
	larger := math.Max(a.Composite, c.Composite)
	if larger > 0 && math.Abs(a.Composite-c.Composite) < b.config.SimilarImpactRatio*larger {
		return analysis.EdgeSimilarImpact, true
	}
	return "", false
}
