package knowledge

import (
	"context"

	"golang.org/x/sync/errgroup"

	"content-graph/backend/internal/graph"
	apperrors "content-graph/backend/pkg/errors"
)

const (
	DefaultRecommendationLimit = 10
	MaxRecommendationLimit     = 100
)

// GetRecommendations ranks nodes of nodeType by incident edge count, ties
// broken by average edge weight. userContext is accepted for callers that
// already send it; ranking does not read it.
func (e *Engine) GetRecommendations(ctx context.Context, nodeType graph.NodeType, limit int, userContext graph.Properties) ([]graph.ConnectionStats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if nodeType == "" {
		return nil, apperrors.NewValidationError("node_type", "node type is required")
	}

	switch {
	case limit <= 0:
		limit = DefaultRecommendationLimit
	case limit > MaxRecommendationLimit:
		limit = MaxRecommendationLimit
	}

	stats, err := e.store.ConnectionStats(ctx, nodeType, limit)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []graph.ConnectionStats{}
	}
	return stats, nil
}

// GraphStatistics summarises the graph by type
type GraphStatistics struct {
	Nodes         NodeStatistics         `json:"nodes"`
	Relationships RelationshipStatistics `json:"relationships"`
}

type NodeStatistics struct {
	Total  int64                    `json:"total"`
	ByType map[graph.NodeType]int64 `json:"by_type"`
}

type RelationshipStatistics struct {
	Total  int64                                                  `json:"total"`
	ByType map[graph.RelationshipType]graph.RelationshipTypeStats `json:"by_type"`
}

// GetGraphStatistics counts nodes and relationships grouped by type
func (e *Engine) GetGraphStatistics(ctx context.Context) (*GraphStatistics, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var (
		nodeCounts map[graph.NodeType]int64
		relCounts  map[graph.RelationshipType]graph.RelationshipTypeStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodeCounts, err = e.store.NodeCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		relCounts, err = e.store.RelationshipCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &GraphStatistics{
		Nodes:         NodeStatistics{ByType: map[graph.NodeType]int64{}},
		Relationships: RelationshipStatistics{ByType: map[graph.RelationshipType]graph.RelationshipTypeStats{}},
	}
	for t, n := range nodeCounts {
		stats.Nodes.ByType[t] = n
		stats.Nodes.Total += n
	}
	for t, s := range relCounts {
		stats.Relationships.ByType[t] = s
		stats.Relationships.Total += s.Count
	}
	return stats, nil
}
