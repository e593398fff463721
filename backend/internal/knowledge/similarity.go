package knowledge

import (
	"context"

	"go.uber.org/zap"

	"content-graph/backend/internal/graph"
	apperrors "content-graph/backend/pkg/errors"
)

// LinkSimilar writes similar_to edges from node to its nearest same-type
// neighbours whose similarity exceeds the threshold. The link is one-way;
// neighbours get edges back only when they are linked themselves. Finding
// no neighbour above the threshold is not an error.
func (e *Engine) LinkSimilar(ctx context.Context, node *graph.Node) ([]graph.Relationship, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if node == nil || node.ID == "" {
		return nil, apperrors.NewValidationError("node", "node is required")
	}
	if len(node.Embedding) == 0 {
		return nil, apperrors.NewValidationError("embedding", "node has no embedding")
	}

	neighbors, err := e.store.NearestNeighbors(ctx, node.Type, node.ID, node.Embedding, e.candidates)
	if err != nil {
		return nil, err
	}

	links := make([]graph.Relationship, 0, len(neighbors))
	for _, n := range neighbors {
		similarity := n.Similarity()
		if n.Node.ID == node.ID || n.Node.Type != node.Type || similarity <= e.threshold {
			continue
		}

		rel, err := e.UpsertRelationship(ctx, graph.RelationshipInput{
			FromID: node.ID,
			ToID:   n.Node.ID,
			Type:   graph.RelSimilarTo,
			Weight: similarity,
			Properties: graph.Properties{
				"similarity": graph.Number(similarity),
				"method":     graph.String("cosine"),
			},
		})
		if err != nil {
			return links, err
		}
		links = append(links, *rel)
	}

	e.metrics.RecordSimilarityLinks(len(links))
	e.logger.Debug("Linked similar nodes",
		zap.String("node_id", node.ID),
		zap.Int("candidates", len(neighbors)),
		zap.Int("links", len(links)))
	return links, nil
}
