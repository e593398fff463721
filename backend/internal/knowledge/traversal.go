package knowledge

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"content-graph/backend/internal/graph"
)

// RelatedNode is one node reached by a traversal
type RelatedNode struct {
	Node  graph.Node `json:"node"`
	Depth int        `json:"depth"`
	// Relationships discovered while walking into this node
	Relationships []graph.Relationship `json:"relationships"`
}

// TraversalResult is the de-duplicated output of GetRelatedNodes
type TraversalResult struct {
	Nodes []RelatedNode `json:"nodes"`
}

// branch is one walk from the seed; path holds every node id on it.
type branch struct {
	id   string
	path []string
}

func (b branch) visited(id string) bool {
	for _, p := range b.path {
		if p == id {
			return true
		}
	}
	return false
}

func (b branch) extend(id string) branch {
	path := make([]string, len(b.path), len(b.path)+1)
	copy(path, b.path)
	return branch{id: id, path: append(path, id)}
}

// GetRelatedNodes walks outward from nodeID for up to maxDepth hops,
// following edges in both directions and never revisiting a node on the
// same path. Each node appears once, at the smallest depth it was reached.
// maxDepth is clamped to the engine ceiling. A missing seed yields an empty
// result rather than an error.
func (e *Engine) GetRelatedNodes(ctx context.Context, nodeID string, maxDepth int, types []graph.RelationshipType) (*TraversalResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	result := &TraversalResult{Nodes: []RelatedNode{}}

	seeds, err := e.store.GetNodes(ctx, []string{nodeID})
	if err != nil {
		return nil, err
	}
	if _, ok := seeds[nodeID]; !ok {
		return result, nil
	}

	depth := e.clampDepth(maxDepth)
	minDepth := map[string]int{nodeID: 0}
	discovered := map[string][]graph.Relationship{}
	seen := map[string]map[string]bool{}

	frontier := []branch{{id: nodeID, path: []string{nodeID}}}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		edges, err := e.store.IncidentRelationships(ctx, frontierIDs(frontier), types)
		if err != nil {
			return nil, err
		}
		byNode := indexByEndpoint(edges)

		var next []branch
		for _, b := range frontier {
			for _, rel := range byNode[b.id] {
				m := rel.Other(b.id)
				if b.visited(m) {
					continue
				}

				if seen[m] == nil {
					seen[m] = map[string]bool{}
				}
				if !seen[m][rel.ID] {
					seen[m][rel.ID] = true
					discovered[m] = append(discovered[m], rel)
				}
				if cur, ok := minDepth[m]; !ok || d+1 < cur {
					minDepth[m] = d + 1
				}
				next = append(next, b.extend(m))
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(minDepth))
	for id := range minDepth {
		ids = append(ids, id)
	}
	nodes, err := e.store.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	for id, d := range minDepth {
		node, ok := nodes[id]
		if !ok {
			continue
		}
		rels := discovered[id]
		if rels == nil {
			rels = []graph.Relationship{}
		}
		sortRelationships(rels)
		result.Nodes = append(result.Nodes, RelatedNode{Node: node, Depth: d, Relationships: rels})
	}
	sort.Slice(result.Nodes, func(i, j int) bool {
		a, b := result.Nodes[i], result.Nodes[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if !a.Node.CreatedAt.Equal(b.Node.CreatedAt) {
			return a.Node.CreatedAt.Before(b.Node.CreatedAt)
		}
		return a.Node.ID < b.Node.ID
	})

	e.logger.Debug("Traversed graph",
		zap.String("seed", nodeID),
		zap.Int("depth", depth),
		zap.Int("nodes", len(result.Nodes)))
	return result, nil
}

func (e *Engine) clampDepth(d int) int {
	if d < 0 {
		return 0
	}
	if d > e.maxDepth {
		return e.maxDepth
	}
	return d
}

func frontierIDs(frontier []branch) []string {
	seen := make(map[string]bool, len(frontier))
	ids := make([]string, 0, len(frontier))
	for _, b := range frontier {
		if !seen[b.id] {
			seen[b.id] = true
			ids = append(ids, b.id)
		}
	}
	return ids
}

// indexByEndpoint files each edge under both of its endpoints; a self-loop once.
func indexByEndpoint(edges []graph.Relationship) map[string][]graph.Relationship {
	idx := make(map[string][]graph.Relationship, len(edges))
	for _, rel := range edges {
		idx[rel.FromID] = append(idx[rel.FromID], rel)
		if rel.ToID != rel.FromID {
			idx[rel.ToID] = append(idx[rel.ToID], rel)
		}
	}
	return idx
}

func sortRelationships(rels []graph.Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].CreatedAt.Before(rels[j].CreatedAt)
		}
		return rels[i].ID < rels[j].ID
	})
}
