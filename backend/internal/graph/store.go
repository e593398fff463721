package graph

import "context"

// Store is the persistence contract shared by the Neo4j and in-memory
// backends. Implementations must make both upserts idempotent on their
// uniqueness keys and reject relationships whose endpoints do not exist.
type Store interface {
	// UpsertNode inserts or replaces the node keyed by (Type, Name). ID and
	// CreatedAt survive replacement; Properties and Embedding do not merge.
	UpsertNode(ctx context.Context, in NodeInput) (*Node, error)

	// UpsertRelationship inserts or replaces the edge keyed by (FromID, ToID, Type).
	UpsertRelationship(ctx context.Context, in RelationshipInput) (*Relationship, error)

	// GetNodes returns the nodes that exist among ids, keyed by id.
	GetNodes(ctx context.Context, ids []string) (map[string]Node, error)

	// IncidentRelationships returns every edge touching any of ids in either
	// direction, restricted to types when types is non-empty.
	IncidentRelationships(ctx context.Context, ids []string, types []RelationshipType) ([]Relationship, error)

	// NearestNeighbors returns up to k nodes of nodeType other than excludeID,
	// ordered by ascending cosine distance to embedding.
	NearestNeighbors(ctx context.Context, nodeType NodeType, excludeID string, embedding []float32, k int) ([]Neighbor, error)

	// ConnectionStats ranks nodes of nodeType by incident edge count, then by
	// average edge weight.
	ConnectionStats(ctx context.Context, nodeType NodeType, limit int) ([]ConnectionStats, error)

	// NodeCounts counts nodes grouped by type.
	NodeCounts(ctx context.Context) (map[NodeType]int64, error)

	// RelationshipCounts counts relationships and averages weight grouped by type.
	RelationshipCounts(ctx context.Context) (map[RelationshipType]RelationshipTypeStats, error)

	Close(ctx context.Context) error
}
