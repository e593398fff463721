package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"content-graph/backend/pkg/logger"

	apperrors "content-graph/backend/pkg/errors"
)

// Repository is the Neo4j-backed Store. Every node carries the GraphNode
// label with (type, name) uniqueness; every edge is a RELATES relationship
// keyed by its type property.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

// RepositoryOption customises a Repository
type RepositoryOption func(*Repository)

// WithDatabase selects a named Neo4j database
func WithDatabase(name string) RepositoryOption {
	return func(r *Repository) { r.database = name }
}

// WithQueryTimeout bounds every store call
func WithQueryTimeout(d time.Duration) RepositoryOption {
	return func(r *Repository) { r.timeout = d }
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, opts ...RepositoryOption) *Repository {
	r := &Repository{
		driver:  driver,
		timeout: 10 * time.Second,
		logger:  logger.Named("neo4j_store"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureSchema creates the uniqueness constraints and indexes the upserts rely on
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT graph_node_type_name IF NOT EXISTS FOR (n:GraphNode) REQUIRE (n.type, n.name) IS UNIQUE`,
		`CREATE CONSTRAINT graph_node_id IF NOT EXISTS FOR (n:GraphNode) REQUIRE n.id IS UNIQUE`,
		`CREATE INDEX graph_node_type IF NOT EXISTS FOR (n:GraphNode) ON (n.type)`,
		`CREATE INDEX relates_type IF NOT EXISTS FOR ()-[r:RELATES]-() ON (r.type)`,
	}
	for _, stmt := range statements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return apperrors.NewStorageError("ensure schema", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return apperrors.NewStorageError("ensure schema", err)
		}
	}

	r.logger.Info("Graph schema ensured", zap.Int("statements", len(statements)))
	return nil
}

const nodeReturn = `
		n.id AS id, n.type AS type, n.name AS name,
		n.properties_json AS properties_json, n.embedding AS embedding,
		n.created_at AS created_at, n.updated_at AS updated_at`

const relReturn = `
		r.id AS id, startNode(r).id AS from_id, endNode(r).id AS to_id,
		r.type AS type, r.weight AS weight,
		r.properties_json AS properties_json, r.created_at AS created_at`

// UpsertNode merges a node on (type, name), replacing properties and embedding
func (r *Repository) UpsertNode(ctx context.Context, in NodeInput) (*Node, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	propsJSON, err := encodeProperties(in.Properties)
	if err != nil {
		return nil, apperrors.NewStorageError("encode node properties", err)
	}

	query := `
		MERGE (n:GraphNode {type: $type, name: $name})
		ON CREATE SET n.id = $id, n.created_at = datetime($now)
		SET n.properties_json = $properties,
		    n.embedding = $embedding,
		    n.updated_at = datetime($now)
		RETURN` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"type":       string(in.Type),
		"name":       in.Name,
		"id":         uuid.New().String(),
		"properties": propsJSON,
		"embedding":  vectorParam(in.Embedding),
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("upsert node", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("upsert node", err)
	}

	node, err := nodeFromRecord(record)
	if err != nil {
		return nil, apperrors.NewStorageError("decode node", err)
	}

	r.logger.Debug("Node upserted",
		zap.String("node_id", node.ID),
		zap.String("node_type", string(node.Type)),
		zap.String("name", node.Name),
	)
	return node, nil
}

// UpsertRelationship merges an edge on (from, to, type). Missing endpoints
// produce no row, which is surfaced as a storage error.
func (r *Repository) UpsertRelationship(ctx context.Context, in RelationshipInput) (*Relationship, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	propsJSON, err := encodeProperties(in.Properties)
	if err != nil {
		return nil, apperrors.NewStorageError("encode relationship properties", err)
	}

	query := `
		MATCH (a:GraphNode {id: $fromID})
		MATCH (b:GraphNode {id: $toID})
		MERGE (a)-[r:RELATES {type: $type}]->(b)
		ON CREATE SET r.id = $id
		SET r.properties_json = $properties,
		    r.weight = $weight,
		    r.created_at = datetime($now)
		RETURN` + relReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"fromID":     in.FromID,
		"toID":       in.ToID,
		"type":       string(in.Type),
		"id":         uuid.New().String(),
		"properties": propsJSON,
		"weight":     in.Weight,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("upsert relationship", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, apperrors.NewStorageError("upsert relationship", err)
		}
		return nil, apperrors.NewStorageError("upsert relationship",
			fmt.Errorf("endpoint nodes %s -> %s do not exist", in.FromID, in.ToID))
	}

	rel, err := relationshipFromRecord(result.Record())
	if err != nil {
		return nil, apperrors.NewStorageError("decode relationship", err)
	}
	return rel, nil
}

// GetNodes fetches nodes by id
func (r *Repository) GetNodes(ctx context.Context, ids []string) (map[string]Node, error) {
	out := make(map[string]Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:GraphNode)
		WHERE n.id IN $ids
		RETURN` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, apperrors.NewStorageError("get nodes", err)
	}

	for result.Next(ctx) {
		node, err := nodeFromRecord(result.Record())
		if err != nil {
			return nil, apperrors.NewStorageError("decode node", err)
		}
		out[node.ID] = *node
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("get nodes", err)
	}
	return out, nil
}

// IncidentRelationships returns edges touching any of ids, either direction
func (r *Repository) IncidentRelationships(ctx context.Context, ids []string, types []RelationshipType) ([]Relationship, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var typeFilter interface{}
	if len(types) > 0 {
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		typeFilter = names
	}

	query := `
		MATCH (n:GraphNode)-[r:RELATES]-(:GraphNode)
		WHERE n.id IN $ids AND ($types IS NULL OR r.type IN $types)
		WITH DISTINCT r
		RETURN` + relReturn + `
		ORDER BY created_at ASC`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"ids":   ids,
		"types": typeFilter,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("incident relationships", err)
	}

	var rels []Relationship
	for result.Next(ctx) {
		rel, err := relationshipFromRecord(result.Record())
		if err != nil {
			return nil, apperrors.NewStorageError("decode relationship", err)
		}
		rels = append(rels, *rel)
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("incident relationships", err)
	}
	return rels, nil
}

// NearestNeighbors loads same-type embedded nodes and ranks them by cosine
// distance in process.
func (r *Repository) NearestNeighbors(ctx context.Context, nodeType NodeType, excludeID string, embedding []float32, k int) ([]Neighbor, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:GraphNode {type: $type})
		WHERE n.id <> $excludeID AND n.embedding IS NOT NULL AND size(n.embedding) = $dims
		RETURN` + nodeReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"type":      string(nodeType),
		"excludeID": excludeID,
		"dims":      len(embedding),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("nearest neighbors", err)
	}

	var candidates []Node
	for result.Next(ctx) {
		node, err := nodeFromRecord(result.Record())
		if err != nil {
			return nil, apperrors.NewStorageError("decode node", err)
		}
		candidates = append(candidates, *node)
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("nearest neighbors", err)
	}

	return rankNeighbors(candidates, embedding, k), nil
}

// ConnectionStats ranks nodes of a type by degree, then by mean edge weight
func (r *Repository) ConnectionStats(ctx context.Context, nodeType NodeType, limit int) ([]ConnectionStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (n:GraphNode {type: $type})
		OPTIONAL MATCH (n)-[r:RELATES]-(:GraphNode)
		WITH n, count(DISTINCT r) AS strength, coalesce(avg(r.weight), 0.0) AS avg_weight
		RETURN` + nodeReturn + `, strength, avg_weight
		ORDER BY strength DESC, avg_weight DESC, created_at ASC
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"type":  string(nodeType),
		"limit": limit,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("connection stats", err)
	}

	var stats []ConnectionStats
	for result.Next(ctx) {
		record := result.Record()
		node, err := nodeFromRecord(record)
		if err != nil {
			return nil, apperrors.NewStorageError("decode node", err)
		}
		stats = append(stats, ConnectionStats{
			Node:               *node,
			ConnectionStrength: getInt64FromRecord(record, "strength"),
			AvgWeight:          getFloat64FromRecord(record, "avg_weight"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("connection stats", err)
	}
	return stats, nil
}

// NodeCounts counts nodes grouped by type
func (r *Repository) NodeCounts(ctx context.Context) (map[NodeType]int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n:GraphNode)
		RETURN n.type AS type, count(n) AS count
	`, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("node counts", err)
	}

	counts := make(map[NodeType]int64)
	for result.Next(ctx) {
		record := result.Record()
		counts[NodeType(getStringFromRecord(record, "type"))] = getInt64FromRecord(record, "count")
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("node counts", err)
	}
	return counts, nil
}

// RelationshipCounts counts relationships and averages weight by type
func (r *Repository) RelationshipCounts(ctx context.Context) (map[RelationshipType]RelationshipTypeStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (:GraphNode)-[r:RELATES]->(:GraphNode)
		RETURN r.type AS type, count(r) AS count, avg(r.weight) AS avg_weight
	`, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("relationship counts", err)
	}

	stats := make(map[RelationshipType]RelationshipTypeStats)
	for result.Next(ctx) {
		record := result.Record()
		stats[RelationshipType(getStringFromRecord(record, "type"))] = RelationshipTypeStats{
			Count:     getInt64FromRecord(record, "count"),
			AvgWeight: getFloat64FromRecord(record, "avg_weight"),
		}
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageError("relationship counts", err)
	}
	return stats, nil
}

func nodeFromRecord(record *neo4j.Record) (*Node, error) {
	props, err := decodeProperties(getStringFromRecord(record, "properties_json"))
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	return &Node{
		ID:         getStringFromRecord(record, "id"),
		Type:       NodeType(getStringFromRecord(record, "type")),
		Name:       getStringFromRecord(record, "name"),
		Properties: props,
		Embedding:  getVectorFromRecord(record, "embedding"),
		CreatedAt:  getTimeFromRecord(record, "created_at"),
		UpdatedAt:  getTimeFromRecord(record, "updated_at"),
	}, nil
}

func relationshipFromRecord(record *neo4j.Record) (*Relationship, error) {
	props, err := decodeProperties(getStringFromRecord(record, "properties_json"))
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	return &Relationship{
		ID:         getStringFromRecord(record, "id"),
		FromID:     getStringFromRecord(record, "from_id"),
		ToID:       getStringFromRecord(record, "to_id"),
		Type:       RelationshipType(getStringFromRecord(record, "type")),
		Properties: props,
		Weight:     getFloat64FromRecord(record, "weight"),
		CreatedAt:  getTimeFromRecord(record, "created_at"),
	}, nil
}

// vectorParam converts an embedding into a Neo4j list parameter; nil removes the property
func vectorParam(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
