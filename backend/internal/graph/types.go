package graph

import (
	"fmt"
	"time"
)

// ============================================================================
// Graph Types
// ============================================================================

// NodeType is the category of a node. The set is open; these are the kinds
// the ingestion pipelines produce.
type NodeType string

const (
	NodeTypePost             NodeType = "post"
	NodeTypeCategory         NodeType = "category"
	NodeTypeTag              NodeType = "tag"
	NodeTypeAuthor           NodeType = "author"
	NodeTypeGame             NodeType = "game"
	NodeTypePlayer           NodeType = "player"
	NodeTypeAchievement      NodeType = "achievement"
	NodeTypeSportsTeam       NodeType = "sports_team"
	NodeTypeSportsPlayer     NodeType = "sports_player"
	NodeTypeChatConversation NodeType = "chat_conversation"
	NodeTypeDocument         NodeType = "document"
	NodeTypeConcept          NodeType = "concept"
)

// RelationshipType is the category of a directed edge. Open set.
type RelationshipType string

const (
	RelAuthoredBy    RelationshipType = "authored_by"
	RelCategorizedAs RelationshipType = "categorized_as"
	RelTaggedWith    RelationshipType = "tagged_with"
	RelRelatedTo     RelationshipType = "related_to"
	RelPartOf        RelationshipType = "part_of"
	RelSimilarTo     RelationshipType = "similar_to"
	RelPlayedBy      RelationshipType = "played_by"
	RelAchievedBy    RelationshipType = "achieved_by"
	RelCompetesIn    RelationshipType = "competes_in"
	RelMentions      RelationshipType = "mentions"
	RelReferences    RelationshipType = "references"
	RelFollows       RelationshipType = "follows"
	RelInteractsWith RelationshipType = "interacts_with"
)

// Node represents a typed, named entity. (Type, Name) is unique.
type Node struct {
	ID         string     `json:"id"`
	Type       NodeType   `json:"type"`
	Name       string     `json:"name"`
	Properties Properties `json:"properties"`
	Embedding  []float32  `json:"embedding,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Relationship represents a directed, weighted edge. (FromID, ToID, Type) is unique.
type Relationship struct {
	ID         string           `json:"id"`
	FromID     string           `json:"from_id"`
	ToID       string           `json:"to_id"`
	Type       RelationshipType `json:"type"`
	Properties Properties       `json:"properties"`
	Weight     float64          `json:"weight"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Other returns the endpoint of r that is not nodeID
func (r Relationship) Other(nodeID string) string {
	if r.FromID == nodeID {
		return r.ToID
	}
	return r.FromID
}

// NodeInput is the upsert payload for a node
type NodeInput struct {
	Type       NodeType   `json:"type" validate:"required"`
	Name       string     `json:"name" validate:"required"`
	Properties Properties `json:"properties"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// RelationshipInput is the upsert payload for a relationship
type RelationshipInput struct {
	FromID     string           `json:"from_id" validate:"required"`
	ToID       string           `json:"to_id" validate:"required"`
	Type       RelationshipType `json:"type" validate:"required"`
	Properties Properties       `json:"properties"`
	Weight     float64          `json:"weight"`
}

// Neighbor is a candidate returned by a nearest-neighbour query
type Neighbor struct {
	Node     Node    `json:"node"`
	Distance float64 `json:"distance"`
}

// Similarity converts a cosine distance in [0,2] back to a similarity
func (n Neighbor) Similarity() float64 {
	return 1 - n.Distance
}

// ConnectionStats is a node ranked by how connected it is
type ConnectionStats struct {
	Node               Node    `json:"node"`
	ConnectionStrength int64   `json:"connection_strength"`
	AvgWeight          float64 `json:"avg_weight"`
}

// RelationshipTypeStats aggregates relationships of one type
type RelationshipTypeStats struct {
	Count     int64   `json:"count"`
	AvgWeight float64 `json:"avg_weight"`
}

// ErrNodeNotFound is returned when a node id does not resolve
type ErrNodeNotFound struct {
	NodeID string
}

func (e ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node not found: %s", e.NodeID)
}
