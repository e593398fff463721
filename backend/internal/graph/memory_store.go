package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "content-graph/backend/pkg/errors"
)

// ============================================================================
// In-memory Store
// ============================================================================

type nodeKey struct {
	Type NodeType
	Name string
}

type relKey struct {
	FromID string
	ToID   string
	Type   RelationshipType
}

// MemoryStore is a process-local Store used for development and tests. The
// mutex plays the role of the database's per-row conditional upsert.
type MemoryStore struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	nodeIndex map[nodeKey]string
	rels      map[string]*Relationship
	relIndex  map[relKey]string
	relOrder  []string
	lastTick  time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory graph
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:     make(map[string]*Node),
		nodeIndex: make(map[nodeKey]string),
		rels:      make(map[string]*Relationship),
		relIndex:  make(map[relKey]string),
		now:       time.Now,
	}
}

// tick returns a strictly increasing timestamp so creation order is total
func (s *MemoryStore) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Nanosecond)
	}
	s.lastTick = t
	return t
}

// UpsertNode inserts or replaces a node by (type, name)
func (s *MemoryStore) UpsertNode(ctx context.Context, in NodeInput) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("upsert node", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	key := nodeKey{Type: in.Type, Name: in.Name}
	if id, ok := s.nodeIndex[key]; ok {
		n := s.nodes[id]
		n.Properties = in.Properties.Clone()
		n.Embedding = copyVector(in.Embedding)
		n.UpdatedAt = now
		return cloneNode(n), nil
	}

	n := &Node{
		ID:         uuid.New().String(),
		Type:       in.Type,
		Name:       in.Name,
		Properties: in.Properties.Clone(),
		Embedding:  copyVector(in.Embedding),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.nodes[n.ID] = n
	s.nodeIndex[key] = n.ID
	return cloneNode(n), nil
}

// UpsertRelationship inserts or replaces an edge by (from, to, type)
func (s *MemoryStore) UpsertRelationship(ctx context.Context, in RelationshipInput) (*Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("upsert relationship", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{in.FromID, in.ToID} {
		if _, ok := s.nodes[id]; !ok {
			return nil, apperrors.NewStorageError("upsert relationship",
				fmt.Errorf("endpoint node %s does not exist", id))
		}
	}

	now := s.tick()
	key := relKey{FromID: in.FromID, ToID: in.ToID, Type: in.Type}
	if id, ok := s.relIndex[key]; ok {
		r := s.rels[id]
		r.Properties = in.Properties.Clone()
		r.Weight = in.Weight
		r.CreatedAt = now
		return cloneRelationship(r), nil
	}

	r := &Relationship{
		ID:         uuid.New().String(),
		FromID:     in.FromID,
		ToID:       in.ToID,
		Type:       in.Type,
		Properties: in.Properties.Clone(),
		Weight:     in.Weight,
		CreatedAt:  now,
	}
	s.rels[r.ID] = r
	s.relIndex[key] = r.ID
	s.relOrder = append(s.relOrder, r.ID)
	return cloneRelationship(r), nil
}

// GetNodes returns existing nodes among ids
func (s *MemoryStore) GetNodes(ctx context.Context, ids []string) (map[string]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("get nodes", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Node, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out[id] = *cloneNode(n)
		}
	}
	return out, nil
}

// IncidentRelationships returns edges touching ids in either direction
func (s *MemoryStore) IncidentRelationships(ctx context.Context, ids []string, types []RelationshipType) ([]Relationship, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("incident relationships", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	allowed := make(map[RelationshipType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relationship
	for _, id := range s.relOrder {
		r := s.rels[id]
		if !wanted[r.FromID] && !wanted[r.ToID] {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Type] {
			continue
		}
		out = append(out, *cloneRelationship(r))
	}
	return out, nil
}

// NearestNeighbors ranks same-type nodes by cosine distance
func (s *MemoryStore) NearestNeighbors(ctx context.Context, nodeType NodeType, excludeID string, embedding []float32, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("nearest neighbors", err)
	}

	s.mu.RLock()
	candidates := make([]Node, 0)
	for id, n := range s.nodes {
		if n.Type != nodeType || id == excludeID || len(n.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, *cloneNode(n))
	}
	s.mu.RUnlock()

	return rankNeighbors(candidates, embedding, k), nil
}

// ConnectionStats ranks nodes of a type by degree and mean weight
func (s *MemoryStore) ConnectionStats(ctx context.Context, nodeType NodeType, limit int) ([]ConnectionStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("connection stats", err)
	}

	s.mu.RLock()
	type acc struct {
		count int64
		sum   float64
	}
	degree := make(map[string]*acc)
	for _, r := range s.rels {
		for _, endpoint := range uniqueEndpoints(r) {
			a, ok := degree[endpoint]
			if !ok {
				a = &acc{}
				degree[endpoint] = a
			}
			a.count++
			a.sum += r.Weight
		}
	}

	var stats []ConnectionStats
	for id, n := range s.nodes {
		if n.Type != nodeType {
			continue
		}
		st := ConnectionStats{Node: *cloneNode(n)}
		if a, ok := degree[id]; ok {
			st.ConnectionStrength = a.count
			st.AvgWeight = a.sum / float64(a.count)
		}
		stats = append(stats, st)
	}
	s.mu.RUnlock()

	sortConnectionStats(stats)
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// NodeCounts counts nodes by type
func (s *MemoryStore) NodeCounts(ctx context.Context) (map[NodeType]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("node counts", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[NodeType]int64)
	for _, n := range s.nodes {
		counts[n.Type]++
	}
	return counts, nil
}

// RelationshipCounts counts relationships and averages weight by type
func (s *MemoryStore) RelationshipCounts(ctx context.Context) (map[RelationshipType]RelationshipTypeStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("relationship counts", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[RelationshipType]float64)
	stats := make(map[RelationshipType]RelationshipTypeStats)
	for _, r := range s.rels {
		st := stats[r.Type]
		st.Count++
		stats[r.Type] = st
		sums[r.Type] += r.Weight
	}
	for t, st := range stats {
		st.AvgWeight = sums[t] / float64(st.Count)
		stats[t] = st
	}
	return stats, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func uniqueEndpoints(r *Relationship) []string {
	if r.FromID == r.ToID {
		return []string{r.FromID}
	}
	return []string{r.FromID, r.ToID}
}

func copyVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Properties = n.Properties.Clone()
	c.Embedding = copyVector(n.Embedding)
	return &c
}

func cloneRelationship(r *Relationship) *Relationship {
	c := *r
	c.Properties = r.Properties.Clone()
	return &c
}
