package knowledge

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-graph/backend/internal/graph"
	apperrors "content-graph/backend/pkg/errors"
)

// Mock implementations for testing

type stubEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, s.err
	}
	return append([]float32(nil), s.vec...), nil
}

// failingStore fails relationship upserts once failAfter have succeeded
type failingStore struct {
	*graph.MemoryStore
	failAfter int
	relCalls  int
}

func (f *failingStore) UpsertRelationship(ctx context.Context, in graph.RelationshipInput) (*graph.Relationship, error) {
	f.relCalls++
	if f.relCalls > f.failAfter {
		return nil, apperrors.NewStorageError("upsert relationship", errors.New("connection reset"))
	}
	return f.MemoryStore.UpsertRelationship(ctx, in)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *graph.MemoryStore) {
	t.Helper()
	store := graph.NewMemoryStore()
	return NewEngine(store, opts...), store
}

// unitAt returns a unit vector whose cosine similarity to (1,0) is sim
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestEngine_UnconfiguredStore(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	_, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypeConcept, Name: "x"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	_, err = e.GetRelatedNodes(ctx, "id", 1, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	_, err = e.GetRecommendations(ctx, graph.NodeTypePost, 10, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	_, err = e.GetGraphStatistics(ctx)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	_, err = e.ProcessSystemEvent(ctx, SystemEvent{Type: "unknown_x"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestEngine_UpsertNodeReplacesProperties(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	first, err := e.UpsertNode(ctx, graph.NodeInput{
		Type:       graph.NodeTypeConcept,
		Name:       "blockchain",
		Properties: graph.Properties{"source": graph.String("a"), "score": graph.Int(1)},
	})
	require.NoError(t, err)

	second, err := e.UpsertNode(ctx, graph.NodeInput{
		Type:       graph.NodeTypeConcept,
		Name:       "blockchain",
		Properties: graph.Properties{"source": graph.String("b")},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, graph.Properties{"source": graph.String("b")}, second.Properties)

	counts, err := store.NodeCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[graph.NodeTypeConcept])
}

func TestEngine_UpsertNodeValidates(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.UpsertNode(context.Background(), graph.NodeInput{Type: graph.NodeTypeTag, Name: "   "})

	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestEngine_UpsertNodeEmbedsWhenMissing(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{0.1, 0.2}}
	e, _ := newTestEngine(t, WithEmbedder(embedder))

	node, err := e.UpsertNode(context.Background(), graph.NodeInput{
		Type:       graph.NodeTypeDocument,
		Name:       "handbook",
		Properties: graph.Properties{"pages": graph.Int(12)},
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, node.Embedding)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, `handbook {"pages":12}`, embedder.calls[0])
}

func TestEngine_UpsertNodeKeepsSuppliedEmbedding(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{0.1, 0.2}}
	e, _ := newTestEngine(t, WithEmbedder(embedder))

	node, err := e.UpsertNode(context.Background(), graph.NodeInput{
		Type:      graph.NodeTypeDocument,
		Name:      "handbook",
		Embedding: []float32{1, 0},
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, node.Embedding)
	assert.Empty(t, embedder.calls)
}

func TestEngine_EmbeddingFailureIsSoft(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("provider down")}
	e, _ := newTestEngine(t, WithEmbedder(embedder))

	node, err := e.UpsertNode(context.Background(), graph.NodeInput{Type: graph.NodeTypeTag, Name: "go"})

	require.NoError(t, err)
	assert.Empty(t, node.Embedding)
}

func TestEngine_UpsertRelationshipIsIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	a, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypePost, Name: "a"})
	require.NoError(t, err)
	b, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypeTag, Name: "b"})
	require.NoError(t, err)

	in := graph.RelationshipInput{FromID: a.ID, ToID: b.ID, Type: graph.RelTaggedWith, Weight: 0.2}
	first, err := e.UpsertRelationship(ctx, in)
	require.NoError(t, err)

	in.Weight = 0.8
	in.Properties = graph.Properties{"source": graph.String("editor")}
	second, err := e.UpsertRelationship(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.8, second.Weight)

	rels, err := store.IncidentRelationships(ctx, []string{a.ID}, nil)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, 0.8, rels[0].Weight)
	assert.Equal(t, "editor", rels[0].Properties.GetString("source"))
}

func TestEngine_UpsertRelationshipDanglingIsStorageError(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.UpsertRelationship(context.Background(), graph.RelationshipInput{
		FromID: "missing-a", ToID: "missing-b", Type: graph.RelRelatedTo, Weight: 1,
	})

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStorage))
}

func TestEngine_UpsertRelationshipValidates(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.UpsertRelationship(context.Background(), graph.RelationshipInput{FromID: "a", ToID: "b"})

	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "type", vErr.Field)
}

func TestEngine_LinkSimilar(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	source, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypePost, Name: "source", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	// seven same-type nodes above the threshold, one below, one of another type
	for i, sim := range []float64{0.99, 0.95, 0.9, 0.85, 0.8, 0.75, 0.72, 0.1} {
		_, err := e.UpsertNode(ctx, graph.NodeInput{
			Type:      graph.NodeTypePost,
			Name:      "post-" + string(rune('a'+i)),
			Embedding: unitAt(sim),
		})
		require.NoError(t, err)
	}
	other, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypeTag, Name: "twin", Embedding: []float32{1, 0}})
	require.NoError(t, err)

	links, err := e.LinkSimilar(ctx, source)
	require.NoError(t, err)

	assert.Len(t, links, 5)
	for _, rel := range links {
		assert.Equal(t, graph.RelSimilarTo, rel.Type)
		assert.Equal(t, source.ID, rel.FromID)
		assert.NotEqual(t, source.ID, rel.ToID)
		assert.NotEqual(t, other.ID, rel.ToID)
		assert.Greater(t, rel.Weight, 0.7)
	}
	assert.InDelta(t, 0.99, links[0].Weight, 1e-4)
}

func TestEngine_LinkSimilarNoMatches(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	source, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypePost, Name: "source", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	_, err = e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypePost, Name: "far", Embedding: []float32{0, 1}})
	require.NoError(t, err)

	links, err := e.LinkSimilar(ctx, source)

	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestEngine_LinkSimilarRequiresEmbedding(t *testing.T) {
	e, _ := newTestEngine(t)
	node, err := e.UpsertNode(context.Background(), graph.NodeInput{Type: graph.NodeTypePost, Name: "plain"})
	require.NoError(t, err)

	_, err = e.LinkSimilar(context.Background(), node)

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestEngine_LinkSimilarHonoursOptions(t *testing.T) {
	e, _ := newTestEngine(t, WithSimilarityThreshold(0.9), WithSimilarityCandidates(2))
	ctx := context.Background()

	source, err := e.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypePost, Name: "source", Embedding: []float32{1, 0}})
	require.NoError(t, err)
	for i, sim := range []float64{0.99, 0.95, 0.92, 0.85} {
		_, err := e.UpsertNode(ctx, graph.NodeInput{
			Type:      graph.NodeTypePost,
			Name:      "post-" + string(rune('a'+i)),
			Embedding: unitAt(sim),
		})
		require.NoError(t, err)
	}

	links, err := e.LinkSimilar(ctx, source)

	require.NoError(t, err)
	assert.Len(t, links, 2)
}
