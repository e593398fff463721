package knowledge

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"content-graph/backend/internal/graph"
	"content-graph/backend/internal/metrics"
	apperrors "content-graph/backend/pkg/errors"
	"content-graph/backend/pkg/logger"
)

const (
	DefaultSimilarityThreshold  = 0.7
	DefaultSimilarityCandidates = 5
	DefaultMaxTraversalDepth    = 5
)

// Embedder turns text into a vector. Implementations may be unavailable at
// any time; the engine treats their failures as soft.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine is the knowledge graph facade used by the HTTP API, the CLI and the
// event producers. It holds no mutable state of its own.
type Engine struct {
	store      graph.Store
	embedder   Embedder
	logger     *zap.Logger
	metrics    *metrics.Collector
	threshold  float64
	candidates int
	maxDepth   int
}

// Option configures an Engine
type Option func(*Engine)

// WithEmbedder sets the embedding provider used when an upsert carries no vector
func WithEmbedder(embedder Embedder) Option {
	return func(e *Engine) { e.embedder = embedder }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithSimilarityThreshold sets the minimum similarity a neighbour must exceed
// to be linked. Values outside (0,1] are ignored.
func WithSimilarityThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithSimilarityCandidates sets how many nearest neighbours are considered
func WithSimilarityCandidates(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.candidates = k
		}
	}
}

// WithMaxTraversalDepth sets the hard ceiling applied to traversal depth
func WithMaxTraversalDepth(d int) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxDepth = d
		}
	}
}

// NewEngine creates an engine over store. A nil store yields an engine whose
// operations all fail with a ConfigurationError.
func NewEngine(store graph.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		logger:     logger.Named("knowledge_engine"),
		threshold:  DefaultSimilarityThreshold,
		candidates: DefaultSimilarityCandidates,
		maxDepth:   DefaultMaxTraversalDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxTraversalDepth reports the configured depth ceiling
func (e *Engine) MaxTraversalDepth() int {
	return e.maxDepth
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return apperrors.NewConfigurationError("graph store")
	}
	return nil
}

// UpsertNode creates or replaces the node keyed by (type, name). When the
// input has no embedding and a provider is configured, one is requested from
// the name and serialized properties; provider failure stores the node
// without a vector.
func (e *Engine) UpsertNode(ctx context.Context, in graph.NodeInput) (*graph.Node, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if len(in.Embedding) == 0 && e.embedder != nil {
		in.Embedding = e.embed(ctx, in.Type, embeddingText(in.Name, in.Properties))
	}

	node, err := e.store.UpsertNode(ctx, in)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordUpsert("node")

	e.logger.Debug("Upserted node",
		zap.String("node_id", node.ID),
		zap.String("node_type", string(node.Type)),
		zap.String("name", node.Name),
		zap.Bool("embedded", len(node.Embedding) > 0))
	return node, nil
}

// UpsertRelationship creates or replaces the edge keyed by (from, to, type).
// Endpoint existence is enforced by the store.
func (e *Engine) UpsertRelationship(ctx context.Context, in graph.RelationshipInput) (*graph.Relationship, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	rel, err := e.store.UpsertRelationship(ctx, in)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordUpsert("relationship")
	return rel, nil
}

func (e *Engine) embed(ctx context.Context, nodeType graph.NodeType, text string) []float32 {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.metrics.RecordEmbeddingMiss()
		e.logger.Warn("Embedding unavailable, storing node without one",
			zap.String("node_type", string(nodeType)),
			zap.Error(err))
		return nil
	}
	return vec
}

func embeddingText(name string, props graph.Properties) string {
	if len(props) == 0 {
		return name
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return name
	}
	return name + " " + string(raw)
}

// GetNode loads a node by id, returning graph.ErrNodeNotFound when absent
func (e *Engine) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	nodes, err := e.store.GetNodes(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	node, ok := nodes[id]
	if !ok {
		return nil, graph.ErrNodeNotFound{NodeID: id}
	}
	return &node, nil
}
