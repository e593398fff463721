package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-graph/backend/internal/graph"
	"content-graph/backend/pkg/config"
	apperrors "content-graph/backend/pkg/errors"
)

func memoryConfig() *config.Config {
	return &config.Config{
		GraphStore:           config.StoreMemory,
		StoreTimeout:         time.Second,
		SimilarityThreshold:  0.7,
		SimilarityCandidates: 5,
		MaxTraversalDepth:    3,
	}
}

func TestBuild_MemoryStore(t *testing.T) {
	ctx := context.Background()

	app, err := Build(ctx, memoryConfig())
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.IsType(t, &graph.MemoryStore{}, app.Store)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, 3, app.Engine.MaxTraversalDepth())
	assert.NoError(t, app.EnsureSchema(ctx))

	node, err := app.Engine.UpsertNode(ctx, graph.NodeInput{Type: graph.NodeTypeTag, Name: "go"})
	require.NoError(t, err)
	assert.Empty(t, node.Embedding)
}

func TestBuild_UnreachableRedisKeepsProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.EmbeddingAPIKey = "test-key"
	cfg.EmbeddingBaseURL = "http://127.0.0.1:1"
	cfg.RedisAddr = "127.0.0.1:1"

	app, err := Build(context.Background(), cfg)

	require.NoError(t, err)
	assert.NoError(t, app.Close(context.Background()))
}

func TestBuild_UnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.GraphStore = "sqlite"

	_, err := Build(context.Background(), cfg)

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestBuild_UnreachableNeo4j(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}
	cfg := memoryConfig()
	cfg.GraphStore = config.StoreNeo4j
	cfg.Neo4jURI = "bolt://127.0.0.1:1"
	cfg.Neo4jUser = "neo4j"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Build(ctx, cfg)

	require.Error(t, err)
	var storageErr *apperrors.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestBuild_NilConfig(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}
