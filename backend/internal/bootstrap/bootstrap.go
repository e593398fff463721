package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"content-graph/backend/internal/adapter"
	"content-graph/backend/internal/graph"
	"content-graph/backend/internal/knowledge"
	"content-graph/backend/internal/metrics"
	"content-graph/backend/pkg/config"
	apperrors "content-graph/backend/pkg/errors"
	"content-graph/backend/pkg/logger"
)

// schemaEnsurer is implemented by stores that need constraints created up front
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// App owns the long-lived collaborators of a process: the graph store, the
// embedding provider and its cache, and the engine built over them.
type App struct {
	Config  *config.Config
	Store   graph.Store
	Engine  *knowledge.Engine
	Metrics *metrics.Collector

	log     *zap.Logger
	closers []func(context.Context) error
}

// Build wires an App from cfg. The caller must Close it.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigurationError("configuration")
	}

	app := &App{
		Config:  cfg,
		Metrics: metrics.NewCollector("content_graph"),
		log:     logger.Named("bootstrap"),
	}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)

	opts := []knowledge.Option{
		knowledge.WithMetrics(app.Metrics),
		knowledge.WithSimilarityThreshold(cfg.SimilarityThreshold),
		knowledge.WithSimilarityCandidates(cfg.SimilarityCandidates),
		knowledge.WithMaxTraversalDepth(cfg.MaxTraversalDepth),
	}
	if embedder := app.openEmbedder(ctx); embedder != nil {
		opts = append(opts, knowledge.WithEmbedder(embedder))
	}
	app.Engine = knowledge.NewEngine(store, opts...)

	return app, nil
}

func (a *App) openStore(ctx context.Context) (graph.Store, error) {
	switch a.Config.GraphStore {
	case config.StoreMemory:
		a.log.Info("Using in-memory graph store")
		return graph.NewMemoryStore(), nil
	case config.StoreNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			a.Config.Neo4jURI,
			neo4j.BasicAuth(a.Config.Neo4jUser, a.Config.Neo4jPassword, ""),
			func(c *neo4j.Config) {
				if a.Config.Neo4jMaxPoolSize > 0 {
					c.MaxConnectionPoolSize = a.Config.Neo4jMaxPoolSize
				}
			},
		)
		if err != nil {
			return nil, apperrors.NewStorageError("create neo4j driver", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			_ = driver.Close(ctx)
			return nil, apperrors.NewStorageError("verify neo4j connectivity", err)
		}
		a.log.Info("Connected to Neo4j",
			zap.String("uri", a.Config.Neo4jURI),
			zap.String("database", a.Config.Neo4jDatabase))

		return graph.NewRepository(driver,
			graph.WithDatabase(a.Config.Neo4jDatabase),
			graph.WithQueryTimeout(a.Config.StoreTimeout),
		), nil
	default:
		return nil, apperrors.NewConfigValidationFailed("GRAPH_STORE", fmt.Sprintf("unknown backend %q", a.Config.GraphStore))
	}
}

// openEmbedder returns nil when no provider is configured. A Redis cache is
// layered on when reachable; an unreachable Redis only disables the cache.
func (a *App) openEmbedder(ctx context.Context) knowledge.Embedder {
	if !a.Config.EmbeddingsEnabled() {
		a.log.Warn("EMBEDDING_API_KEY not set, nodes will be stored without embeddings")
		return nil
	}

	provider := adapter.NewEmbeddingAdapter(
		a.Config.EmbeddingBaseURL,
		a.Config.EmbeddingAPIKey,
		a.Config.EmbeddingModel,
		a.Config.EmbeddingMaxRetries,
	)
	if a.Config.RedisAddr == "" {
		return provider
	}

	rdb, err := adapter.NewRedisClient(ctx, a.Config.RedisAddr)
	if err != nil {
		a.log.Warn("Embedding cache disabled", zap.String("addr", a.Config.RedisAddr), zap.Error(err))
		return provider
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })

	a.log.Info("Embedding cache enabled", zap.String("addr", a.Config.RedisAddr), zap.Duration("ttl", a.Config.EmbeddingCacheTTL))
	return adapter.NewCachedEmbedder(provider, rdb, a.Config.EmbeddingModel, a.Config.EmbeddingCacheTTL)
}

// EnsureSchema creates store constraints when the backend needs them
func (a *App) EnsureSchema(ctx context.Context) error {
	if s, ok := a.Store.(schemaEnsurer); ok {
		return s.EnsureSchema(ctx)
	}
	return nil
}

// Close releases everything Build opened, in reverse order
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
