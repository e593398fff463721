// Package main provides graphctl, the operator CLI for the content graph.
package main

import (
	"context"
	"fmt"
	"os"

	"content-graph/backend/internal/bootstrap"
	"content-graph/backend/pkg/config"
	"content-graph/backend/pkg/logger"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
	logger.Sync()
}

// openApp loads configuration and builds the engine. storeOverride, when
// set, replaces GRAPH_STORE.
func openApp(ctx context.Context, storeOverride string) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storeOverride != "" {
		cfg.GraphStore = storeOverride
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if err := logger.Init(cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return bootstrap.Build(ctx, cfg)
}
