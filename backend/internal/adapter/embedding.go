package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"content-graph/backend/pkg/logger"
)

// maxEmbeddingInput bounds the text sent to the provider
const maxEmbeddingInput = 8000

// EmbeddingAdapter turns text into vectors via an OpenAI-compatible API
type EmbeddingAdapter struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewEmbeddingAdapter creates a new embedding adapter
func NewEmbeddingAdapter(baseURL, apiKey, modelID string, maxRetries int) *EmbeddingAdapter {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &EmbeddingAdapter{
		client:     openai.NewClientWithConfig(config),
		model:      modelID,
		maxRetries: maxRetries,
		backoff:    time.Second,
		logger:     logger.Named("embedding_adapter"),
	}
}

// Embed returns the embedding for text
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty embedding input")
	}
	text = truncateUTF8(text, maxEmbeddingInput)

	model := a.model
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	}

	// Retry with backoff growing by one step per attempt; the caller treats final failure as "no embedding"
	var resp openai.EmbeddingResponse
	var err error
	attempts := a.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.backoff
			a.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", model),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to embed text after %d attempts: %w", attempts, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in provider response")
	}

	a.logger.Debug("Embedding generated",
		zap.String("model", model),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
	)
	return resp.Data[0].Embedding, nil
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
