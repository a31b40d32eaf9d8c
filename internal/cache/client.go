package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/metrics"
)

// Client wraps the external inference services with the content-addressed
// cache. External-service errors propagate uncached; corrupt or unreadable
// entries count as misses.
type Client struct {
	store    Store
	labeler  inference.Labeler
	embedder inference.Embedder
	logger   *zap.Logger
}

func NewClient(store Store, labeler inference.Labeler, embedder inference.Embedder, logger *zap.Logger) *Client {
	return &Client{
		store:    store,
		labeler:  labeler,
		embedder: embedder,
		logger:   logger,
	}
}

// ImageLabels returns the ranked labels for an image, computing them at most
// once per distinct image content.
func (c *Client) ImageLabels(ctx context.Context, image []byte) ([]inference.Label, error) {
	key := Key(image)

	if raw, ok := c.lookup(ctx, KindImageLabels, key); ok {
		var labels []inference.Label
		if err := json.Unmarshal(raw, &labels); err == nil {
			metrics.CacheRequestsTotal.WithLabelValues(string(KindImageLabels), "hit").Inc()
			return labels, nil
		}
		c.logger.Warn("corrupt cache entry, recomputing",
			zap.String("kind", string(KindImageLabels)),
			zap.String("key", key),
		)
	}
	metrics.CacheRequestsTotal.WithLabelValues(string(KindImageLabels), "miss").Inc()

	labels, err := c.labeler.LabelImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("labeling image: %w", err)
	}
	c.write(ctx, KindImageLabels, key, labels)
	return labels, nil
}

// EmbedTexts returns one vector per input text, in input order. Only the
// subset missing from the cache is sent to the embedding service, in a
// single batched call, and merged back into request order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = Key([]byte(text))
		if raw, ok := c.lookup(ctx, KindTextEmbedding, keys[i]); ok {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
				metrics.CacheRequestsTotal.WithLabelValues(string(KindTextEmbedding), "hit").Inc()
				vectors[i] = vec
				continue
			}
			c.logger.Warn("corrupt cache entry, recomputing",
				zap.String("kind", string(KindTextEmbedding)),
				zap.String("key", keys[i]),
			)
		}
		metrics.CacheRequestsTotal.WithLabelValues(string(KindTextEmbedding), "miss").Inc()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	computed, err := c.embedder.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(missing), err)
	}
	if len(computed) != len(missing) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(computed), len(missing))
	}

	for i, vec := range computed {
		idx := missingIdx[i]
		vectors[idx] = vec
		c.write(ctx, KindTextEmbedding, keys[idx], vec)
	}
	return vectors, nil
}

func (c *Client) lookup(ctx context.Context, kind Kind, key string) ([]byte, bool) {
	raw, ok, err := c.store.Get(ctx, kind, key)
	if err != nil {
		// A failing store read is a miss, never fatal.
		c.logger.Warn("cache read failed",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	return raw, ok
}

func (c *Client) write(ctx context.Context, kind Kind, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, kind, key, raw); err != nil {
		// Losing a cache write only costs a recomputation later.
		c.logger.Warn("cache write failed",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
