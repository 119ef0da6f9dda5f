package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCacheConfig configures the content-addressed embedding cache.
type EmbeddingCacheConfig struct {
	// Enabled toggles the cache.
	Enabled bool
	// TTL is the cache entry lifetime. The contract requires at least 1h.
	TTL time.Duration
	// KeyPrefix namespaces cache keys.
	KeyPrefix string
	// ModelID participates in the cache key so a model change invalidates
	// every cached vector.
	ModelID string
	// Observer, when set, is called with the outcome of every cache lookup.
	Observer func(hit bool)
}

// DefaultEmbeddingCacheConfig returns the default cache configuration.
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "emb:",
	}
}

// CachedEmbeddingProvider wraps an EmbeddingProvider with a content-addressed
// redis cache. The cache is authoritative: a hit never issues a network call.
// Misses are single-flighted per key, so concurrent misses for the same text
// wait on one upstream call.
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    *goredis.Client
	config   *EmbeddingCacheConfig
	group    singleflight.Group
}

// NewCachedEmbeddingProvider creates the caching wrapper.
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis *goredis.Client,
	config *EmbeddingCacheConfig,
) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

func (c *CachedEmbeddingProvider) observe(hit bool) {
	if c.config.Observer != nil {
		c.config.Observer(hit)
	}
}

// cacheKey hashes the normalised text together with the model id.
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	hash := sha256.Sum256([]byte(c.config.ModelID + "\x00" + normalized))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// EmbedSingle returns a cached vector or computes and caches one.
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if !c.config.Enabled || c.redis == nil {
		return c.provider.EmbedSingle(ctx, text)
	}

	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		c.observe(true)
		logger.Debugw("embedding cache hit", "text_length", len(text))
		return vec, nil
	}
	c.observe(false)

	// Single-flight the miss: the first caller computes, the rest wait.
	v, err, _ := c.group.Do(key, func() (any, error) {
		if vec, ok := c.lookup(ctx, key); ok {
			return vec, nil
		}
		vec, err := c.provider.EmbedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Embed resolves a batch from cache and computes only the misses.
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.config.Enabled || c.redis == nil {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var uncachedIndices []int
	var uncachedTexts []string

	for i, text := range texts {
		if vec, ok := c.lookup(ctx, c.cacheKey(text)); ok {
			c.observe(true)
			embeddings[i] = vec
			continue
		}
		c.observe(false)
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		logger.Infow("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Infow("embedding cache miss (batch)", "total", len(texts), "uncached", len(uncachedTexts))
	computed, err := c.provider.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	for i, idx := range uncachedIndices {
		embeddings[idx] = computed[i]
		c.store(ctx, c.cacheKey(uncachedTexts[i]), computed[i])
	}
	return embeddings, nil
}

func (c *CachedEmbeddingProvider) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("redis get error, falling back to provider", "error", err.Error())
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		logger.Warnw("failed to unmarshal cached embedding, deleting", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbeddingProvider) store(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error(), "key", key)
	}
}

// Name returns the wrapped provider's name with a cache marker.
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// ClearCache deletes every cached embedding under the configured prefix.
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	logger.Infow("cleared embedding cache", "deleted_count", deleted)
	return nil
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
