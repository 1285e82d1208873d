package ml

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// ErrCacheMiss is returned by KVStore.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// KVStore is the small key/value surface the embedding cache needs.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore implements KVStore on go-redis.
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// CachedEmbedder memoizes embeddings of identical texts. Embeddings of a
// frozen model are deterministic, so a cached vector is always valid for
// the same model name. Cache failures degrade to a direct call.
type CachedEmbedder struct {
	next   Embedder
	store  KVStore
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

func NewCachedEmbedder(next Embedder, store KVStore, model string, ttl time.Duration, logger zerolog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		store:  store,
		ttl:    ttl,
		prefix: "triage:emb:" + model + ":",
		logger: logger,
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		raw, err := c.store.Get(ctx, c.key(t))
		if err == nil {
			var vec []float32
			if jerr := json.Unmarshal([]byte(raw), &vec); jerr == nil {
				out[i] = vec
				continue
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("embedding cache read failed")
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		b, err := json.Marshal(vecs[j])
		if err != nil {
			continue
		}
		if err := c.store.Set(ctx, c.key(texts[i]), string(b), c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	return out, nil
}
