package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"condo-rag/internal/kv"
	"condo-rag/internal/models"
)

const keyPrefix = "ai_cache:"

// Cache memoizes synthesized answers per tenant and normalized question.
// It is best-effort: a backend failure degrades to a miss on reads and is
// swallowed on writes, never surfaced to the caller.
type Cache struct {
	store kv.Store
	ttl   time.Duration
}

func NewCache(store kv.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultCacheTTLSecs) * time.Second
	}
	return &Cache{store: store, ttl: ttl}
}

// Key derives the lookup key from the tenant and the normalized question.
// Questions that normalize identically share an entry on purpose.
func Key(question, tenantID string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(tenantID + ":" + normalized))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for the question, or found=false on a miss.
func (c *Cache) Get(ctx context.Context, question, tenantID string) (*models.Answer, bool) {
	key := Key(question, tenantID)

	cached, found, err := c.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Msg("Error reading from cache")
		return nil, false
	}
	if !found {
		log.Debug().Str("question", truncate(question, 50)).Msg("Cache miss")
		return nil, false
	}

	var answer models.Answer
	if err := json.Unmarshal([]byte(cached), &answer); err != nil {
		log.Error().Err(err).Msg("Error decoding cached response")
		return nil, false
	}
	log.Info().Str("question", truncate(question, 50)).Msg("Cache hit")
	return &answer, true
}

// Put stores the answer with the configured TTL. Failures are logged and
// swallowed.
func (c *Cache) Put(ctx context.Context, question, tenantID string, answer *models.Answer) {
	key := Key(question, tenantID)

	data, err := json.Marshal(answer)
	if err != nil {
		log.Error().Err(err).Msg("Error encoding response for cache")
		return
	}
	if err := c.store.SetEx(ctx, key, string(data), c.ttl); err != nil {
		log.Error().Err(err).Msg("Error writing to cache")
		return
	}
	log.Info().Str("question", truncate(question, 50)).Dur("ttl", c.ttl).Msg("Cached response")
}

// InvalidateAll removes every cached entry system-wide and returns the
// number removed. The wipe is deliberately not tenant-scoped.
func (c *Cache) InvalidateAll(ctx context.Context) int {
	keys, err := c.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		log.Error().Err(err).Msg("Error listing cache keys")
		return 0
	}
	deleted, err := c.store.Del(ctx, keys...)
	if err != nil {
		log.Error().Err(err).Msg("Error invalidating cache")
		return 0
	}
	log.Info().Int64("deleted", deleted).Msg("Invalidated cache entries")
	return int(deleted)
}

// Stats returns the number of currently cached responses.
func (c *Cache) Stats(ctx context.Context) int {
	keys, err := c.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		log.Error().Err(err).Msg("Error getting cache stats")
		return 0
	}
	return len(keys)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
