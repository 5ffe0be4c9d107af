package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"condo-rag/internal/kv"
	"condo-rag/internal/models"
)

const counterTTL = 24 * time.Hour

// ErrQuotaExceeded signals that the user spent their daily allowance of AI
// requests. No further work should happen for the request.
var ErrQuotaExceeded = errors.New("daily AI request limit exceeded, try again tomorrow")

// Gate enforces a per-user daily quota on AI requests. It runs before the
// response cache, so cache hits consume quota too: the gate bounds request
// volume, not generation cost.
type Gate struct {
	store kv.Store
	limit int
	now   func() time.Time
}

func NewGate(store kv.Store, limit int) *Gate {
	if limit <= 0 {
		limit = models.DefaultDailyLimit
	}
	return &Gate{store: store, limit: limit, now: time.Now}
}

// key is unique per user and UTC calendar day.
func (g *Gate) key(userID string) string {
	return fmt.Sprintf("rate_limit:ai:%s:%s", userID, g.now().UTC().Format("20060102"))
}

// Check rejects with ErrQuotaExceeded once the user reached the limit,
// without incrementing. Otherwise it counts the request; the first request
// of the day sets a 24h expiry on the counter. If the backend is down the
// gate fails open: availability wins over strict enforcement.
func (g *Gate) Check(ctx context.Context, userID string) error {
	key := g.key(userID)

	current, found, err := g.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Rate limit check failed")
		return nil
	}
	if found {
		count, err := strconv.Atoi(current)
		if err == nil && count >= g.limit {
			return ErrQuotaExceeded
		}
	}

	if _, err := g.store.Incr(ctx, key); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Rate limit increment failed")
		return nil
	}
	if !found {
		if err := g.store.Expire(ctx, key, counterTTL); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Rate limit expiry failed")
		}
	}
	return nil
}

// Peek reports the user's current usage without mutating the counter.
func (g *Gate) Peek(ctx context.Context, userID string) models.Usage {
	usage := models.Usage{Limit: g.limit, Remaining: g.limit}

	current, found, err := g.store.Get(ctx, g.key(userID))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Error reading usage counter")
		return usage
	}
	if !found {
		return usage
	}
	count, err := strconv.Atoi(current)
	if err != nil {
		return usage
	}

	usage.CurrentCount = count
	usage.Remaining = g.limit - count
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}
	return usage
}
