package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/carpenike/repcoach/internal/logger"
	"github.com/carpenike/repcoach/internal/models"
)

const pendingKeyPrefix = "repcoach:pending:"

// RedisPending decorates a Store with a Redis read-through cache of the
// per-phone pending confirmation slot. SQLite stays authoritative; Redis
// errors fall back to it.
type RedisPending struct {
	Store
	client *goredis.Client
	log    *logger.Logger
}

// WithRedisPending wraps s so pending confirmation reads hit Redis first.
func WithRedisPending(s Store, client *goredis.Client, log *logger.Logger) *RedisPending {
	return &RedisPending{Store: s, client: client, log: log.With("component", "store.redis")}
}

func pendingKey(phone string) string { return pendingKeyPrefix + phone }

func (r *RedisPending) GetPendingConfirmation(ctx context.Context, phone string) (*models.PendingConfirmation, error) {
	raw, err := r.client.Get(ctx, pendingKey(phone)).Bytes()
	switch {
	case err == nil:
		var p models.PendingConfirmation
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return &p, nil
		}
		r.log.Warn("discarding undecodable cached pending confirmation", "phone", phone)
	case !errors.Is(err, goredis.Nil):
		r.log.Warn("redis get pending failed, reading sqlite", "phone", phone, "error", err)
	}

	p, err := r.Store.GetPendingConfirmation(ctx, phone)
	if err != nil {
		return nil, err
	}
	r.cache(ctx, p)
	return p, nil
}

func (r *RedisPending) UpsertPendingConfirmation(ctx context.Context, p *models.PendingConfirmation) error {
	if err := r.Store.UpsertPendingConfirmation(ctx, p); err != nil {
		return err
	}
	r.cache(ctx, p)
	return nil
}

func (r *RedisPending) DeletePendingConfirmation(ctx context.Context, phone string) error {
	if err := r.Store.DeletePendingConfirmation(ctx, phone); err != nil {
		return err
	}
	if err := r.client.Del(ctx, pendingKey(phone)).Err(); err != nil {
		// A stale cached row would resurrect a resolved dialogue.
		return fmt.Errorf("store: evict pending %s: %w", phone, err)
	}
	return nil
}

// DeleteUserProfile also evicts the cached pending slot for the erased user.
func (r *RedisPending) DeleteUserProfile(ctx context.Context, phone string) error {
	if err := r.Store.DeleteUserProfile(ctx, phone); err != nil {
		return err
	}
	if err := r.client.Del(ctx, pendingKey(phone)).Err(); err != nil {
		r.log.Warn("redis evict on erasure failed", "phone", phone, "error", err)
	}
	return nil
}

// cache stores p until its expiry. Rows without a future expiry are not
// cached.
func (r *RedisPending) cache(ctx context.Context, p *models.PendingConfirmation) {
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, pendingKey(p.Phone), raw, ttl).Err(); err != nil {
		r.log.Warn("redis cache pending failed", "phone", p.Phone, "error", err)
	}
}
