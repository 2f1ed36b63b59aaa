package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chainnotes/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	labelCacheKeyPrefix = "chainnotes:label:"
	defaultCacheTTL     = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository serves FindLabel from redis. Label mappings are never
// rewritten, so entries only expire through the TTL.
type CachedRepository struct {
	Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) Enabled() bool {
	return r.cache != nil
}

func (r *CachedRepository) FindLabel(ctx context.Context, userID, label string) (domain.LabeledText, bool, error) {
	if r.cache == nil {
		return r.Repository.FindLabel(ctx, userID, label)
	}
	key := labelCacheKey(userID, label)
	if cached, err := r.cache.Get(ctx, key).Bytes(); err == nil {
		var entry domain.LabeledText
		if err := json.Unmarshal(cached, &entry); err == nil {
			return entry, true, nil
		}
	}

	entry, ok, err := r.Repository.FindLabel(ctx, userID, label)
	if err != nil || !ok {
		return entry, ok, err
	}
	r.remember(ctx, key, entry)
	return entry, true, nil
}

func (r *CachedRepository) SaveLabel(ctx context.Context, entry domain.LabeledText) error {
	if err := r.Repository.SaveLabel(ctx, entry); err != nil {
		return err
	}
	if r.cache != nil {
		r.remember(ctx, labelCacheKey(entry.UserID, entry.Label), entry)
	}
	return nil
}

func (r *CachedRepository) Close() error {
	var cacheErr error
	if r.cache != nil {
		cacheErr = r.cache.Close()
	}
	return errors.Join(r.Repository.Close(), cacheErr)
}

func (r *CachedRepository) remember(ctx context.Context, key string, entry domain.LabeledText) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
}

func labelCacheKey(userID, label string) string {
	var b strings.Builder
	b.Grow(len(labelCacheKeyPrefix) + len(userID) + len(label) + 1)
	b.WriteString(labelCacheKeyPrefix)
	b.WriteString(userID)
	b.WriteByte(':')
	b.WriteString(label)
	return b.String()
}
