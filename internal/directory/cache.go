package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// DefaultCacheTTL is how long a resolved profile is kept.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved profiles.
type Cache interface {
	Get(ctx context.Context, userID int64) (settlement.Profile, bool, error)
	Set(ctx context.Context, p settlement.Profile) error
}

// RedisCache keeps profiles as JSON under profile:<id>.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache creates a cache on client.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("profile:%d", userID)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) (settlement.Profile, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return settlement.Profile{}, false, nil
	}
	if err != nil {
		return settlement.Profile{}, false, err
	}
	var p settlement.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return settlement.Profile{}, false, err
	}
	return p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, p settlement.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(p.ID), raw, c.ttl).Err()
}

// CachedDirectory consults the cache before the wrapped directory. Only
// profiles that were found are cached; cache failures are logged and skipped.
// A whole lookup, cache included, is bounded by timeout.
type CachedDirectory struct {
	next    Directory
	cache   Cache
	timeout time.Duration
	log     *logger.Logger
}

// NewCachedDirectory wraps next with cache.
func NewCachedDirectory(next Directory, cache Cache, timeout time.Duration, log *logger.Logger) *CachedDirectory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("directory")
	}
	return &CachedDirectory{next: next, cache: cache, timeout: timeout, log: log}
}

type lookupResult struct {
	profile settlement.Profile
	found   bool
}

// Lookup reports absent when the cache and the wrapped directory together
// take longer than the timeout, even if the cache ignores its context.
func (d *CachedDirectory) Lookup(ctx context.Context, userID int64) (settlement.Profile, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go d.lookup(ctx, userID, done)

	select {
	case res := <-done:
		return res.profile, res.found
	case <-ctx.Done():
		d.log.WithError(ctx.Err()).WithField("user_id", userID).Warn("profile lookup abandoned")
		return settlement.Profile{}, false
	}
}

func (d *CachedDirectory) lookup(ctx context.Context, userID int64, done chan<- lookupResult) {
	p, ok, err := d.cache.Get(ctx, userID)
	if err != nil {
		d.log.WithError(err).WithField("user_id", userID).Debug("profile cache read failed")
	}
	if ok {
		done <- lookupResult{profile: p, found: true}
		return
	}

	p, ok = d.next.Lookup(ctx, userID)
	if ok {
		if err := d.cache.Set(ctx, p); err != nil {
			d.log.WithError(err).WithField("user_id", userID).Debug("profile cache write failed")
		}
	}
	done <- lookupResult{profile: p, found: ok}
}
