package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "sl:"
	notFoundSentinel = "__nil__"
)

// Hit 描述一次缓存查询的结果。
type Hit int

const (
	Miss     Hit = iota // 缓存里没有，需要查库
	Found               // 命中短链
	NotFound            // 命中负缓存：短链不存在
)

// SlugCache 是两级缓存：L1 ristretto（可选）+ L2 Redis。
type SlugCache struct {
	client   *redis.Client
	local    *LocalCache // L1 本地缓存
	ttl      time.Duration
	emptyTTL time.Duration
	now      func() time.Time
}

func NewSlugCache(client *redis.Client, local *LocalCache) *SlugCache {
	return &SlugCache{
		client:   client,
		local:    local,
		ttl:      time.Hour,
		emptyTTL: 30 * time.Second,
		now:      time.Now,
	}
}

func (c *SlugCache) Get(ctx context.Context, slug string) (shortlink.ShortLink, Hit, error) {
	// L1: 本地缓存
	if c.local != nil {
		if link, hit := c.local.Get(slug); hit != Miss {
			if hit == NotFound {
				metrics.SlugCacheTotal.WithLabelValues("l1", "negative").Inc()
			} else {
				metrics.SlugCacheTotal.WithLabelValues("l1", "hit").Inc()
			}
			return link, hit, nil
		}
	}

	// L2: Redis
	res, err := c.client.Get(ctx, keyPrefix+slug).Result()
	if errors.Is(err, redis.Nil) {
		metrics.SlugCacheTotal.WithLabelValues("l2", "miss").Inc()
		return shortlink.ShortLink{}, Miss, nil
	}
	if err != nil {
		return shortlink.ShortLink{}, Miss, err
	}

	if res == notFoundSentinel {
		metrics.SlugCacheTotal.WithLabelValues("l2", "negative").Inc()
		if c.local != nil {
			c.local.SetNotFound(slug)
		}
		return shortlink.ShortLink{}, NotFound, nil
	}

	var link shortlink.ShortLink
	if err := json.Unmarshal([]byte(res), &link); err != nil {
		// 旧格式或损坏的数据当作未命中，查库后会被覆盖
		slog.Warn("slug cache: bad payload", "slug", slug, "err", err)
		return shortlink.ShortLink{}, Miss, nil
	}
	metrics.SlugCacheTotal.WithLabelValues("l2", "hit").Inc()

	// 回填本地缓存
	if ttl := c.ttlFor(link); c.local != nil && ttl > 0 {
		c.local.Set(link, ttl)
	}
	return link, Found, nil
}

// Set 缓存短链，TTL 不会超过它的过期时间；已过期的不缓存。
func (c *SlugCache) Set(ctx context.Context, link shortlink.ShortLink) error {
	ttl := c.ttlFor(link)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	// 同时写入本地缓存
	if c.local != nil {
		c.local.Set(link, ttl)
	}
	return c.client.Set(ctx, keyPrefix+link.Slug, data, ttl).Err()
}

// SetNotFound 用明确哨兵值做"负缓存"，避免缓存穿透。
// 不要用 "" 作为哨兵值（可读性差、也容易把"未命中"和"命中空值"混淆）。
func (c *SlugCache) SetNotFound(ctx context.Context, slug string) error {
	if c.local != nil {
		c.local.SetNotFound(slug)
	}
	return c.client.Set(ctx, keyPrefix+slug, notFoundSentinel, c.emptyTTL).Err()
}

func (c *SlugCache) ttlFor(link shortlink.ShortLink) time.Duration {
	if link.ExpiresAt == nil {
		return c.ttl
	}
	left := link.ExpiresAt.Sub(c.now())
	if left < c.ttl {
		return left
	}
	return c.ttl
}

// Close 关闭本地缓存
func (c *SlugCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}
