package cache

import (
	"time"

	"linkpulse.local/internal/app/shortlink"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的本地内存缓存（L1），值是 ShortLink 或负缓存标记。
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

type notFound struct{}

// NewLocalCache 创建本地缓存
// maxItems: 最大缓存条目数（建议 10000-100000）
// maxCost: 最大内存占用（字节，建议 16MB-64MB）
func NewLocalCache(maxItems int64, maxCost int64) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 计数器数量，建议为 maxItems 的 10 倍
		MaxCost:     maxCost,
		BufferItems: 64, // 每个 Get 缓冲区大小
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      5 * time.Minute,  // 本地缓存 TTL 短一些，保证多实例一致性
		emptyTTL: 10 * time.Second, // 负缓存 TTL
	}, nil
}

func (l *LocalCache) Get(slug string) (shortlink.ShortLink, Hit) {
	v, ok := l.cache.Get(slug)
	if !ok {
		return shortlink.ShortLink{}, Miss
	}
	switch link := v.(type) {
	case shortlink.ShortLink:
		return link, Found
	case notFound:
		return shortlink.ShortLink{}, NotFound
	}
	return shortlink.ShortLink{}, Miss
}

// Set 写入时 TTL 不超过 maxTTL（通常是距离过期的剩余时间）。
func (l *LocalCache) Set(link shortlink.ShortLink, maxTTL time.Duration) {
	ttl := l.ttl
	if maxTTL > 0 && maxTTL < ttl {
		ttl = maxTTL
	}
	// cost=1 表示按条目数限制
	l.cache.SetWithTTL(link.Slug, link, 1, ttl)
}

func (l *LocalCache) SetNotFound(slug string) {
	l.cache.SetWithTTL(slug, notFound{}, 1, l.emptyTTL)
}

// Wait 等待缓冲区里的写入生效（ristretto 的 Set 是异步的）。
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
