package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter 记录"可能已被占用"的短码，供生成短码时预检查。
//
// 只在本进程内累积；返回 false 不代表存储里一定没有（别的实例写入的不在这里），
// 所以只能用来跳过候选，不能用来判断短链不存在。
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewBloomFilter 创建布隆过滤器
// expectedItems: 预期存储的元素数量
// falsePositiveRate: 误判率（建议 0.01 即 1%）
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (b *BloomFilter) Add(slug string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(slug)
}

// Warm 批量加入已有短码（启动时从存储加载）。
func (b *BloomFilter) Warm(slugs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range slugs {
		b.filter.AddString(s)
	}
}

// MightExist 检查元素是否可能存在
// 返回 false 表示本进程没见过
// 返回 true 表示可能存在（有误判率）
func (b *BloomFilter) MightExist(slug string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(slug)
}

// Count 返回已添加的元素数量（估算）
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}
