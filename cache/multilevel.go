package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iim0663418/graphrag/internal/metrics"
)

// MultiLevelConfig 多级缓存配置
type MultiLevelConfig struct {
	// L1 内存缓存条目数上限
	L1Capacity int `yaml:"l1_capacity" json:"l1_capacity"`
}

// DefaultMultiLevelConfig 返回默认多级缓存配置
func DefaultMultiLevelConfig() MultiLevelConfig {
	return MultiLevelConfig{
		L1Capacity: 1000,
	}
}

// MultiLevelCache 组合 L1 内存缓存与 L2 持久缓存
// 读取顺序 L1 → L2，L2 命中自动回填 L1；写入采用 write-through，
// 先写 L1 再写 L2，两次写之间崩溃时持久层保持一致。
type MultiLevelCache struct {
	keyer  KeyStrategy
	l1     *MemoryCache
	l2     *PersistentStore
	config MultiLevelConfig
	logger *zap.Logger

	// 可选的 Prometheus 指标接入，nil 安全
	collector *metrics.Collector

	mu     sync.Mutex
	l1Hits int64
	l2Hits int64
	misses int64
}

// NewMultiLevelCache 创建多级缓存，l2 为必需的持久层
func NewMultiLevelCache(l2 *PersistentStore, config MultiLevelConfig, logger *zap.Logger) *MultiLevelCache {
	return &MultiLevelCache{
		keyer:  NewHashKeyer(),
		l1:     NewMemoryCache(config.L1Capacity),
		l2:     l2,
		config: config,
		logger: logger.With(zap.String("component", "multilevel_cache")),
	}
}

// WithMetrics 接入 Prometheus 指标收集器
func (c *MultiLevelCache) WithMetrics(collector *metrics.Collector) *MultiLevelCache {
	c.collector = collector
	return c
}

// Get 读取缓存
// L1 命中直接返回；L1 miss 后查 L2，命中则提升到 L1 再返回。
func (c *MultiLevelCache) Get(ctx context.Context, text string, cacheCtx map[string]any) ([]byte, error) {
	key := c.keyer.Key(text, cacheCtx)

	if value, ok := c.l1.Get(key); ok {
		c.mu.Lock()
		c.l1Hits++
		c.mu.Unlock()
		c.collector.RecordCacheHit("l1")
		return value, nil
	}

	value, err := c.l2.GetByKey(ctx, key)
	if err == nil {
		c.l1.Set(key, value)
		c.mu.Lock()
		c.l2Hits++
		c.mu.Unlock()
		c.collector.RecordCacheHit("l2")
		return value, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	c.collector.RecordCacheMiss()
	return nil, ErrCacheMiss
}

// Set 写入缓存（write-through，L1 在前 L2 在后）
func (c *MultiLevelCache) Set(ctx context.Context, text string, value []byte, cacheCtx map[string]any) error {
	key := c.keyer.Key(text, cacheCtx)

	c.l1.Set(key, value)
	return c.l2.SetByKey(ctx, key, value, nil)
}

// ResetL1 清空内存层，持久层不受影响
// 用于进程内存层失效后的验证与测试。
func (c *MultiLevelCache) ResetL1() {
	c.l1.Clear()
}

// Clear 清空两级缓存并重置统计
func (c *MultiLevelCache) Clear(ctx context.Context) error {
	c.l1.Clear()

	c.mu.Lock()
	c.l1Hits = 0
	c.l2Hits = 0
	c.misses = 0
	c.mu.Unlock()

	return c.l2.Clear(ctx)
}

// Stats 返回合并统计
func (c *MultiLevelCache) Stats() MultiLevelStats {
	c.mu.Lock()
	l1Hits, l2Hits, misses := c.l1Hits, c.l2Hits, c.misses
	c.mu.Unlock()

	totalHits := l1Hits + l2Hits
	total := totalHits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(totalHits) / float64(total) * 100
	}

	return MultiLevelStats{
		L1Hits:     l1Hits,
		L2Hits:     l2Hits,
		TotalHits:  totalHits,
		Misses:     misses,
		HitRate:    hitRate,
		L1Size:     c.l1.Len(),
		L1Capacity: c.l1.Capacity(),
		L2:         c.l2.Stats(),
	}
}
