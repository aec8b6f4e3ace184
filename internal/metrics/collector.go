package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter

	// 批量指标
	batchSize    prometheus.Histogram
	dedupSavings prometheus.Counter

	// 生成调用指标
	requestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"tier"}, // tier: l1, l2
	)

	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	// 批量指标
	c.batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of items per dispatched batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	c.dedupSavings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_savings_total",
			Help:      "Total number of duplicate items removed before dispatch",
		},
	)

	// 生成调用指标
	c.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"}, // kind: completion, embedding
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.cacheMisses.Inc()
}

// =============================================================================
// 📦 批量指标记录
// =============================================================================

// RecordBatch 记录一次批量派发
func (c *Collector) RecordBatch(size int) {
	if c == nil {
		return
	}
	c.batchSize.Observe(float64(size))
}

// RecordDedupSavings 记录去重省去的调用条数
func (c *Collector) RecordDedupSavings(count int) {
	if c == nil {
		return
	}
	c.dedupSavings.Add(float64(count))
}

// =============================================================================
// 🤖 生成调用指标记录
// =============================================================================

// RecordRequest 记录一次生成请求耗时，kind 为 completion 或 embedding
func (c *Collector) RecordRequest(kind string, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
