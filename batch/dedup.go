package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iim0663418/graphrag/internal/metrics"
)

// Deduplicator 批内去重处理器
// 对可能含重复输入的批次，只对首次出现的唯一子集调用一次处理
// 函数，再按索引映射把结果投影回每个原始位置。
type Deduplicator struct {
	logger    *zap.Logger
	collector *metrics.Collector

	mu          sync.Mutex
	totalItems  int64
	uniqueItems int64
	savings     int64
}

// NewDeduplicator 创建去重处理器
func NewDeduplicator(logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		logger: logger.With(zap.String("component", "deduplicator")),
	}
}

// WithMetrics 接入 Prometheus 指标收集器
func (d *Deduplicator) WithMetrics(collector *metrics.Collector) *Deduplicator {
	d.collector = collector
	return d
}

// ProcessBatch 去重后处理批次，结果与 items 等长且顺序一致
func (d *Deduplicator) ProcessBatch(ctx context.Context, items []string, fn Func) ([][]byte, error) {
	unique := make([]string, 0, len(items))
	indexOf := make(map[string]int, len(items))
	mapping := make([]int, len(items))

	for i, item := range items {
		idx, seen := indexOf[item]
		if !seen {
			idx = len(unique)
			indexOf[item] = idx
			unique = append(unique, item)
		}
		mapping[i] = idx
	}

	d.mu.Lock()
	d.totalItems += int64(len(items))
	d.uniqueItems += int64(len(unique))
	d.savings += int64(len(items) - len(unique))
	d.mu.Unlock()

	d.collector.RecordDedupSavings(len(items) - len(unique))

	uniqueResults, err := fn(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(uniqueResults) != len(unique) {
		return nil, errLengthMismatch(len(uniqueResults), len(unique))
	}

	results := make([][]byte, len(items))
	for i, idx := range mapping {
		results[i] = uniqueResults[idx]
	}

	d.logger.Debug("processed deduplicated batch",
		zap.Int("total", len(items)),
		zap.Int("unique", len(unique)),
		zap.Int("saved", len(items)-len(unique)),
	)

	return results, nil
}

// Stats 返回去重统计快照
func (d *Deduplicator) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DedupStats{
		TotalItems:  d.totalItems,
		UniqueItems: d.uniqueItems,
		Savings:     d.savings,
	}
}
