package perf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor 性能监控器
// 一次监控会话对应一个实例，指标只增不减，重置即新建实例。
// 计数器更新在实例锁内完成，可安全地被多个 goroutine 调用。
type Monitor struct {
	logger *zap.Logger

	mu        sync.Mutex
	startTime time.Time
	timers    map[string]time.Duration

	llmCallDuration     time.Duration
	embeddingDuration   time.Duration
	cacheLookupDuration time.Duration
	totalDuration       time.Duration

	totalLLMCalls       int64
	totalEmbeddingCalls int64
	cachedLLMHits       int64
	cachedEmbeddingHits int64

	totalBatches int64
	avgBatchSize float64
	maxBatchSize int

	tokensProcessed int64
	tokensGenerated int64

	cacheSizeMB  float64
	cacheHitRate float64

	llmCallReduction float64
	throughput       float64
}

// NewMonitor 创建性能监控器，计时起点为创建时刻
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger:    logger.With(zap.String("component", "perf_monitor")),
		startTime: time.Now(),
		timers:    make(map[string]time.Duration),
	}
}

// Track 开始一段具名操作的计时，返回的函数结束计时
// 配合 defer 使用可保证任何退出路径（包括 panic 传播）都被计入。
//
//	done := m.Track("entity_extraction")
//	defer done()
func (m *Monitor) Track(label string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)

		m.mu.Lock()
		m.timers[label] += elapsed
		m.mu.Unlock()

		m.logger.Debug("tracked operation",
			zap.String("label", label), zap.Duration("elapsed", elapsed))
	}
}

// RecordLLMCall 记录一次补全调用
// cached 表示结果来自缓存；tokensIn/tokensOut 为 0 时不计入。
func (m *Monitor) RecordLLMCall(elapsed time.Duration, cached bool, tokensIn, tokensOut int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalLLMCalls++
	m.llmCallDuration += elapsed
	if cached {
		m.cachedLLMHits++
	}
	m.tokensProcessed += int64(tokensIn)
	m.tokensGenerated += int64(tokensOut)
}

// RecordEmbeddingCall 记录一次嵌入调用，count 为本次嵌入的文本数
func (m *Monitor) RecordEmbeddingCall(elapsed time.Duration, cached bool, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalEmbeddingCalls += int64(count)
	m.embeddingDuration += elapsed
	if cached {
		m.cachedEmbeddingHits += int64(count)
	}
}

// RecordBatch 记录一次批量派发，用增量均值公式更新平均批量
func (m *Monitor) RecordBatch(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBatches++
	if size > m.maxBatchSize {
		m.maxBatchSize = size
	}
	m.avgBatchSize = (m.avgBatchSize*float64(m.totalBatches-1) + float64(size)) / float64(m.totalBatches)
}

// RecordCacheLookup 记录一次缓存查询耗时
func (m *Monitor) RecordCacheLookup(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheLookupDuration += elapsed
}

// UpdateCacheMetrics 更新缓存大小与命中率快照
func (m *Monitor) UpdateCacheMetrics(sizeMB, hitRate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheSizeMB = sizeMB
	m.cacheHitRate = hitRate
}

// CalculateEfficiency 推导吞吐量与调用削减率
// baselineCalls 为未优化时的预期调用数，0 表示无基线可比。
func (m *Monitor) CalculateEfficiency(totalItems, baselineCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDuration = time.Since(m.startTime)

	if m.totalDuration > 0 {
		m.throughput = float64(totalItems) / m.totalDuration.Seconds()
	}

	if baselineCalls > 0 {
		reduction := float64(baselineCalls-int(m.totalLLMCalls)) / float64(baselineCalls) * 100
		if reduction < 0 {
			reduction = 0
		}
		m.llmCallReduction = reduction
	}
}

// Summary 返回结构化指标快照
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	breakdown := make(map[string]float64, len(m.timers))
	for label, d := range m.timers {
		breakdown[label] = d.Seconds()
	}

	return Summary{
		Timing: TimingSummary{
			TotalDurationS:       m.totalDuration.Seconds(),
			LLMCallDurationS:     m.llmCallDuration.Seconds(),
			EmbeddingDurationS:   m.embeddingDuration.Seconds(),
			CacheLookupDurationS: m.cacheLookupDuration.Seconds(),
		},
		Calls: CallSummary{
			TotalLLMCalls:       m.totalLLMCalls,
			TotalEmbeddingCalls: m.totalEmbeddingCalls,
			CachedLLMHits:       m.cachedLLMHits,
			CachedEmbeddingHits: m.cachedEmbeddingHits,
		},
		Batching: BatchSummary{
			TotalBatches: m.totalBatches,
			AvgBatchSize: m.avgBatchSize,
			MaxBatchSize: m.maxBatchSize,
		},
		Tokens: TokenSummary{
			TotalProcessed: m.tokensProcessed,
			TotalGenerated: m.tokensGenerated,
		},
		Cache: CacheSummary{
			SizeMB:  m.cacheSizeMB,
			HitRate: m.cacheHitRate,
		},
		Efficiency: EfficiencySummary{
			LLMCallReduction:      m.llmCallReduction,
			ThroughputItemsPerSec: m.throughput,
		},
		TimingsBreakdown: breakdown,
	}
}

// ExportMetrics 将指标快照以 JSON 写入指定路径
func (m *Monitor) ExportMetrics(path string) error {
	summary := m.Summary()

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics dir: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	m.logger.Info("exported metrics", zap.String("path", path))
	return nil
}
