package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iim0663418/graphrag/batch"
	"github.com/iim0663418/graphrag/cache"
	"github.com/iim0663418/graphrag/internal/metrics"
	"github.com/iim0663418/graphrag/perf"
)

var (
	// ErrNoCompletionFunc 未配置补全执行函数
	ErrNoCompletionFunc = errors.New("no completion function configured")

	// ErrNoEmbeddingFunc 未配置嵌入执行函数
	ErrNoEmbeddingFunc = errors.New("no embedding function configured")
)

// OptimizedClient 带缓存与批量优化的生成客户端
// 每个实例持有独立的调度器（补全与嵌入各一个），可多实例并存。
type OptimizedClient struct {
	config ClientConfig
	logger *zap.Logger

	completeFn CompletionFunc
	embedFn    EmbeddingFunc

	store *cache.PersistentStore
	cache *cache.MultiLevelCache

	completeScheduler *batch.AdaptiveScheduler
	embedScheduler    *batch.AdaptiveScheduler
	dedup             *batch.Deduplicator
	chunker           *batch.ChunkBatcher

	monitor   *perf.Monitor
	collector *metrics.Collector
}

// NewOptimizedClient 创建优化客户端
// completeFn 与 embedFn 至少提供一个；未提供的能力对应方法返回错误。
func NewOptimizedClient(config ClientConfig, completeFn CompletionFunc, embedFn EmbeddingFunc, logger *zap.Logger) (*OptimizedClient, error) {
	if completeFn == nil && embedFn == nil {
		return nil, fmt.Errorf("at least one of completion/embedding functions is required")
	}

	c := &OptimizedClient{
		config:     config,
		logger:     logger.With(zap.String("component", "optimized_client"), zap.String("model", config.Model)),
		completeFn: completeFn,
		embedFn:    embedFn,
		dedup:      batch.NewDeduplicator(logger),
		chunker:    batch.NewChunkBatcher(config.MaxBatchTokens, config.Batch.MaxBatchSize, logger),
	}

	if config.EnableCache {
		c.store = cache.NewPersistentStore(config.Cache, logger)
		c.cache = cache.NewMultiLevelCache(c.store, cache.MultiLevelConfig{L1Capacity: config.L1Capacity}, logger)
		c.logger.Info("multi-level caching enabled")
	}

	if config.EnableBatching {
		var resultCache batch.ResultCache
		if c.cache != nil {
			resultCache = c.cache
		}
		c.completeScheduler = batch.NewAdaptiveScheduler(config.Batch, resultCache, logger)
		c.embedScheduler = batch.NewAdaptiveScheduler(config.Batch, resultCache, logger)
		c.logger.Info("adaptive batch processing enabled")
	}

	return c, nil
}

// WithMonitor 接入性能监控器
func (c *OptimizedClient) WithMonitor(m *perf.Monitor) *OptimizedClient {
	c.monitor = m
	return c
}

// WithMetrics 接入 Prometheus 指标收集器
func (c *OptimizedClient) WithMetrics(collector *metrics.Collector) *OptimizedClient {
	c.collector = collector
	c.dedup.WithMetrics(collector)
	if c.cache != nil {
		c.cache.WithMetrics(collector)
	}
	return c
}

// Complete 生成单条补全
// 缓存命中立即返回；否则经批量调度器聚合后调用补全函数。
func (c *OptimizedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.completeFn == nil {
		return "", ErrNoCompletionFunc
	}

	cacheCtx := c.completionContext()

	if c.cache != nil {
		lookupStart := time.Now()
		value, err := c.cache.Get(ctx, prompt, cacheCtx)
		c.recordCacheLookup(time.Since(lookupStart))
		if err == nil {
			c.recordLLMCall(0, true)
			return string(value), nil
		}
	}

	start := time.Now()

	if c.completeScheduler != nil {
		value, err := c.completeScheduler.Process(ctx, prompt, c.completionBatchFunc(), cacheCtx)
		elapsed := time.Since(start)
		if err != nil {
			return "", err
		}
		c.recordLLMCall(elapsed, false)
		c.collector.RecordRequest("completion", elapsed)
		return string(value), nil
	}

	// 未启用批量时直接调用
	results, err := c.completeFn(ctx, []string{prompt})
	elapsed := time.Since(start)
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", fmt.Errorf("completion function returned %d results for 1 prompt", len(results))
	}

	c.recordLLMCall(elapsed, false)
	c.collector.RecordRequest("completion", elapsed)

	if c.cache != nil {
		if cerr := c.cache.Set(ctx, prompt, []byte(results[0]), cacheCtx); cerr != nil {
			c.logger.Warn("cache write failed", zap.Error(cerr))
		}
	}

	return results[0], nil
}

// CompleteAll 批量生成补全，去重后派发，结果与 prompts 等长且顺序一致
func (c *OptimizedClient) CompleteAll(ctx context.Context, prompts []string) ([]string, error) {
	if c.completeFn == nil {
		return nil, ErrNoCompletionFunc
	}

	raw, err := c.dedup.ProcessBatch(ctx, prompts, c.completionBatchFunc())
	if err != nil {
		return nil, err
	}

	results := make([]string, len(raw))
	for i, r := range raw {
		results[i] = string(r)
	}
	return results, nil
}

// Embed 批量生成嵌入，结果与 texts 等长且顺序一致
// 逐条查缓存，仅对 miss 的文本去重后按 token 预算分批调用嵌入函数。
func (c *OptimizedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedFn == nil {
		return nil, ErrNoEmbeddingFunc
	}

	cacheCtx := c.embeddingContext()
	results := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string

	if c.cache != nil {
		for i, text := range texts {
			lookupStart := time.Now()
			value, err := c.cache.Get(ctx, text, cacheCtx)
			c.recordCacheLookup(time.Since(lookupStart))
			if err == nil {
				var vec []float32
				jerr := json.Unmarshal(value, &vec)
				if jerr == nil {
					results[i] = vec
					c.recordEmbeddingCall(0, true, 1)
					continue
				}
				c.logger.Warn("cached embedding not decodable, re-embedding", zap.Error(jerr))
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	} else {
		missIdx = make([]int, len(texts))
		missTexts = texts
		for i := range texts {
			missIdx[i] = i
		}
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	start := time.Now()
	missResults, err := c.dedup.ProcessBatch(ctx, missTexts, c.embeddingBatchFunc(cacheCtx))
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	c.recordEmbeddingCall(elapsed, false, len(missTexts))
	c.collector.RecordRequest("embedding", elapsed)

	for j, idx := range missIdx {
		var vec []float32
		if jerr := json.Unmarshal(missResults[j], &vec); jerr != nil {
			return nil, fmt.Errorf("failed to decode embedding result: %w", jerr)
		}
		results[idx] = vec
	}

	return results, nil
}

// EmbedOne 生成单条嵌入
// 并发的单条请求经嵌入调度器聚合为批量调用；缓存命中由调度器直接返回。
func (c *OptimizedClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if c.embedFn == nil {
		return nil, ErrNoEmbeddingFunc
	}

	// 未启用批量时退化为单元素批量路径
	if c.embedScheduler == nil {
		results, err := c.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return results[0], nil
	}

	cacheCtx := c.embeddingContext()

	start := time.Now()
	value, err := c.embedScheduler.Process(ctx, text, c.embeddingBatchFunc(cacheCtx), cacheCtx)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	var vec []float32
	if jerr := json.Unmarshal(value, &vec); jerr != nil {
		return nil, fmt.Errorf("failed to decode embedding result: %w", jerr)
	}

	c.recordEmbeddingCall(elapsed, false, 1)
	c.collector.RecordRequest("embedding", elapsed)
	return vec, nil
}

// Flush 派发所有排队中的请求，用于收尾与测试
func (c *OptimizedClient) Flush(ctx context.Context) {
	if c.completeScheduler != nil {
		c.completeScheduler.Flush(ctx, nil, nil)
	}
	if c.embedScheduler != nil {
		c.embedScheduler.Flush(ctx, nil, nil)
	}
}

// Stats 返回各层统计汇总
func (c *OptimizedClient) Stats() ClientStats {
	stats := ClientStats{
		Model: c.config.Model,
		Dedup: c.dedup.Stats(),
	}
	if c.cache != nil {
		stats.Cache = c.cache.Stats()
	}
	if c.completeScheduler != nil {
		stats.Batch = c.completeScheduler.Stats()
	}
	if c.embedScheduler != nil {
		stats.EmbedBatch = c.embedScheduler.Stats()
	}
	return stats
}

// Close 关闭底层持久缓存
func (c *OptimizedClient) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// completionBatchFunc 把补全执行函数适配为批量调度函数
func (c *OptimizedClient) completionBatchFunc() batch.Func {
	return func(ctx context.Context, items []string) ([][]byte, error) {
		c.recordBatch(len(items))

		results, err := c.completeFn(ctx, items)
		if err != nil {
			return nil, err
		}

		raw := make([][]byte, len(results))
		for i, r := range results {
			raw[i] = []byte(r)
		}
		return raw, nil
	}
}

// embeddingBatchFunc 把嵌入执行函数适配为按 token 预算分批的调度函数
// 每个向量 JSON 序列化后写入缓存。
func (c *OptimizedClient) embeddingBatchFunc(cacheCtx map[string]any) batch.Func {
	embed := func(ctx context.Context, items []string) ([][]byte, error) {
		c.recordBatch(len(items))

		vectors, err := c.embedFn(ctx, items)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(items) {
			return nil, fmt.Errorf("embedding function returned %d vectors for %d texts", len(vectors), len(items))
		}

		raw := make([][]byte, len(vectors))
		for i, vec := range vectors {
			data, jerr := json.Marshal(vec)
			if jerr != nil {
				return nil, fmt.Errorf("failed to encode embedding: %w", jerr)
			}
			raw[i] = data

			if c.cache != nil {
				if cerr := c.cache.Set(ctx, items[i], data, cacheCtx); cerr != nil {
					c.logger.Warn("cache write failed", zap.Error(cerr))
				}
			}
		}
		return raw, nil
	}

	return func(ctx context.Context, items []string) ([][]byte, error) {
		return c.chunker.ProcessChunks(ctx, items, embed)
	}
}

func (c *OptimizedClient) completionContext() map[string]any {
	return map[string]any{
		"kind":        "completion",
		"model":       c.config.Model,
		"temperature": c.config.Temperature,
	}
}

func (c *OptimizedClient) embeddingContext() map[string]any {
	return map[string]any{
		"kind":  "embedding",
		"model": c.config.Model,
	}
}

func (c *OptimizedClient) recordLLMCall(elapsed time.Duration, cached bool) {
	if c.monitor != nil {
		c.monitor.RecordLLMCall(elapsed, cached, 0, 0)
	}
}

func (c *OptimizedClient) recordEmbeddingCall(elapsed time.Duration, cached bool, count int) {
	if c.monitor != nil {
		c.monitor.RecordEmbeddingCall(elapsed, cached, count)
	}
}

func (c *OptimizedClient) recordCacheLookup(elapsed time.Duration) {
	if c.monitor != nil {
		c.monitor.RecordCacheLookup(elapsed)
	}
}

func (c *OptimizedClient) recordBatch(size int) {
	if c.monitor != nil {
		c.monitor.RecordBatch(size)
	}
	c.collector.RecordBatch(size)
}
