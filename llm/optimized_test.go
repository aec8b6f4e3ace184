package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iim0663418/graphrag/batch"
	"github.com/iim0663418/graphrag/cache"
	"github.com/iim0663418/graphrag/perf"
	"github.com/iim0663418/graphrag/testutil"
)

// countingComplete 记录调用次数与条目数的补全桩
type countingComplete struct {
	calls atomic.Int64
	items atomic.Int64
}

func (s *countingComplete) fn(ctx context.Context, prompts []string) ([]string, error) {
	s.calls.Add(1)
	s.items.Add(int64(len(prompts)))

	results := make([]string, len(prompts))
	for i, p := range prompts {
		results[i] = "completion of " + p
	}
	return results, nil
}

// countingEmbed 记录调用次数与条目数的嵌入桩
type countingEmbed struct {
	calls atomic.Int64
	items atomic.Int64
}

func (s *countingEmbed) fn(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	s.items.Add(int64(len(texts)))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1.0}
	}
	return vectors, nil
}

func testClientConfig(t *testing.T) ClientConfig {
	t.Helper()

	cfg := DefaultClientConfig()
	cfg.Cache = cache.StoreConfig{Dir: t.TempDir(), MaxSizeMB: 100}
	cfg.L1Capacity = 64
	cfg.Batch = batch.DefaultConfig()
	cfg.Batch.MaxBatchSize = 4
	cfg.Batch.MaxWaitTime = 10 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg ClientConfig, completeFn CompletionFunc, embedFn EmbeddingFunc) *OptimizedClient {
	t.Helper()

	c, err := NewOptimizedClient(cfg, completeFn, embedFn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewOptimizedClientRequiresFunction(t *testing.T) {
	_, err := NewOptimizedClient(DefaultClientConfig(), nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCompleteCachesResult(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableBatching = false

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)
	ctx := testutil.TestContext(t)

	first, err := c.Complete(ctx, "what is GraphRAG?")
	require.NoError(t, err)
	assert.Equal(t, "completion of what is GraphRAG?", first)

	second, err := c.Complete(ctx, "what is GraphRAG?")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 第二次命中缓存，不再调用补全函数
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCompleteWithBatchingEnabled(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.Batch.MaxBatchSize = 1 // 入队即派发

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)
	ctx := context.Background()

	result, err := c.Complete(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "completion of prompt", result)
	assert.Equal(t, int64(1), stub.calls.Load())

	// 重复请求命中缓存
	_, err = c.Complete(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCompleteConcurrentPromptsBatched(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableCache = false
	cfg.Batch.MaxBatchSize = 4
	cfg.Batch.MaxWaitTime = 50 * time.Millisecond

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Complete(context.Background(), fmt.Sprintf("prompt %d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 并发请求被聚合，调用数远小于请求数
	assert.LessOrEqual(t, stub.calls.Load(), int64(2))
	assert.Equal(t, int64(4), stub.items.Load())
}

func TestCompleteNoFunction(t *testing.T) {
	cfg := testClientConfig(t)
	embed := &countingEmbed{}
	c := newTestClient(t, cfg, nil, embed.fn)

	_, err := c.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNoCompletionFunc)
}

func TestCompletePropagatesError(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableCache = false
	cfg.Batch.MaxBatchSize = 1

	fnErr := errors.New("provider down")
	fn := func(ctx context.Context, prompts []string) ([]string, error) {
		return nil, fnErr
	}
	c := newTestClient(t, cfg, fn, nil)

	_, err := c.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, fnErr)
}

func TestCompleteAllDeduplicates(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableCache = false

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)

	prompts := []string{"a", "b", "a", "a", "b"}
	results, err := c.CompleteAll(context.Background(), prompts)
	require.NoError(t, err)

	require.Len(t, results, len(prompts))
	for i, p := range prompts {
		assert.Equal(t, "completion of "+p, results[i])
	}

	// 只有唯一子集被真正处理
	assert.Equal(t, int64(2), stub.items.Load())

	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Dedup.Savings)
}

func TestEmbedRoundTrip(t *testing.T) {
	cfg := testClientConfig(t)

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)
	ctx := testutil.TestContext(t)

	texts := []string{"alpha", "beta", "gamma"}
	vectors, err := c.Embed(ctx, texts)
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, []float32{float32(len(text)), 1.0}, vectors[i])
	}
	assert.Equal(t, int64(3), stub.items.Load())
}

func TestEmbedUsesCacheOnRepeat(t *testing.T) {
	cfg := testClientConfig(t)

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)
	ctx := context.Background()

	texts := []string{"alpha", "beta"}

	first, err := c.Embed(ctx, texts)
	require.NoError(t, err)

	second, err := c.Embed(ctx, texts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// 第二次全部命中缓存，嵌入函数只被调用过一轮
	assert.Equal(t, int64(2), stub.items.Load())
}

func TestEmbedPartialCacheHit(t *testing.T) {
	cfg := testClientConfig(t)

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"cached"})
	require.NoError(t, err)

	vectors, err := c.Embed(ctx, []string{"cached", "fresh"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{6, 1.0}, vectors[0])
	assert.Equal(t, []float32{5, 1.0}, vectors[1])

	// 只有 miss 的文本被重新嵌入
	assert.Equal(t, int64(2), stub.items.Load())
}

func TestEmbedDeduplicatesWithinBatch(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableCache = false

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)

	vectors, err := c.Embed(context.Background(), []string{"same", "same", "same"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[1])
	assert.Equal(t, vectors[1], vectors[2])
	assert.Equal(t, int64(1), stub.items.Load())
}

func TestEmbedNoFunction(t *testing.T) {
	cfg := testClientConfig(t)
	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)

	_, err := c.Embed(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, ErrNoEmbeddingFunc)
}

func TestEmbedEmptyInput(t *testing.T) {
	cfg := testClientConfig(t)
	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)

	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedOneDispatchesThroughScheduler(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.Batch.MaxBatchSize = 1 // 入队即派发

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)

	vec, err := c.EmbedOne(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1.0}, vec)
	assert.Equal(t, int64(1), stub.calls.Load())

	// 走嵌入调度器而非直接调用
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.EmbedBatch.TotalBatches)
	assert.Equal(t, int64(1), stats.EmbedBatch.TotalItemsProcessed)
}

func TestEmbedOneConcurrentTextsBatched(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableCache = false
	cfg.Batch.MaxBatchSize = 4
	cfg.Batch.MaxWaitTime = 50 * time.Millisecond

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("text %d", i)
			vec, err := c.EmbedOne(context.Background(), text)
			require.NoError(t, err)
			assert.Equal(t, []float32{float32(len(text)), 1.0}, vec)
		}(i)
	}
	wg.Wait()

	// 并发请求被聚合，调用数远小于请求数
	assert.LessOrEqual(t, stub.calls.Load(), int64(2))
	assert.Equal(t, int64(4), stub.items.Load())
}

func TestEmbedOneUsesCacheOnRepeat(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.Batch.MaxBatchSize = 1

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)
	ctx := testutil.TestContext(t)

	first, err := c.EmbedOne(ctx, "repeated text")
	require.NoError(t, err)

	second, err := c.EmbedOne(ctx, "repeated text")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 第二次由调度器缓存直接返回
	assert.Equal(t, int64(1), stub.calls.Load())
	assert.Equal(t, int64(1), c.Stats().EmbedBatch.TotalCacheHits)
}

func TestEmbedOneWithoutBatching(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableBatching = false

	stub := &countingEmbed{}
	c := newTestClient(t, cfg, nil, stub.fn)

	vec, err := c.EmbedOne(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1.0}, vec)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestClientMonitorIntegration(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableBatching = false

	stub := &countingComplete{}
	monitor := perf.NewMonitor(zap.NewNop())
	c := newTestClient(t, cfg, stub.fn, nil).WithMonitor(monitor)
	ctx := context.Background()

	_, err := c.Complete(ctx, "prompt")
	require.NoError(t, err)
	_, err = c.Complete(ctx, "prompt")
	require.NoError(t, err)

	summary := monitor.Summary()
	assert.Equal(t, int64(2), summary.Calls.TotalLLMCalls)
	assert.Equal(t, int64(1), summary.Calls.CachedLLMHits)
}

func TestClientStats(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.Model = "test-model"
	cfg.Batch.MaxBatchSize = 1

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)
	ctx := context.Background()

	_, err := c.Complete(ctx, "prompt")
	require.NoError(t, err)
	_, err = c.Complete(ctx, "prompt")
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, "test-model", stats.Model)
	assert.Equal(t, int64(1), stats.Cache.TotalHits)
	assert.Equal(t, int64(1), stats.Batch.TotalBatches)
}

func TestClientDegradedCacheStillWorks(t *testing.T) {
	cfg := testClientConfig(t)
	cfg.EnableBatching = false

	// 指向普通文件使持久层降级，客户端仍须正常工作
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.Cache.Dir = blocker

	stub := &countingComplete{}
	c := newTestClient(t, cfg, stub.fn, nil)

	result, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "completion of prompt", result)
}
