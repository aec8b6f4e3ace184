package batch

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TokenCounter 统计文本的 token 数
type TokenCounter func(text string) int

// ChunkBatcher 按 token 预算切分文本块批次
// 在不超过 token 预算与批量上限的前提下尽量装满每个批次，
// 用于嵌入生成等对批内总 token 数敏感的场景。
type ChunkBatcher struct {
	maxBatchTokens int
	maxBatchSize   int
	counter        TokenCounter
	logger         *zap.Logger
}

// NewChunkBatcher 创建文本块批处理器
// 默认使用 cl100k_base 编码计数；编码器不可用时退化为
// 每 4 字符约 1 token 的近似。
func NewChunkBatcher(maxBatchTokens, maxBatchSize int, logger *zap.Logger) *ChunkBatcher {
	b := &ChunkBatcher{
		maxBatchTokens: maxBatchTokens,
		maxBatchSize:   maxBatchSize,
		logger:         logger.With(zap.String("component", "chunk_batcher")),
	}

	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		b.counter = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	} else {
		b.logger.Warn("tiktoken encoding unavailable, using char approximation", zap.Error(err))
		b.counter = approxTokenCount
	}

	return b
}

// WithTokenCounter 覆盖 token 计数函数
func (b *ChunkBatcher) WithTokenCounter(counter TokenCounter) *ChunkBatcher {
	b.counter = counter
	return b
}

// CreateBatches 将文本块分组为不超限的批次，保持输入顺序
func (b *ChunkBatcher) CreateBatches(chunks []string) [][]string {
	var batches [][]string
	var current []string
	currentTokens := 0

	for _, chunk := range chunks {
		chunkTokens := b.counter(chunk)

		if len(current) > 0 &&
			(len(current) >= b.maxBatchSize || currentTokens+chunkTokens > b.maxBatchTokens) {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, chunk)
		currentTokens += chunkTokens
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	b.logger.Debug("created chunk batches",
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", len(batches)),
	)

	return batches
}

// ProcessChunks 分批并发处理文本块，结果与 chunks 等长且顺序一致
// 任一批次失败则整体失败。
func (b *ChunkBatcher) ProcessChunks(ctx context.Context, chunks []string, fn Func) ([][]byte, error) {
	batches := b.CreateBatches(chunks)
	results := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)

	offset := 0
	for _, items := range batches {
		start := offset
		batchItems := items
		offset += len(items)

		g.Go(func() error {
			batchResults, err := fn(gctx, batchItems)
			if err != nil {
				return err
			}
			if len(batchResults) != len(batchItems) {
				return errLengthMismatch(len(batchResults), len(batchItems))
			}
			copy(results[start:start+len(batchItems)], batchResults)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// approxTokenCount 约 4 字符 1 token 的近似
func approxTokenCount(text string) int {
	return len(text) / 4
}
