package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull 窗口队列达到 MaxQueueDepth 上限
var ErrQueueFull = errors.New("batch queue full")

// errLengthMismatch 批量函数结果长度与输入不一致
func errLengthMismatch(got, want int) error {
	return fmt.Errorf("batch function returned %d results for %d items", got, want)
}

// Func 批量处理函数契约
// 输入输出等长且顺序对应；失败时整个调用失败，不存在部分成功。
type Func func(ctx context.Context, items []string) ([][]byte, error)

// ResultCache 调度器使用的结果缓存接口
type ResultCache interface {
	Get(ctx context.Context, text string, cacheCtx map[string]any) ([]byte, error)
	Set(ctx context.Context, text string, value []byte, cacheCtx map[string]any) error
}

// result 单个请求的最终结果
type result struct {
	value []byte
	err   error
}

// pendingRequest 窗口队列中的待处理请求
// 从入队到所属批次派发完成，由调度器独占持有。
type pendingRequest struct {
	id       string
	item     string
	fn       Func
	cacheCtx map[string]any
	ctx      context.Context
	result   chan result
}

// Scheduler 批量调度器
// 将并发的单条请求聚合为批量调用：队列长度达到目标批量立即派发，
// 否则等待 MaxWaitTime 后派发。批内结果按入队顺序分发。
type Scheduler struct {
	config Config
	cache  ResultCache
	logger *zap.Logger

	mu     sync.Mutex
	queue  []*pendingRequest
	timer  *time.Timer
	target int

	// 同一调度器同一时刻只允许一次派发
	dispatchMu sync.Mutex

	// 每次派发后的回调（自适应调度器挂接）
	onBatch func(size int, elapsed time.Duration)

	stats Stats
}

// NewScheduler 创建批量调度器，cache 可为 nil（禁用缓存去重）
func NewScheduler(config Config, cache ResultCache, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		config: config,
		cache:  cache,
		logger: logger.With(zap.String("component", "batch_scheduler")),
		target: config.MaxBatchSize,
		stats: Stats{
			BatchesBySize: make(map[int]int64),
		},
	}

	s.logger.Info("batch scheduler initialized",
		zap.Int("min_batch_size", config.MinBatchSize),
		zap.Int("max_batch_size", config.MaxBatchSize),
		zap.Duration("max_wait_time", config.MaxWaitTime),
	)

	return s
}

// Process 提交单条请求并等待其所属批次的结果
// 启用缓存去重时先查缓存，命中立即返回不进入队列。
// 调用会挂起直至批次派发完成或 ctx 取消。
func (s *Scheduler) Process(ctx context.Context, item string, fn Func, cacheCtx map[string]any) ([]byte, error) {
	s.mu.Lock()
	s.stats.TotalRequests++
	s.mu.Unlock()

	if s.cache != nil && s.config.EnableCacheDedup {
		if value, err := s.cache.Get(ctx, item, cacheCtx); err == nil {
			s.mu.Lock()
			s.stats.TotalCacheHits++
			s.mu.Unlock()
			return value, nil
		}
	}

	pending := &pendingRequest{
		id:       uuid.NewString(),
		item:     item,
		fn:       fn,
		cacheCtx: cacheCtx,
		ctx:      ctx,
		result:   make(chan result, 1),
	}

	s.mu.Lock()
	if s.config.MaxQueueDepth > 0 && len(s.queue) >= s.config.MaxQueueDepth {
		s.mu.Unlock()
		return nil, ErrQueueFull
	}

	s.queue = append(s.queue, pending)
	s.logger.Debug("request enqueued",
		zap.String("request_id", pending.id),
		zap.Int("queue_len", len(s.queue)),
	)

	// 第一条请求开启新窗口
	if len(s.queue) == 1 {
		s.startTimerLocked()
	}

	var due []*pendingRequest
	if len(s.queue) >= s.targetLocked() {
		due = s.extractLocked()
	}
	s.mu.Unlock()

	if due != nil {
		s.dispatch(due[0].ctx, due, due[0].fn, due[0].cacheCtx)
	}

	select {
	case res := <-pending.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush 同步强制派发所有排队窗口，fn 为 nil 时使用各窗口自带的函数
func (s *Scheduler) Flush(ctx context.Context, fn Func, cacheCtx map[string]any) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		due := s.extractLocked()
		s.mu.Unlock()

		dispatchFn := fn
		dispatchCtx := cacheCtx
		if dispatchFn == nil {
			dispatchFn = due[0].fn
			dispatchCtx = due[0].cacheCtx
		}
		s.dispatch(ctx, due, dispatchFn, dispatchCtx)
	}
}

// Stats 返回统计快照
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.stats
	snapshot.BatchesBySize = make(map[int]int64, len(s.stats.BatchesBySize))
	for size, count := range s.stats.BatchesBySize {
		snapshot.BatchesBySize[size] = count
	}
	return snapshot
}

// onTimer 等待超时触发派发
func (s *Scheduler) onTimer() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	due := s.extractLocked()
	s.mu.Unlock()

	s.dispatch(due[0].ctx, due, due[0].fn, due[0].cacheCtx)
}

// startTimerLocked 启动窗口等待计时器，须持锁调用
func (s *Scheduler) startTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.config.MaxWaitTime, s.onTimer)
}

// targetLocked 返回当前派发阈值，限制在 [MinBatchSize, MaxBatchSize]
func (s *Scheduler) targetLocked() int {
	t := s.target
	if t < s.config.MinBatchSize {
		t = s.config.MinBatchSize
	}
	if t > s.config.MaxBatchSize {
		t = s.config.MaxBatchSize
	}
	return t
}

// setTarget 更新派发阈值（自适应调度器调用）
func (s *Scheduler) setTarget(n int) {
	s.mu.Lock()
	s.target = n
	s.mu.Unlock()
}

// extractLocked 取出至多一个批量的请求并管理窗口计时器，须持锁调用
// 超出批量上限的剩余请求开启新窗口。
func (s *Scheduler) extractLocked() []*pendingRequest {
	n := s.targetLocked()
	if n > len(s.queue) {
		n = len(s.queue)
	}

	due := s.queue[:n:n]
	s.queue = append([]*pendingRequest(nil), s.queue[n:]...)

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.queue) > 0 {
		s.startTimerLocked()
	}

	return due
}

// dispatch 调用批量函数并向批内每个请求分发结果或错误
func (s *Scheduler) dispatch(ctx context.Context, due []*pendingRequest, fn Func, cacheCtx map[string]any) {
	if len(due) == 0 {
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	items := make([]string, len(due))
	for i, p := range due {
		items[i] = p.item
	}

	s.mu.Lock()
	s.stats.TotalBatches++
	s.stats.TotalItemsProcessed += int64(len(items))
	s.stats.BatchesBySize[len(items)]++
	s.mu.Unlock()

	start := time.Now()
	results, err := fn(ctx, items)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.stats.TotalWaitTimeMS += float64(elapsed) / float64(time.Millisecond)
	s.mu.Unlock()

	// 结果长度不匹配按批量失败处理
	if err == nil && len(results) != len(items) {
		err = errLengthMismatch(len(results), len(items))
	}

	if err != nil {
		s.logger.Error("batch processing failed",
			zap.Int("size", len(items)), zap.Error(err))
		for _, p := range due {
			p.result <- result{err: err}
		}
	} else {
		for i, p := range due {
			if s.cache != nil && s.config.EnableCacheDedup {
				if cerr := s.cache.Set(ctx, p.item, results[i], cacheCtx); cerr != nil {
					s.logger.Warn("cache write-back failed", zap.Error(cerr))
				}
			}
			p.result <- result{value: results[i]}
		}
		s.logger.Debug("processed batch",
			zap.Int("size", len(items)), zap.Duration("elapsed", elapsed))
	}

	if s.onBatch != nil {
		s.onBatch(len(items), elapsed)
	}
}
