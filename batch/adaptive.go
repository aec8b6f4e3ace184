package batch

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// AdaptiveScheduler 带自适应批量调整的调度器
// 记录最近 SampleWindow 个批次的整批耗时，样本满 MinSamples 后：
// 平均耗时低于 FastBatchThreshold 则目标批量加 SizeStep（不超过
// MaxBatchSize），高于 SlowBatchThreshold 则减 SizeStep（不低于
// MinBatchSize）。目标批量只影响后续派发阈值。
type AdaptiveScheduler struct {
	*Scheduler

	mu      sync.Mutex
	samples []time.Duration
	target  int
}

// NewAdaptiveScheduler 创建自适应调度器
func NewAdaptiveScheduler(config Config, cache ResultCache, logger *zap.Logger) *AdaptiveScheduler {
	a := &AdaptiveScheduler{
		Scheduler: NewScheduler(config, cache, logger),
		target:    config.MaxBatchSize,
	}
	a.Scheduler.onBatch = a.observe
	return a
}

// TargetSize 返回当前目标批量
func (a *AdaptiveScheduler) TargetSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// observe 记录批次耗时并按需调整目标批量
func (a *AdaptiveScheduler) observe(size int, elapsed time.Duration) {
	if !a.config.AdaptiveSizing {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, elapsed)
	if len(a.samples) > a.config.SampleWindow {
		a.samples = a.samples[1:]
	}
	if len(a.samples) < a.config.MinSamples {
		return
	}

	var sum time.Duration
	for _, d := range a.samples {
		sum += d
	}
	mean := sum / time.Duration(len(a.samples))

	switch {
	case mean < a.config.FastBatchThreshold && a.target < a.config.MaxBatchSize:
		a.target += a.config.SizeStep
		if a.target > a.config.MaxBatchSize {
			a.target = a.config.MaxBatchSize
		}
		a.Scheduler.setTarget(a.target)
		a.logger.Debug("increased target batch size",
			zap.Int("target", a.target), zap.Duration("mean_elapsed", mean))

	case mean > a.config.SlowBatchThreshold && a.target > a.config.MinBatchSize:
		a.target -= a.config.SizeStep
		if a.target < a.config.MinBatchSize {
			a.target = a.config.MinBatchSize
		}
		a.Scheduler.setTarget(a.target)
		a.logger.Debug("decreased target batch size",
			zap.Int("target", a.target), zap.Duration("mean_elapsed", mean))
	}
}
