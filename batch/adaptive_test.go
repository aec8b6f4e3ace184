package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestAdaptive(mutate func(*Config)) *AdaptiveScheduler {
	cfg := DefaultConfig()
	cfg.MinBatchSize = 4
	cfg.MaxBatchSize = 32
	cfg.SizeStep = 4
	cfg.MinSamples = 3
	cfg.SampleWindow = 10
	cfg.EnableCacheDedup = false
	if mutate != nil {
		mutate(&cfg)
	}
	return NewAdaptiveScheduler(cfg, nil, zap.NewNop())
}

func TestAdaptiveStartsAtMaxBatchSize(t *testing.T) {
	a := newTestAdaptive(nil)
	assert.Equal(t, 32, a.TargetSize())
}

func TestAdaptiveNoAdjustmentBelowMinSamples(t *testing.T) {
	a := newTestAdaptive(func(c *Config) { c.MaxBatchSize = 16 })

	a.observe(8, 10*time.Millisecond)
	a.observe(8, 10*time.Millisecond)

	// 样本不足，目标不变
	assert.Equal(t, 16, a.TargetSize())
}

func TestAdaptiveGrowsOnFastBatches(t *testing.T) {
	a := newTestAdaptive(func(c *Config) { c.MaxBatchSize = 32 })
	a.target = 16
	a.Scheduler.setTarget(16)

	for i := 0; i < 3; i++ {
		a.observe(8, 100*time.Millisecond) // 远低于 FastBatchThreshold
	}

	assert.Equal(t, 20, a.TargetSize())
}

func TestAdaptiveGrowthCapsAtMax(t *testing.T) {
	a := newTestAdaptive(nil)

	for i := 0; i < 10; i++ {
		a.observe(8, 10*time.Millisecond)
	}

	assert.Equal(t, 32, a.TargetSize())
}

func TestAdaptiveShrinksOnSlowBatches(t *testing.T) {
	a := newTestAdaptive(nil)

	for i := 0; i < 3; i++ {
		a.observe(32, 3*time.Second) // 高于 SlowBatchThreshold
	}

	assert.Equal(t, 28, a.TargetSize())
}

func TestAdaptiveShrinkFloorsAtMin(t *testing.T) {
	a := newTestAdaptive(nil)

	for i := 0; i < 50; i++ {
		a.observe(32, 3*time.Second)
	}

	assert.Equal(t, 4, a.TargetSize())
}

func TestAdaptiveStableInMiddleBand(t *testing.T) {
	a := newTestAdaptive(nil)
	a.target = 16
	a.Scheduler.setTarget(16)

	// 介于两个阈值之间，目标保持不变
	for i := 0; i < 10; i++ {
		a.observe(16, time.Second)
	}

	assert.Equal(t, 16, a.TargetSize())
}

func TestAdaptiveDisabled(t *testing.T) {
	a := newTestAdaptive(func(c *Config) { c.AdaptiveSizing = false })

	for i := 0; i < 10; i++ {
		a.observe(8, 10*time.Millisecond)
	}

	assert.Equal(t, 32, a.TargetSize())
}

func TestAdaptiveSlidingWindowForgetsOldSamples(t *testing.T) {
	a := newTestAdaptive(func(c *Config) { c.SampleWindow = 3 })

	// 三个慢样本把目标压低一步
	for i := 0; i < 3; i++ {
		a.observe(32, 3*time.Second)
	}
	assert.Equal(t, 28, a.TargetSize())

	// 足够多的快样本把旧的慢样本挤出窗口后，目标回升到上限
	for i := 0; i < 5; i++ {
		a.observe(8, 10*time.Millisecond)
	}
	assert.Equal(t, 32, a.TargetSize())
}
