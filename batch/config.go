package batch

import (
	"fmt"
	"time"
)

// Config 批量调度配置，调度器构造后不可变。
type Config struct {
	// 最小批量
	MinBatchSize int `yaml:"min_batch_size" json:"min_batch_size"`

	// 最大批量，达到后立即派发
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`

	// 未满批的最长等待时间
	MaxWaitTime time.Duration `yaml:"max_wait_time" json:"max_wait_time"`

	// 是否根据批次耗时自适应调整目标批量
	AdaptiveSizing bool `yaml:"adaptive_sizing" json:"adaptive_sizing"`

	// 是否在入队前查缓存、派发后写缓存
	EnableCacheDedup bool `yaml:"enable_cache_dedup" json:"enable_cache_dedup"`

	// 窗口内待处理请求数上限，0 表示不限
	MaxQueueDepth int `yaml:"max_queue_depth" json:"max_queue_depth"`

	// 自适应调整参数
	// 平均批次耗时低于 FastBatchThreshold 时目标批量加 SizeStep，
	// 高于 SlowBatchThreshold 时减 SizeStep。阈值针对整批耗时而非
	// 单条（沿用来源系统的语义，来源未明确区分两者）。
	FastBatchThreshold time.Duration `yaml:"fast_batch_threshold" json:"fast_batch_threshold"`
	SlowBatchThreshold time.Duration `yaml:"slow_batch_threshold" json:"slow_batch_threshold"`
	SizeStep           int           `yaml:"size_step" json:"size_step"`
	SampleWindow       int           `yaml:"sample_window" json:"sample_window"`
	MinSamples         int           `yaml:"min_samples" json:"min_samples"`
}

// DefaultConfig 返回合理的默认值
func DefaultConfig() Config {
	return Config{
		MinBatchSize:       1,
		MaxBatchSize:       32,
		MaxWaitTime:        100 * time.Millisecond,
		AdaptiveSizing:     true,
		EnableCacheDedup:   true,
		MaxQueueDepth:      0,
		FastBatchThreshold: 500 * time.Millisecond,
		SlowBatchThreshold: 2 * time.Second,
		SizeStep:           4,
		SampleWindow:       10,
		MinSamples:         3,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.MinBatchSize < 1 {
		return fmt.Errorf("min_batch_size must be >= 1, got %d", c.MinBatchSize)
	}
	if c.MaxBatchSize < c.MinBatchSize {
		return fmt.Errorf("max_batch_size %d < min_batch_size %d", c.MaxBatchSize, c.MinBatchSize)
	}
	if c.MaxWaitTime < 0 {
		return fmt.Errorf("max_wait_time must be >= 0, got %s", c.MaxWaitTime)
	}
	if c.MaxQueueDepth < 0 {
		return fmt.Errorf("max_queue_depth must be >= 0, got %d", c.MaxQueueDepth)
	}
	if c.SizeStep < 1 {
		return fmt.Errorf("size_step must be >= 1, got %d", c.SizeStep)
	}
	return nil
}
