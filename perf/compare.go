package perf

import (
	"encoding/json"
	"fmt"
	"os"
)

// Comparison 对比基线运行与优化运行的导出指标
type Comparison struct {
	baseline  *Summary
	optimized *Summary
}

// ComparisonResult 对比结果，各改进值为百分比
type ComparisonResult struct {
	DurationImprovement   float64 `json:"duration_improvement"`
	LLMCallsReduction     float64 `json:"llm_calls_reduction"`
	ThroughputImprovement float64 `json:"throughput_improvement"`
	CacheHitRate          float64 `json:"cache_hit_rate"`
	AvgBatchSize          float64 `json:"avg_batch_size"`
}

// NewComparison 创建对比分析器
func NewComparison() *Comparison {
	return &Comparison{}
}

// LoadBaseline 加载基线指标文件
func (c *Comparison) LoadBaseline(path string) error {
	summary, err := loadSummary(path)
	if err != nil {
		return fmt.Errorf("failed to load baseline metrics: %w", err)
	}
	c.baseline = summary
	return nil
}

// LoadOptimized 加载优化运行指标文件
func (c *Comparison) LoadOptimized(path string) error {
	summary, err := loadSummary(path)
	if err != nil {
		return fmt.Errorf("failed to load optimized metrics: %w", err)
	}
	c.optimized = summary
	return nil
}

// Compare 计算两次运行的改进幅度
func (c *Comparison) Compare() (ComparisonResult, error) {
	if c.baseline == nil || c.optimized == nil {
		return ComparisonResult{}, fmt.Errorf("both baseline and optimized metrics must be loaded")
	}

	return ComparisonResult{
		DurationImprovement: improvement(
			c.baseline.Timing.TotalDurationS,
			c.optimized.Timing.TotalDurationS,
		),
		LLMCallsReduction: improvement(
			float64(c.baseline.Calls.TotalLLMCalls),
			float64(c.optimized.Calls.TotalLLMCalls),
		),
		ThroughputImprovement: increase(
			c.baseline.Efficiency.ThroughputItemsPerSec,
			c.optimized.Efficiency.ThroughputItemsPerSec,
		),
		CacheHitRate: c.optimized.Cache.HitRate,
		AvgBatchSize: c.optimized.Batching.AvgBatchSize,
	}, nil
}

func loadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// improvement 下降幅度百分比（基线为 0 时定义为 0）
func improvement(baseline, optimized float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (baseline - optimized) / baseline * 100
}

// increase 上升幅度百分比（基线为 0 时定义为 0）
func increase(baseline, optimized float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (optimized - baseline) / baseline * 100
}
