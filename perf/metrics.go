package perf

// Summary 性能指标快照
// 字段结构与 ExportMetrics 的 JSON 输出一一对应，作为离线分析
// 工具的稳定格式，改动需保持可回读。
type Summary struct {
	Timing           TimingSummary      `json:"timing"`
	Calls            CallSummary        `json:"calls"`
	Batching         BatchSummary       `json:"batching"`
	Tokens           TokenSummary       `json:"tokens"`
	Cache            CacheSummary       `json:"cache"`
	Efficiency       EfficiencySummary  `json:"efficiency"`
	TimingsBreakdown map[string]float64 `json:"timings_breakdown"`
}

// TimingSummary 各阶段耗时（秒）
type TimingSummary struct {
	TotalDurationS       float64 `json:"total_duration_s"`
	LLMCallDurationS     float64 `json:"llm_call_duration_s"`
	EmbeddingDurationS   float64 `json:"embedding_duration_s"`
	CacheLookupDurationS float64 `json:"cache_lookup_duration_s"`
}

// CallSummary 调用计数
type CallSummary struct {
	TotalLLMCalls       int64 `json:"total_llm_calls"`
	TotalEmbeddingCalls int64 `json:"total_embedding_calls"`
	CachedLLMHits       int64 `json:"cached_llm_hits"`
	CachedEmbeddingHits int64 `json:"cached_embedding_hits"`
}

// BatchSummary 批量指标
type BatchSummary struct {
	TotalBatches int64   `json:"total_batches"`
	AvgBatchSize float64 `json:"avg_batch_size"`
	MaxBatchSize int     `json:"max_batch_size"`
}

// TokenSummary token 计数（由调用方提供）
type TokenSummary struct {
	TotalProcessed int64 `json:"total_processed"`
	TotalGenerated int64 `json:"total_generated"`
}

// CacheSummary 缓存快照
type CacheSummary struct {
	SizeMB  float64 `json:"size_mb"`
	HitRate float64 `json:"hit_rate"`
}

// EfficiencySummary 效率推导值
type EfficiencySummary struct {
	LLMCallReduction      float64 `json:"llm_call_reduction"`
	ThroughputItemsPerSec float64 `json:"throughput_items_per_sec"`
}
