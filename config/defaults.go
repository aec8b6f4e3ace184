// =============================================================================
// 📦 GraphRAG 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM:     DefaultLLMConfig(),
		Cache:   DefaultCacheConfig(),
		Batch:   DefaultBatchConfig(),
		Metrics: DefaultMetricsConfig(),
		Log:     DefaultLogConfig(),
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:          "default",
		Temperature:    0.7,
		EnableCache:    true,
		EnableBatching: true,
		MaxBatchTokens: 8000,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Dir:        ".cache/graphrag",
		TTL:        0,
		MaxSizeMB:  500,
		L1Capacity: 1000,
	}
}

// DefaultBatchConfig 返回默认批处理配置
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MinBatchSize:   1,
		MaxBatchSize:   32,
		MaxWaitTime:    100 * time.Millisecond,
		AdaptiveSizing: true,
		MaxQueueDepth:  0,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		Namespace:  "graphrag",
		ExportPath: ".cache/graphrag/metrics.json",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
