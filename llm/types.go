package llm

import (
	"context"

	"github.com/iim0663418/graphrag/batch"
	"github.com/iim0663418/graphrag/cache"
)

// CompletionFunc 批量补全执行函数（外部协作方）
// 返回与 prompts 等长且顺序对应的补全结果，失败时整个调用失败。
type CompletionFunc func(ctx context.Context, prompts []string) ([]string, error)

// EmbeddingFunc 批量嵌入执行函数（外部协作方）
// 返回与 texts 等长且顺序对应的向量，失败时整个调用失败。
type EmbeddingFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ClientConfig 优化客户端配置
type ClientConfig struct {
	// 模型标识，参与缓存键上下文
	Model string `yaml:"model" json:"model"`

	// 采样温度，参与补全缓存键上下文
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// 是否启用多级缓存
	EnableCache bool `yaml:"enable_cache" json:"enable_cache"`

	// 是否启用批量调度
	EnableBatching bool `yaml:"enable_batching" json:"enable_batching"`

	// L2 持久缓存配置
	Cache cache.StoreConfig `yaml:"cache" json:"cache"`

	// L1 内存缓存条目数上限
	L1Capacity int `yaml:"l1_capacity" json:"l1_capacity"`

	// 批量调度配置
	Batch batch.Config `yaml:"batch" json:"batch"`

	// 嵌入批次的 token 预算
	MaxBatchTokens int `yaml:"max_batch_tokens" json:"max_batch_tokens"`
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Model:          "default",
		Temperature:    0.7,
		EnableCache:    true,
		EnableBatching: true,
		Cache:          cache.DefaultStoreConfig(),
		L1Capacity:     500,
		Batch:          batch.DefaultConfig(),
		MaxBatchTokens: 8000,
	}
}

// ClientStats 客户端各层统计汇总
type ClientStats struct {
	Model      string                `json:"model"`
	Cache      cache.MultiLevelStats `json:"cache"`
	Batch      batch.Stats           `json:"batching"`
	EmbedBatch batch.Stats           `json:"embedding_batching"`
	Dedup      batch.DedupStats      `json:"deduplication"`
}
