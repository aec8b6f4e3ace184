package cache

import (
	"context"

	"go.uber.org/zap"
)

// ExtractionCache 实体/关系抽取结果的专用缓存
// 以 (文本块, 抽取 prompt) 为键，避免对同一文本块重复抽取。
// 值为调用方序列化后的抽取结果，metadata 记录条目数量。
type ExtractionCache struct {
	store *PersistentStore
}

// NewExtractionCache 创建抽取结果缓存
func NewExtractionCache(config StoreConfig, logger *zap.Logger) *ExtractionCache {
	return &ExtractionCache{
		store: NewPersistentStore(config, logger),
	}
}

// GetEntities 读取缓存的实体抽取结果
func (c *ExtractionCache) GetEntities(ctx context.Context, text, prompt string) ([]byte, error) {
	return c.store.Get(ctx, text, entityContext(prompt))
}

// SetEntities 缓存实体抽取结果，count 为实体数量
func (c *ExtractionCache) SetEntities(ctx context.Context, text string, entities []byte, prompt string, count int) error {
	return c.store.Set(ctx, text, entities, entityContext(prompt), map[string]any{"entity_count": count})
}

// GetRelationships 读取缓存的关系抽取结果
func (c *ExtractionCache) GetRelationships(ctx context.Context, text, prompt string) ([]byte, error) {
	return c.store.Get(ctx, text, relationshipContext(prompt))
}

// SetRelationships 缓存关系抽取结果，count 为关系数量
func (c *ExtractionCache) SetRelationships(ctx context.Context, text string, relationships []byte, prompt string, count int) error {
	return c.store.Set(ctx, text, relationships, relationshipContext(prompt), map[string]any{"relationship_count": count})
}

// Stats 返回底层缓存统计
func (c *ExtractionCache) Stats() Stats {
	return c.store.Stats()
}

// Clear 清空缓存
func (c *ExtractionCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Close 关闭底层存储
func (c *ExtractionCache) Close() error {
	return c.store.Close()
}

func entityContext(prompt string) map[string]any {
	return map[string]any{"type": "entities", "prompt": prompt}
}

func relationshipContext(prompt string) map[string]any {
	return map[string]any{"type": "relationships", "prompt": prompt}
}
