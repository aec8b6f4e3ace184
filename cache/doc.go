/*
包 cache 提供索引管线的多级结果缓存，通过内容哈希复用已计算的
LLM 补全与嵌入结果，减少重复的外部生成调用。

# 概述

文档索引过程中相同的文本片段会被反复提交给生成器。本包以
SHA-256 内容哈希为键，提供两级缓存：L1 为容量受限的内存 LRU，
L2 为基于 SQLite 的持久层，支持 TTL 过期与按总大小的 LRU 淘汰。

# 核心接口

  - KeyStrategy：缓存键生成策略接口，HashKeyer 为默认实现。
  - MemoryCache：L1 内存 LRU 缓存（O(1) 操作）。
  - PersistentStore：L2 持久缓存，进程重启后数据保留。
  - MultiLevelCache：组合 L1/L2，L2 命中自动回填 L1。
  - ExtractionCache：实体/关系抽取结果的专用封装。

# 主要能力

  - 上下文敏感键：相同文本在不同模型/温度配置下互不污染。
  - 持久层按 (accessed_at, key) 确定性淘汰至上限的 80%。
  - TTL 惰性过期：读取时检查并删除过期条目。
  - 降级模式：SQLite 不可用时退化为全 miss / 空写，不影响调用方。
  - 统计：hits/misses/writes/deletes 计数与命中率。

# 使用方式

	store := cache.NewPersistentStore(cache.DefaultStoreConfig(), logger)
	mlc := cache.NewMultiLevelCache(store, cache.DefaultMultiLevelConfig(), logger)
	if v, err := mlc.Get(ctx, text, cacheCtx); err == nil {
		return v
	}
*/
package cache
