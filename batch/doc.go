/*
包 batch 将大量单条生成请求聚合为更少的批量调用。

# 概述

索引管线按文本片段逐条发起补全/嵌入请求。本包提供基于大小与
时间双触发的批量调度器：请求先进入窗口队列，队列达到批量上限
立即派发，否则等待超时后派发；批内结果按入队顺序分发给各等待方。

# 核心类型

  - Scheduler：批量调度器，process 级缓存查询 + 窗口聚合 + 派发。
  - AdaptiveScheduler：根据最近批次耗时动态调整目标批量大小。
  - Deduplicator：批内去重，相同输入只处理一次再投影回原位置。
  - ChunkBatcher：按 token 预算切分文本块批次。

# 错误语义

批量函数失败（包括结果长度不匹配）时，同批所有等待方收到同一
错误，绝不伪造部分结果。缓存故障只降级为 miss，不影响派发。

# 使用方式

	s := batch.NewScheduler(batch.DefaultConfig(), mlc, logger)
	value, err := s.Process(ctx, text, embedFn, cacheCtx)
*/
package batch
