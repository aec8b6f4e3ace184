/*
包 llm 将缓存、去重与批量调度组合为一个优化的生成客户端。

# 概述

OptimizedClient 包裹调用方提供的补全/嵌入执行函数（外部协作方，
本包不实现生成逻辑），在其外围叠加多级缓存、批内去重与自适应
批量调度，并把调用耗时与命中情况上报给性能监控器与 Prometheus。

# 使用方式

	client, err := llm.NewOptimizedClient(llm.DefaultClientConfig(), completeFn, embedFn, logger)
	text, err := client.Complete(ctx, prompt)
	vectors, err := client.Embed(ctx, texts)
*/
package llm
