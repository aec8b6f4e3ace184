/*
包 perf 提供索引运行期间的性能采集与效率分析。

# 概述

Monitor 通过显式 record/track 调用累计各类耗时、调用计数、
批量与缓存指标，并推导调用削减率与吞吐量；Summary 快照可导出
为 JSON 文件，供 Comparison 对基线与优化运行做离线对比。

# 使用方式

	m := perf.NewMonitor(logger)
	done := m.Track("entity_extraction")
	extractEntities(text)
	done()

	m.RecordLLMCall(elapsed, false, tokensIn, tokensOut)
	m.CalculateEfficiency(totalItems, baselineCalls)
	_ = m.ExportMetrics("out/metrics.json")
*/
package perf
