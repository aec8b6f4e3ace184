/*
包 metrics 提供基于 Prometheus 的调用削减指标采集能力，覆盖
缓存、批量与生成调用三个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 缓存指标：命中与未命中计数，按 tier（l1/l2）分组。
  - 批量指标：派发批量大小直方图、去重节省计数。
  - 生成调用指标：补全/嵌入请求耗时直方图，按 kind 分组。

所有记录方法对 nil Collector 安全，组件可以选择性接入。
*/
package metrics
