// Package config 提供 GraphRAG 优化层的统一配置加载。
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量（前缀 GRAPHRAG）。
package config
