// Package testutil 提供通用的测试辅助函数。
package testutil
