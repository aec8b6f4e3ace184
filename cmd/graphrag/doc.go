// Package main 是 graphrag 命令行工具入口。
package main
