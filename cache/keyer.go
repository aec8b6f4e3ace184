package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyStrategy 缓存键生成策略接口
type KeyStrategy interface {
	// Key 根据文本与可选上下文生成缓存键
	Key(text string, context map[string]any) string

	// Name 返回策略名称（用于日志和调试）
	Name() string
}

// HashKeyer 基于内容哈希的键策略
// 对文本的 UTF-8 字节与上下文的规范化序列化（按键排序）做 SHA-256，
// 相同 (text, context) 必然得到相同键，不同上下文必然得到不同键。
type HashKeyer struct{}

// NewHashKeyer 创建哈希键策略
func NewHashKeyer() *HashKeyer {
	return &HashKeyer{}
}

// Name 返回策略名称
func (k *HashKeyer) Name() string {
	return "hash"
}

// Key 生成 SHA-256 十六进制缓存键
// context 为 nil 时只对文本哈希；空 map 与 nil 是两个不同的稳定情形。
func (k *HashKeyer) Key(text string, context map[string]any) string {
	input := text
	if context != nil {
		// encoding/json 对 map 键排序，天然做到顺序无关的规范化
		data, err := json.Marshal(context)
		if err != nil {
			// fallback: 使用 fmt.Sprintf 生成确定性字符串避免 key 碰撞
			data = []byte(fmt.Sprintf("%v", context))
		}
		input = text + "|" + string(data)
	}

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
