package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMemoryCacheBasic(t *testing.T) {
	c := NewMemoryCache(4)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 4, c.Capacity())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	// 容量 2，最早写入且未被访问的 a 被淘汰
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestMemoryCacheGetRefreshesRecency(t *testing.T) {
	c := NewMemoryCache(2)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	// 访问 a 使其变为最新，随后的淘汰应命中 b
	_, _ = c.Get("a")
	c.Set("c", []byte("3"))

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCache(2)

	c.Set("a", []byte("1"))
	c.Set("a", []byte("updated"))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("updated"), v)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(4)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

// TestMemoryCacheModel 用状态机方式对照参考模型验证 LRU 行为
func TestMemoryCacheModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(t, "capacity")
		c := NewMemoryCache(capacity)

		model := make(map[string][]byte)
		var order []string // 最旧在前

		touch := func(key string) {
			for i, k := range order {
				if k == key {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
			order = append(order, key)
		}

		keys := rapid.SampledFrom([]string{"a", "b", "c", "d", "e"})
		steps := rapid.IntRange(1, 50).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			key := keys.Draw(t, "key")

			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0: // Set
				value := []byte(fmt.Sprintf("v%d", i))
				c.Set(key, value)
				if _, exists := model[key]; !exists && len(model) >= capacity {
					oldest := order[0]
					order = order[1:]
					delete(model, oldest)
				}
				model[key] = value
				touch(key)

			case 1: // Get
				got, ok := c.Get(key)
				want, exists := model[key]
				if ok != exists {
					t.Fatalf("Get(%q): ok=%v, model exists=%v", key, ok, exists)
				}
				if ok {
					if string(got) != string(want) {
						t.Fatalf("Get(%q): got %q, want %q", key, got, want)
					}
					touch(key)
				}

			case 2: // Delete
				c.Delete(key)
				if _, exists := model[key]; exists {
					delete(model, key)
					for i, k := range order {
						if k == key {
							order = append(order[:i], order[i+1:]...)
							break
						}
					}
				}
			}

			if c.Len() != len(model) {
				t.Fatalf("Len()=%d, model has %d entries", c.Len(), len(model))
			}
			if c.Len() > capacity {
				t.Fatalf("Len()=%d exceeds capacity %d", c.Len(), capacity)
			}
		}
	})
}
