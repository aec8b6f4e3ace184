package cache

import (
	"sync"
	"time"
)

// MemoryCache 容量受限的 L1 内存缓存
// 使用双向链表实现 O(1) 的 LRU 操作；不做持久化，进程重启即丢失，
// 持久性由 L2 层保证。
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*memNode
	head     *memNode // 最近访问
	tail     *memNode // 最久未访问
}

type memNode struct {
	key        string
	value      []byte
	accessedAt time.Time
	prev       *memNode
	next       *memNode
}

// NewMemoryCache 创建指定容量的内存缓存
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*memNode),
	}
}

// Get 读取缓存，命中时刷新访问时间
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return nil, false
	}

	node.accessedAt = time.Now()
	c.moveToHead(node)
	return node.value, true
}

// Set 写入缓存，容量已满时先淘汰最久未访问的条目
func (c *MemoryCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		node.accessedAt = time.Now()
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &memNode{
		key:        key,
		value:      value,
		accessedAt: time.Now(),
	}
	c.items[key] = node
	c.addToHead(node)
}

// Delete 删除条目
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

// Clear 清空缓存
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*memNode)
	c.head = nil
	c.tail = nil
}

// Len 返回当前条目数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity 返回容量上限
func (c *MemoryCache) Capacity() int {
	return c.capacity
}

// addToHead 添加节点到头部 O(1)
func (c *MemoryCache) addToHead(node *memNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// removeNode 从链表中移除节点 O(1)
func (c *MemoryCache) removeNode(node *memNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

// moveToHead 移动节点到头部 O(1)
func (c *MemoryCache) moveToHead(node *memNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

// evictTail 淘汰尾部（最久未访问）节点 O(1)
func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
