package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// evictTargetRatio 淘汰目标：超限后删除到上限的 80%
const evictTargetRatio = 0.8

// Entry 持久缓存条目
type Entry struct {
	Key        string    `gorm:"column:key;primaryKey;size:64" json:"key"`
	Value      []byte    `gorm:"column:value;not null" json:"-"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
	AccessedAt time.Time `gorm:"column:accessed_at;not null;index" json:"accessed_at"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null" json:"size_bytes"`
	Metadata   string    `gorm:"column:metadata" json:"metadata,omitempty"`
}

// TableName 指定表名
func (Entry) TableName() string {
	return "cache_entries"
}

// StoreConfig 持久缓存配置
type StoreConfig struct {
	// 缓存目录
	Dir string `yaml:"dir" json:"dir"`

	// 条目存活时间，0 表示不过期
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 缓存总大小上限（MB）
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`
}

// DefaultStoreConfig 返回默认持久缓存配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Dir:       ".cache/graphrag",
		TTL:       0,
		MaxSizeMB: 500,
	}
}

// PersistentStore 基于 SQLite 的 L2 持久缓存
// 条目在进程重启后保留；底层存储不可用时降级为全 miss / 空写，
// 绝不向调用方返回致命错误。
type PersistentStore struct {
	db       *gorm.DB
	config   StoreConfig
	keyer    KeyStrategy
	logger   *zap.Logger
	mu       sync.Mutex
	stats    Stats
	degraded bool
}

// NewPersistentStore 创建持久缓存
// 打开或迁移数据库失败时返回降级模式的实例，只记录日志。
func NewPersistentStore(config StoreConfig, logger *zap.Logger) *PersistentStore {
	s := &PersistentStore{
		config: config,
		keyer:  NewHashKeyer(),
		logger: logger.With(zap.String("component", "persistent_store")),
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		s.logger.Warn("cache dir unavailable, running degraded", zap.Error(err))
		s.degraded = true
		return s
	}

	dbPath := filepath.Join(config.Dir, "cache.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		s.logger.Warn("cache db unavailable, running degraded",
			zap.String("path", dbPath), zap.Error(err))
		s.degraded = true
		return s
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		s.logger.Warn("cache db migrate failed, running degraded", zap.Error(err))
		s.degraded = true
		return s
	}

	s.db = db
	s.stats.SizeBytes = s.totalSize()

	s.logger.Info("persistent cache initialized",
		zap.String("dir", config.Dir),
		zap.Duration("ttl", config.TTL),
		zap.Int("max_size_mb", config.MaxSizeMB),
	)

	return s
}

// Degraded 返回是否处于降级模式
func (s *PersistentStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Get 按文本与上下文读取缓存
func (s *PersistentStore) Get(ctx context.Context, text string, cacheCtx map[string]any) ([]byte, error) {
	return s.GetByKey(ctx, s.keyer.Key(text, cacheCtx))
}

// GetByKey 按已计算的键读取缓存
// TTL 过期的条目视为 miss 并顺带删除；命中时刷新 accessed_at。
func (s *PersistentStore) GetByKey(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		s.stats.Misses++
		return nil, ErrCacheMiss
	}

	var e Entry
	err := s.db.WithContext(ctx).First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.stats.Misses++
		return nil, ErrCacheMiss
	}
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		s.stats.Misses++
		return nil, ErrCacheMiss
	}

	// TTL 惰性过期：过期条目按 miss 处理并删除
	if s.config.TTL > 0 && time.Since(e.CreatedAt) > s.config.TTL {
		if err := s.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key).Error; err != nil {
			s.logger.Warn("expired entry delete failed", zap.String("key", key), zap.Error(err))
		} else {
			s.stats.Deletes++
		}
		s.stats.Misses++
		s.stats.SizeBytes = s.totalSize()
		return nil, ErrCacheMiss
	}

	if err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("key = ?", key).
		Update("accessed_at", time.Now()).Error; err != nil {
		s.logger.Warn("accessed_at update failed", zap.String("key", key), zap.Error(err))
	}

	s.stats.Hits++
	return e.Value, nil
}

// Set 按文本与上下文写入缓存
func (s *PersistentStore) Set(ctx context.Context, text string, value []byte, cacheCtx, metadata map[string]any) error {
	return s.SetByKey(ctx, s.keyer.Key(text, cacheCtx), value, metadata)
}

// SetByKey 按已计算的键写入缓存
// 超过大小上限的条目跳过写入并记录日志；写入后超限触发淘汰。
// 永远不向调用方返回错误，缓存故障只影响性能不影响正确性。
func (s *PersistentStore) SetByKey(ctx context.Context, key string, value []byte, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return nil
	}

	maxBytes := int64(s.config.MaxSizeMB) * 1024 * 1024
	size := int64(len(value))
	if size > maxBytes {
		s.logger.Warn("cache entry too large, skipping",
			zap.String("key", key),
			zap.Int64("size_bytes", size),
			zap.Int64("max_bytes", maxBytes),
		)
		return nil
	}

	var meta string
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("metadata not serializable, skipping write",
				zap.String("key", key), zap.Error(err))
			return nil
		}
		meta = string(data)
	}

	now := time.Now()
	e := Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		AccessedAt: now,
		SizeBytes:  size,
		Metadata:   meta,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&e).Error
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return nil
	}

	s.stats.Writes++
	s.stats.SizeBytes = s.totalSize()
	s.maybeEvict(ctx, maxBytes)

	return nil
}

// Clear 删除所有条目并重置统计
func (s *PersistentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return nil
	}

	if err := s.db.WithContext(ctx).Exec("DELETE FROM cache_entries").Error; err != nil {
		s.logger.Warn("cache clear failed", zap.Error(err))
		return nil
	}

	s.stats = Stats{}
	s.logger.Info("cache cleared")
	return nil
}

// Stats 返回统计快照
func (s *PersistentStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close 关闭底层数据库
func (s *PersistentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// totalSize 重新计算总大小，须持锁调用
func (s *PersistentStore) totalSize() int64 {
	if s.db == nil {
		return 0
	}

	var total int64
	if err := s.db.Model(&Entry{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error; err != nil {
		s.logger.Warn("size query failed", zap.Error(err))
		return s.stats.SizeBytes
	}
	return total
}

// maybeEvict 总大小超限时按 (accessed_at, key) 升序删除直至 ≤ 80% 上限
// 键作为第二排序维度保证淘汰顺序确定。须持锁调用。
func (s *PersistentStore) maybeEvict(ctx context.Context, maxBytes int64) {
	if s.stats.SizeBytes <= maxBytes {
		return
	}

	target := int64(float64(maxBytes) * evictTargetRatio)

	var candidates []Entry
	if err := s.db.WithContext(ctx).
		Select("key", "size_bytes").
		Order("accessed_at ASC, key ASC").
		Find(&candidates).Error; err != nil {
		s.logger.Warn("eviction scan failed", zap.Error(err))
		return
	}

	var keys []string
	remaining := s.stats.SizeBytes
	for _, c := range candidates {
		if remaining <= target {
			break
		}
		keys = append(keys, c.Key)
		remaining -= c.SizeBytes
	}

	if len(keys) == 0 {
		return
	}

	if err := s.db.WithContext(ctx).Delete(&Entry{}, "key IN ?", keys).Error; err != nil {
		s.logger.Warn("eviction delete failed", zap.Error(err))
		return
	}

	s.stats.Deletes += int64(len(keys))
	s.stats.SizeBytes = s.totalSize()

	s.logger.Info("evicted cache entries",
		zap.Int("count", len(keys)),
		zap.Int64("size_bytes", s.stats.SizeBytes),
	)
}
