package batch

// Stats 批量调度统计
type Stats struct {
	TotalRequests       int64           `json:"total_requests"`
	TotalBatches        int64           `json:"total_batches"`
	TotalItemsProcessed int64           `json:"total_items_processed"`
	TotalCacheHits      int64           `json:"total_cache_hits"`
	TotalWaitTimeMS     float64         `json:"total_wait_time_ms"`
	BatchesBySize       map[int]int64   `json:"batches_by_size"`
}

// AvgBatchSize 返回平均批量大小
func (s Stats) AvgBatchSize() float64 {
	if s.TotalBatches == 0 {
		return 0
	}
	return float64(s.TotalItemsProcessed) / float64(s.TotalBatches)
}

// CacheHitRate 返回请求级缓存命中率百分比
func (s Stats) CacheHitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalCacheHits) / float64(s.TotalRequests) * 100
}

// DedupStats 去重统计
type DedupStats struct {
	TotalItems  int64 `json:"total_items"`
	UniqueItems int64 `json:"unique_items"`
	Savings     int64 `json:"dedup_savings"`
}

// SavingsRate 返回去重节省率百分比
func (s DedupStats) SavingsRate() float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.Savings) / float64(s.TotalItems) * 100
}
