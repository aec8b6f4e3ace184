package cache

// Stats 缓存性能统计
// 计数器单调递增，SizeBytes 为每次变更后重新计算的当前值。
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Writes    int64 `json:"writes"`
	Deletes   int64 `json:"deletes"`
	SizeBytes int64 `json:"size_bytes"`
}

// HitRate 返回命中率百分比，无访问时为 0。
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// MultiLevelStats 多级缓存合并统计
type MultiLevelStats struct {
	L1Hits     int64   `json:"l1_hits"`
	L2Hits     int64   `json:"l2_hits"`
	TotalHits  int64   `json:"total_hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	L1Size     int     `json:"l1_size"`
	L1Capacity int     `json:"l1_capacity"`
	L2         Stats   `json:"l2_stats"`
}
