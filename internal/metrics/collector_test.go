package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.cacheMisses)
	assert.NotNil(t, collector.batchSize)
	assert.NotNil(t, collector.dedupSavings)
	assert.NotNil(t, collector.requestDuration)
}

func TestCollector_RecordCacheHit(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordCacheHit("l1")
	collector.RecordCacheHit("l1")
	collector.RecordCacheHit("l2")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("l1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("l2")))
}

func TestCollector_RecordCacheMiss(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordCacheMiss()
	collector.RecordCacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheMisses))
}

func TestCollector_RecordBatch(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordBatch(4)
	collector.RecordBatch(16)

	count := testutil.CollectAndCount(collector.batchSize)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordDedupSavings(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordDedupSavings(3)
	collector.RecordDedupSavings(0)
	collector.RecordDedupSavings(2)

	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dedupSavings))
}

func TestCollector_RecordRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordRequest("completion", 100*time.Millisecond)
	collector.RecordRequest("embedding", 50*time.Millisecond)

	count := testutil.CollectAndCount(collector.requestDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	// 未接入指标时所有记录方法必须安全 no-op
	var collector *Collector

	collector.RecordCacheHit("l1")
	collector.RecordCacheMiss()
	collector.RecordBatch(4)
	collector.RecordDedupSavings(1)
	collector.RecordRequest("completion", time.Millisecond)
}
