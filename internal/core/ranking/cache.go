package ranking

import (
	"sync/atomic"

	"recipe-substitutes/internal/pkg/common"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// RankCache 每個食材的完整排序結果快取（LRU）
type RankCache struct {
	cache     *lru.Cache[int, []int]
	size      int
	hits      int64
	misses    int64
	evictions int64
}

// NewRankCache 創建排序快取
func NewRankCache(size int) (*RankCache, error) {
	rc := &RankCache{size: size}
	c, err := lru.NewWithEvict[int, []int](size, func(int, []int) {
		atomic.AddInt64(&rc.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	rc.cache = c
	return rc, nil
}

// Get 取得食材 ID 的排序
func (rc *RankCache) Get(id int) ([]int, bool) {
	order, ok := rc.cache.Get(id)
	if ok {
		atomic.AddInt64(&rc.hits, 1)
	} else {
		atomic.AddInt64(&rc.misses, 1)
	}
	return order, ok
}

// Add 儲存排序
func (rc *RankCache) Add(id int, order []int) {
	rc.cache.Add(id, order)
}

// GetStats 獲取快取統計信息
func (rc *RankCache) GetStats() map[string]interface{} {
	hits := atomic.LoadInt64(&rc.hits)
	misses := atomic.LoadInt64(&rc.misses)
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return map[string]interface{}{
		"size":      rc.cache.Len(),
		"max_size":  rc.size,
		"hits":      hits,
		"misses":    misses,
		"evictions": atomic.LoadInt64(&rc.evictions),
		"hit_ratio": ratio,
	}
}

// Close 清空快取
func (rc *RankCache) Close() {
	rc.cache.Purge()
	common.LogDebug("排序快取已關閉",
		zap.Int64("命中次數", atomic.LoadInt64(&rc.hits)),
		zap.Int64("未命中次數", atomic.LoadInt64(&rc.misses)),
	)
}
