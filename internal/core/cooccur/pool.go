package cooccur

import (
	"context"
	"fmt"
	"sync/atomic"

	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Task 單一分段的掃描函式，返回該分段私有的部分累加矩陣
type Task func(ctx context.Context, p Partition) (*mat.Dense, error)

// Status 工作池狀態
type Status struct {
	Partitions     int `json:"partitions"`
	ProcessedCount int `json:"processed_count"`
	Workers        int `json:"workers"`
}

// Pool 固定大小的工作池；所有分段完成後才返回（先 join 再 reduce）
type Pool struct {
	workers    int
	partitions int64
	processed  int64
}

// NewPool 創建工作池
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run 以工作池執行所有分段；任一分段失敗即中止整個計算
func (p *Pool) Run(ctx context.Context, parts []Partition, task Task) ([]*mat.Dense, error) {
	atomic.StoreInt64(&p.partitions, int64(len(parts)))
	atomic.StoreInt64(&p.processed, 0)

	queue := make(chan Partition, len(parts))
	for _, part := range parts {
		queue <- part
	}
	close(queue)

	results := make([]*mat.Dense, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < min(p.workers, len(parts)); w++ {
		g.Go(func() error {
			for part := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				partial, err := runTask(gctx, task, part)
				if err != nil {
					return err
				}
				results[part.Index] = partial
				atomic.AddInt64(&p.processed, 1)
				common.LogDebug("分段累加完成",
					zap.Int("partition", part.Index),
					zap.Int("start", part.Start),
					zap.Int("end", part.End),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runTask(ctx context.Context, task Task, part Partition) (partial *mat.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			partial = nil
			err = common.NewWorkerFailure(common.StageAccumulate, part.Index, fmt.Errorf("panic: %v", r))
		}
	}()

	partial, err = task(ctx, part)
	if err != nil && !common.IsWorkerFailure(err) {
		err = common.NewWorkerFailure(common.StageAccumulate, part.Index, err)
	}
	return partial, err
}

// Status 獲取工作池狀態
func (p *Pool) Status() *Status {
	return &Status{
		Partitions:     int(atomic.LoadInt64(&p.partitions)),
		ProcessedCount: int(atomic.LoadInt64(&p.processed)),
		Workers:        p.workers,
	}
}
