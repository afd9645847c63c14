package cooccur

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Accumulator 食材共現累加器
// 掃描相似度大於零的食譜對，將雙向的差異食材組合以相似度加權累加到 V×V 矩陣。
type Accumulator struct {
	vocab   *vocab.Vocabulary
	workers int
	pool    *Pool

	// scan 可在測試中替換以模擬任務失敗
	scan func(ctx context.Context, in *input, p Partition) (*mat.Dense, error)
}

type input struct {
	sim  mat.Symmetric
	sets []*roaring.Bitmap
	v    int
}

// NewAccumulator 創建累加器
func NewAccumulator(v *vocab.Vocabulary, workers int) *Accumulator {
	return &Accumulator{
		vocab:   v,
		workers: workers,
		pool:    NewPool(workers),
		scan:    scanPartition,
	}
}

// Status 工作池狀態
func (a *Accumulator) Status() *Status {
	return a.pool.Status()
}

// Accumulate 產生共現矩陣；結果與分段數量及邊界無關
func (a *Accumulator) Accumulate(ctx context.Context, recipes []common.Recipe, sim mat.Symmetric) (*mat.Dense, error) {
	n := len(recipes)
	if sim.SymmetricDim() != n {
		return nil, common.NewInvalidInputError(common.StageAccumulate,
			fmt.Sprintf("similarity matrix is %d×%d but corpus has %d recipes", sim.SymmetricDim(), sim.SymmetricDim(), n))
	}
	if n < 2 {
		return nil, common.NewInvalidInputError(common.StageAccumulate,
			fmt.Sprintf("accumulation needs at least 2 recipes, got %d", n))
	}
	if a.vocab == nil || a.vocab.Len() == 0 {
		return nil, common.NewInvalidInputError(common.StageAccumulate, "accumulation needs a non-empty vocabulary")
	}

	sets, err := a.ingredientSets(recipes)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	in := &input{sim: sim, sets: sets, v: a.vocab.Len()}
	parts := Partitions(n, a.workers)

	partials, err := a.pool.Run(ctx, parts, func(ctx context.Context, p Partition) (*mat.Dense, error) {
		return a.scan(ctx, in, p)
	})
	if err != nil {
		return nil, err
	}

	total := mat.NewDense(in.v, in.v, nil)
	for _, partial := range partials {
		if partial != nil {
			total.Add(total, partial)
		}
	}

	common.LogInfo("共現矩陣累加完成",
		zap.Int("recipes", n),
		zap.Int("vocabulary", in.v),
		zap.Int("partitions", len(parts)),
		zap.Duration("duration", time.Since(start)),
	)
	common.LogDebug("共現最高的食材對", zap.Strings("pairs", TopPairs(total, a.vocab, 10)))
	return total, nil
}

// ingredientSets 將每份食譜的處理後食材轉為詞彙 ID 點陣圖
func (a *Accumulator) ingredientSets(recipes []common.Recipe) ([]*roaring.Bitmap, error) {
	sets := make([]*roaring.Bitmap, len(recipes))
	for i := range recipes {
		bm := roaring.New()
		for _, ing := range recipes[i].Ingredients {
			id, err := a.vocab.MustID(common.StageAccumulate, ing)
			if err != nil {
				return nil, fmt.Errorf("recipe %d (%q): %w", i, recipes[i].ID, err)
			}
			bm.Add(uint32(id))
		}
		sets[i] = bm
	}
	return sets, nil
}

// scanPartition 掃描欄範圍 [p.Start, p.End) 內所有 i < j 的食譜對
func scanPartition(ctx context.Context, in *input, p Partition) (*mat.Dense, error) {
	acc := mat.NewDense(in.v, in.v, nil)
	for j := p.Start; j < p.End; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < j; i++ {
			s := in.sim.At(i, j)
			if s <= 0 {
				continue
			}
			onlyI := roaring.AndNot(in.sets[i], in.sets[j])
			onlyJ := roaring.AndNot(in.sets[j], in.sets[i])
			if onlyI.IsEmpty() || onlyJ.IsEmpty() {
				continue
			}
			for _, a := range onlyI.ToArray() {
				for _, b := range onlyJ.ToArray() {
					acc.Set(int(a), int(b), acc.At(int(a), int(b))+s)
					acc.Set(int(b), int(a), acc.At(int(b), int(a))+s)
				}
			}
		}
	}
	return acc, nil
}

type scoredPair struct {
	a, b  int
	score float64
}

// TopPairs 上三角中分數最高的 k 個食材對（格式化字串）
func TopPairs(m mat.Matrix, v *vocab.Vocabulary, k int) []string {
	r, c := m.Dims()
	var pairs []scoredPair
	for a := 0; a < r; a++ {
		for b := a + 1; b < c; b++ {
			if s := m.At(a, b); s > 0 {
				pairs = append(pairs, scoredPair{a: a, b: b, score: s})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})
	if len(pairs) > k {
		pairs = pairs[:k]
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%s <---> %s (%.4g)", v.Term(p.a), v.Term(p.b), p.score))
	}
	return out
}
