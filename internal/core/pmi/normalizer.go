package pmi

import (
	"fmt"
	"time"

	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Normalize 將共現矩陣轉為類 PMI 關聯矩陣：
// out[a][b] = in[a][b] / (colsum(a) * rowsum(b))。
// 分母為零時以 1 代替，因此沒有累積證據的食材整列整欄皆為 0。
func Normalize(cooc mat.Matrix) (*mat.Dense, error) {
	r, c := cooc.Dims()
	if r != c || r == 0 {
		return nil, common.NewInvalidInputError(common.StageNormalize,
			fmt.Sprintf("co-occurrence matrix must be square and non-empty, got %d×%d", r, c))
	}

	start := time.Now()
	colSums := make([]float64, c)
	rowSums := make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := cooc.At(i, j)
			rowSums[i] += v
			colSums[j] += v
		}
	}

	// 分母為 colsum 與 rowsum 的外積
	denom := mat.NewDense(r, c, nil)
	denom.Outer(1, mat.NewVecDense(c, colSums), mat.NewVecDense(r, rowSums))

	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, d float64) float64 {
		if d == 0 {
			d = 1
		}
		return cooc.At(i, j) / d
	}, denom)

	common.LogInfo("關聯矩陣正規化完成",
		zap.Int("vocabulary", r),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
