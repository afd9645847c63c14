package ranking

import (
	"fmt"
	"sort"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"gonum.org/v1/gonum/mat"
)

// Candidate 替代候選
type Candidate struct {
	Ingredient string  `json:"ingredient"`
	ID         int     `json:"id"`
	Score      float64 `json:"score"`
}

// Ranker 替代食材排名器
// 每列依分數遞減排序，同分時 ID 小者在前；食材本身不列入排序。
type Ranker struct {
	assoc mat.Matrix
	vocab *vocab.Vocabulary
	cache *RankCache
}

// NewRanker 創建排名器；cache 可為 nil
func NewRanker(assoc mat.Matrix, v *vocab.Vocabulary, cache *RankCache) (*Ranker, error) {
	r, c := assoc.Dims()
	if r != v.Len() || c != v.Len() {
		return nil, common.NewInvalidInputError(common.StageRanking,
			fmt.Sprintf("association matrix is %d×%d but vocabulary has %d entries", r, c, v.Len()))
	}
	return &Ranker{assoc: assoc, vocab: v, cache: cache}, nil
}

// Vocabulary 排名使用的詞彙表
func (r *Ranker) Vocabulary() *vocab.Vocabulary {
	return r.vocab
}

// order 食材 a 的候選 ID 完整排序
func (r *Ranker) order(a int) []int {
	if r.cache != nil {
		if order, ok := r.cache.Get(a); ok {
			return order
		}
	}

	_, n := r.assoc.Dims()
	order := make([]int, 0, n-1)
	for b := 0; b < n; b++ {
		if b != a {
			order = append(order, b)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return r.assoc.At(a, order[i]) > r.assoc.At(a, order[j])
	})

	if r.cache != nil {
		r.cache.Add(a, order)
	}
	return order
}

// TopN 食材 a 的前 n 個替代候選
func (r *Ranker) TopN(a string, n int) ([]Candidate, error) {
	id, err := r.vocab.MustID(common.StageRanking, a)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, common.NewInvalidInputError(common.StageRanking, fmt.Sprintf("invalid top-n %d", n))
	}

	order := r.order(id)
	if n > len(order) {
		n = len(order)
	}
	out := make([]Candidate, n)
	for i, b := range order[:n] {
		out[i] = Candidate{Ingredient: r.vocab.Term(b), ID: b, Score: r.assoc.At(id, b)}
	}
	return out, nil
}

// Rank b 作為 a 的替代品時的名次（從 1 起算）
func (r *Ranker) Rank(a, b string) (int, error) {
	idA, err := r.vocab.MustID(common.StageRanking, a)
	if err != nil {
		return 0, err
	}
	idB, err := r.vocab.MustID(common.StageRanking, b)
	if err != nil {
		return 0, err
	}
	if idA == idB {
		return 0, common.NewInvalidInputError(common.StageRanking,
			fmt.Sprintf("self-substitution %q is not ranked", a))
	}

	for pos, id := range r.order(idA) {
		if id == idB {
			return pos + 1, nil
		}
	}
	return 0, common.NewLookupError(common.StageRanking, b)
}
