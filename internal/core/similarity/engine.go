package similarity

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Method 食譜相似度計算方式
type Method string

const (
	MethodIntersection Method = "intersection" // 共同食材數
	MethodRatio        Method = "ratio"        // 共同食材數 / 較大的食材數
	MethodCosine       Method = "cosine"       // 指示向量餘弦
	MethodTFIDF        Method = "tfidf"        // 文字 TF-IDF 餘弦
)

// Methods 所有支援的方式
var Methods = []Method{MethodIntersection, MethodRatio, MethodCosine, MethodTFIDF}

// ParseMethod 解析方式名稱
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", common.NewInvalidInputError(common.StageSimilarity, fmt.Sprintf("unknown similarity method %q", s))
}

// UsesIndicator 是否需要指示向量
func (m Method) UsesIndicator() bool {
	return m != MethodTFIDF
}

// Pair 一對食譜及其相似度
type Pair struct {
	I, J  int
	Score float64
}

// Result 相似度矩陣與最相似的一對
type Result struct {
	Matrix  *mat.SymDense
	TopPair Pair
}

// Engine 食譜相似度引擎
type Engine struct {
	method Method
}

// NewEngine 創建相似度引擎
func NewEngine(method Method) *Engine {
	return &Engine{method: method}
}

// Method 目前使用的方式
func (e *Engine) Method() Method {
	return e.method
}

// Compute 計算 N×N 對稱、對角為零的相似度矩陣
func (e *Engine) Compute(recipes []common.Recipe) (*Result, error) {
	n := len(recipes)
	if n < 2 {
		return nil, common.NewInvalidInputError(common.StageSimilarity,
			fmt.Sprintf("similarity needs at least 2 recipes, got %d", n))
	}

	start := time.Now()
	var score func(i, j int) float64

	if e.method.UsesIndicator() {
		for i := range recipes {
			if !recipes[i].HasIndicator() {
				return nil, common.NewInvalidInputError(common.StageSimilarity,
					fmt.Sprintf("recipe %d (%q) has no indicator vector", i, recipes[i].ID))
			}
		}
		score = e.indicatorScore(recipes)
	} else {
		docs := make([]string, n)
		for i := range recipes {
			docs[i] = recipes[i].Text()
		}
		vz, err := NewVectorizer()
		if err != nil {
			return nil, fmt.Errorf("build text analyzer: %w", err)
		}
		vectors := vz.FitTransform(docs)
		common.LogDebug("TF-IDF 特徵表", zap.Int("features", vz.NumFeatures()))
		score = func(i, j int) float64 {
			return vectors[i].dot(vectors[j])
		}
	}
	if score == nil {
		return nil, common.NewInvalidInputError(common.StageSimilarity, fmt.Sprintf("unknown similarity method %q", e.method))
	}

	m := mat.NewSymDense(n, nil)
	top := Pair{I: 0, J: 1, Score: math.Inf(-1)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := score(i, j)
			m.SetSym(i, j, s)
			if s > top.Score {
				top = Pair{I: i, J: j, Score: s}
			}
		}
	}

	common.LogInfo("相似度矩陣計算完成",
		zap.String("method", string(e.method)),
		zap.Int("recipes", n),
		zap.Duration("duration", time.Since(start)),
	)
	common.LogDebug("最相似的食譜",
		zap.String("a", recipes[top.I].Title),
		zap.String("b", recipes[top.J].Title),
		zap.Float64("score", top.Score),
	)
	return &Result{Matrix: m, TopPair: top}, nil
}

func (e *Engine) indicatorScore(recipes []common.Recipe) func(i, j int) float64 {
	cards := make([]float64, len(recipes))
	for i := range recipes {
		cards[i] = float64(recipes[i].Indicator.GetCardinality())
	}
	inter := func(i, j int) float64 {
		return float64(recipes[i].Indicator.AndCardinality(recipes[j].Indicator))
	}

	switch e.method {
	case MethodIntersection:
		return inter
	case MethodRatio:
		return func(i, j int) float64 {
			denom := math.Max(cards[i], cards[j])
			if denom == 0 {
				return 0
			}
			return inter(i, j) / denom
		}
	case MethodCosine:
		return func(i, j int) float64 {
			denom := math.Sqrt(cards[i] * cards[j])
			if denom == 0 {
				return 0
			}
			return inter(i, j) / denom
		}
	}
	return nil
}

// TopPairs 上三角中相似度最高的 k 對；同分時依 (i, j) 順序
func TopPairs(m mat.Symmetric, k int) []Pair {
	n := m.SymmetricDim()
	var pairs []Pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if s := m.At(i, j); s > 0 {
				pairs = append(pairs, Pair{I: i, J: j, Score: s})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Score > pairs[b].Score
	})
	if k >= 0 && len(pairs) > k {
		pairs = pairs[:k]
	}
	return pairs
}
