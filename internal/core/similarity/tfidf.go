package similarity

import (
	"math"
	"sort"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/shingle"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
	"gonum.org/v1/gonum/floats"
)

// minTokenLength 短於兩個字元的詞不列入特徵
const minTokenLength = 2

// sparseVector 以特徵 ID 遞增排列的稀疏向量
type sparseVector struct {
	idx []int
	val []float64
}

func (v sparseVector) dot(o sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.idx) && j < len(o.idx) {
		switch {
		case v.idx[i] == o.idx[j]:
			sum += v.val[i] * o.val[j]
			i++
			j++
		case v.idx[i] < o.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Vectorizer TF-IDF 向量化：1 至 3 個詞的 n-gram、去除英文停用詞、
// 平滑 IDF ln((1+n)/(1+df))+1、L2 正規化
type Vectorizer struct {
	MinN, MaxN int
	analyzer   *analysis.DefaultAnalyzer
	features   map[string]int
}

// NewVectorizer 建立 1-3 gram 向量化器
func NewVectorizer() (*Vectorizer, error) {
	a, err := newTextAnalyzer(registry.NewCache())
	if err != nil {
		return nil, err
	}
	return &Vectorizer{MinN: 1, MaxN: 3, analyzer: a}, nil
}

// newTextAnalyzer unicode 分詞 -> to_lower -> 長度 -> stop_en -> 位置重排
func newTextAnalyzer(cache *registry.Cache) (*analysis.DefaultAnalyzer, error) {
	tokenizer, err := cache.TokenizerNamed(unicode.Name)
	if err != nil {
		return nil, err
	}
	lower, err := cache.TokenFilterNamed(lowercase.Name)
	if err != nil {
		return nil, err
	}
	stop, err := cache.TokenFilterNamed(en.StopName)
	if err != nil {
		return nil, err
	}
	return &analysis.DefaultAnalyzer{
		Tokenizer: tokenizer,
		TokenFilters: []analysis.TokenFilter{
			lower,
			length.NewLengthFilter(minTokenLength, 0),
			stop,
			repositionFilter{},
		},
	}, nil
}

// repositionFilter 停用詞移除後重新編排位置，n-gram 跨過被移除的詞
type repositionFilter struct{}

func (repositionFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for i, tok := range input {
		tok.Position = i + 1
	}
	return input
}

// Tokenize 分詞並移除停用詞
func (vz *Vectorizer) Tokenize(text string) []string {
	return terms(vz.analyzer.Analyze([]byte(text)))
}

// ngrams MinN 至 MaxN 個詞的特徵
func (vz *Vectorizer) ngrams(text string) []string {
	tokens := vz.analyzer.Analyze([]byte(text))
	lo := max(vz.MinN, 2)
	if vz.MaxN < lo {
		if vz.MinN <= 1 {
			return terms(tokens)
		}
		return nil
	}
	return terms(shingle.NewShingleFilter(lo, vz.MaxN, vz.MinN <= 1, " ", "").Filter(tokens))
}

func terms(tokens analysis.TokenStream) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, string(tok.Term))
	}
	return out
}

// FitTransform 建立特徵表並回傳每份文件的 L2 正規化 TF-IDF 向量
func (vz *Vectorizer) FitTransform(docs []string) []sparseVector {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for d, doc := range docs {
		c := make(map[string]int)
		for _, g := range vz.ngrams(doc) {
			c[g]++
		}
		for g := range c {
			df[g]++
		}
		counts[d] = c
	}

	names := make([]string, 0, len(df))
	for g := range df {
		names = append(names, g)
	}
	sort.Strings(names)
	vz.features = make(map[string]int, len(names))
	for i, g := range names {
		vz.features[g] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(names))
	for i, g := range names {
		idf[i] = math.Log((1+n)/(1+float64(df[g]))) + 1
	}

	vectors := make([]sparseVector, len(docs))
	for d, c := range counts {
		v := sparseVector{idx: make([]int, 0, len(c)), val: make([]float64, 0, len(c))}
		for g := range c {
			v.idx = append(v.idx, vz.features[g])
		}
		sort.Ints(v.idx)
		for _, id := range v.idx {
			v.val = append(v.val, float64(c[names[id]])*idf[id])
		}
		if norm := floats.Norm(v.val, 2); norm > 0 {
			floats.Scale(1/norm, v.val)
		}
		vectors[d] = v
	}
	return vectors
}

// NumFeatures 特徵數
func (vz *Vectorizer) NumFeatures() int {
	return len(vz.features)
}
