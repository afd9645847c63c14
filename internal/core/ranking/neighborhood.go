package ranking

import (
	"recipe-substitutes/internal/core/corpus"
	"recipe-substitutes/internal/pkg/common"
)

// Neighborhood 一個主要食材與其替代候選
type Neighborhood struct {
	Ingredient string      `json:"ingredient"`
	Count      int         `json:"count,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// Neighborhoods 對指定食材列表各取前 n 個候選
func (r *Ranker) Neighborhoods(terms []string, n int) ([]Neighborhood, error) {
	out := make([]Neighborhood, 0, len(terms))
	for _, term := range terms {
		cands, err := r.TopN(term, n)
		if err != nil {
			return nil, err
		}
		out = append(out, Neighborhood{Ingredient: term, Candidates: cands})
	}
	return out, nil
}

// CommonNeighborhoods 語料中最常見的 k 個食材及其前 n 個候選
func (r *Ranker) CommonNeighborhoods(recipes []common.Recipe, k, n int) ([]Neighborhood, error) {
	counts := corpus.CommonIngredients(recipes, k)
	out := make([]Neighborhood, 0, len(counts))
	for _, c := range counts {
		cands, err := r.TopN(c.Ingredient, n)
		if err != nil {
			return nil, err
		}
		out = append(out, Neighborhood{Ingredient: c.Ingredient, Count: c.Count, Candidates: cands})
	}
	return out, nil
}
