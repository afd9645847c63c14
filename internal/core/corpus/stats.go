package corpus

import (
	"sort"

	"recipe-substitutes/internal/pkg/common"
)

// IngredientCount 食材與出現次數
type IngredientCount struct {
	Ingredient string `json:"ingredient"`
	Count      int    `json:"count"`
}

// IngredientCounts 統計每個處理後食材出現在幾份食譜中
func IngredientCounts(recipes []common.Recipe) map[string]int {
	counts := make(map[string]int)
	for _, r := range recipes {
		for _, ing := range r.Ingredients {
			counts[ing]++
		}
	}
	return counts
}

// CommonIngredients 最常見的 n 個食材，次數相同時依字典序
func CommonIngredients(recipes []common.Recipe, n int) []IngredientCount {
	return topCounts(IngredientCounts(recipes), n)
}

func topCounts(counts map[string]int, n int) []IngredientCount {
	out := make([]IngredientCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, IngredientCount{Ingredient: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ingredient < out[j].Ingredient
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
