package common

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Recipe 食譜
// 同一型別同時表示完整與精簡版本：Indicator、OriginalIngredients、
// Instructions 為選填欄位，以是否填入區分能力。
type Recipe struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	URL                 string          `json:"url,omitempty"`
	Ingredients         []string        `json:"processed_ingredients"`
	IngredientsText     string          `json:"ingredients_text,omitempty"`
	InstructionsText    string          `json:"instructions_text,omitempty"`
	OriginalIngredients []string        `json:"original_ingredients,omitempty"`
	Instructions        []string        `json:"instructions,omitempty"`
	Indicator           *roaring.Bitmap `json:"-"`
}

// HasIndicator 是否帶有指示向量
func (r *Recipe) HasIndicator() bool {
	return r.Indicator != nil
}

// Text 串接的食材與步驟文字，供 TF-IDF 使用
func (r *Recipe) Text() string {
	return strings.TrimSpace(r.InstructionsText + " " + r.IngredientsText)
}

// String 標題加上處理後的食材列表
func (r *Recipe) String() string {
	return fmt.Sprintf("%s\n[%s]", r.Title, strings.Join(r.Ingredients, ", "))
}

// SubstitutionPair 無序的食材替代對
type SubstitutionPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewSubstitutionPair 建立替代對，兩端依字典序排列
func NewSubstitutionPair(a, b string) SubstitutionPair {
	if b < a {
		a, b = b, a
	}
	return SubstitutionPair{A: a, B: b}
}

// Key 無序鍵
func (p SubstitutionPair) Key() string {
	n := NewSubstitutionPair(p.A, p.B)
	return n.A + "\x00" + n.B
}

// Valid 兩端不可為空且不可相同
func (p SubstitutionPair) Valid() bool {
	return p.A != "" && p.B != "" && p.A != p.B
}

func (p SubstitutionPair) String() string {
	return fmt.Sprintf("%s <---> %s", p.A, p.B)
}

// PairSet 無序替代對集合
type PairSet map[string]SubstitutionPair

// NewPairSet 由列表建立集合
func NewPairSet(pairs []SubstitutionPair) PairSet {
	s := make(PairSet, len(pairs))
	for _, p := range pairs {
		s.Add(p)
	}
	return s
}

// Add 加入替代對
func (s PairSet) Add(p SubstitutionPair) {
	s[p.Key()] = NewSubstitutionPair(p.A, p.B)
}

// Has 是否包含替代對（不分順序）
func (s PairSet) Has(p SubstitutionPair) bool {
	_, ok := s[p.Key()]
	return ok
}

// Sorted 依字典序輸出
func (s PairSet) Sorted() []SubstitutionPair {
	out := make([]SubstitutionPair, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
