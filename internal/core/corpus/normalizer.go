package corpus

import (
	"strings"

	"recipe-substitutes/internal/core/vocab"

	"github.com/RoaringBitmap/roaring/v2"
)

// Normalizer 將原始食材文字對應到標準詞彙
type Normalizer struct {
	vocab *vocab.Vocabulary
	terms []string
}

// NewNormalizer 創建新的正規化器；比對順序即詞彙表順序（多字食材在前）
func NewNormalizer(v *vocab.Vocabulary) *Normalizer {
	return &Normalizer{vocab: v, terms: v.Terms()}
}

// Normalize 將原始食材行比對到詞彙表。
// 每行取第一個為其子字串的詞彙；行內含 teaspoon 時 tea 不算匹配並停止比對該行。
// 未匹配的行以出現次數記錄在 missing 中返回。
func (n *Normalizer) Normalize(lines []string) (processed []string, missing map[string]int) {
	missing = make(map[string]int)
	seen := make(map[string]struct{})

	for _, raw := range lines {
		line := strings.ToLower(strings.TrimSpace(raw))
		if line == "" {
			continue
		}
		matched := false
		for _, term := range n.terms {
			if !strings.Contains(line, term) {
				continue
			}
			if term == "tea" && strings.Contains(line, "teaspoon") {
				break
			}
			matched = true
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				processed = append(processed, term)
			}
			break
		}
		if !matched {
			missing[line]++
		}
	}
	return processed, missing
}

// Indicator 建立處理後食材集合的指示向量（詞彙 ID 的點陣圖）。
// 不在詞彙表中的食材會被忽略。
func (n *Normalizer) Indicator(processed []string) *roaring.Bitmap {
	return BuildIndicator(n.vocab, processed)
}

// BuildIndicator 依詞彙表建立指示向量
func BuildIndicator(v *vocab.Vocabulary, processed []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, term := range processed {
		if id, ok := v.ID(term); ok {
			bm.Add(uint32(id))
		}
	}
	return bm
}

// MergeMissing 合併未匹配統計
func MergeMissing(dst, src map[string]int) map[string]int {
	if dst == nil {
		dst = make(map[string]int, len(src))
	}
	for k, c := range src {
		dst[k] += c
	}
	return dst
}
