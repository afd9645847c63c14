package corpus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
)

// rawRecipe Recipe1M 檔案中的一筆食譜
type rawRecipe struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Ingredients  []rawText `json:"ingredients"`
	Instructions []rawText `json:"instructions"`
}

type rawText struct {
	Text string `json:"text"`
}

// LoadOptions 讀取選項
type LoadOptions struct {
	// Reduced 為 true 時只保留精簡欄位（不含指示向量、原始食材與步驟列表）
	Reduced bool
}

// LoadResult 讀取結果
type LoadResult struct {
	Recipes []common.Recipe
	Missing map[string]int
}

// ReadRecipe1M 解析 Recipe1M 格式的 JSON（可為被切割過的片段）並正規化食材
func ReadRecipe1M(r io.Reader, v *vocab.Vocabulary, opts LoadOptions) (*LoadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "failed to read recipes", err)
	}
	text, err := common.Latin1ToUTF8(data)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "failed to decode recipes", err)
	}

	var raws []rawRecipe
	if err := common.ParseJSONBytes([]byte(common.RepairJSONArray(text)), &raws); err != nil {
		return nil, common.NewIOError(common.StageCorpus, "failed to parse recipes", err)
	}

	normalizer := NewNormalizer(v)
	result := &LoadResult{
		Recipes: make([]common.Recipe, 0, len(raws)),
		Missing: make(map[string]int),
	}
	for _, raw := range raws {
		rec, missing := buildRecipe(raw, normalizer, opts)
		result.Recipes = append(result.Recipes, rec)
		result.Missing = MergeMissing(result.Missing, missing)
	}
	return result, nil
}

func buildRecipe(raw rawRecipe, n *Normalizer, opts LoadOptions) (common.Recipe, map[string]int) {
	ingredients := lowerTexts(raw.Ingredients)
	instructions := lowerTexts(raw.Instructions)

	id := raw.ID
	if id == "" {
		id = raw.Title
	}

	processed, missing := n.Normalize(ingredients)
	rec := common.Recipe{
		ID:               id,
		Title:            raw.Title,
		Ingredients:      processed,
		IngredientsText:  strings.Join(ingredients, " "),
		InstructionsText: strings.Join(instructions, " "),
	}
	if !opts.Reduced {
		rec.URL = raw.URL
		rec.OriginalIngredients = ingredients
		rec.Instructions = instructions
		rec.Indicator = n.Indicator(processed)
	}
	return rec, missing
}

func lowerTexts(items []rawText) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, strings.ToLower(it.Text))
	}
	return out
}

// LoadFile 讀取單一 Recipe1M 檔案
func LoadFile(path string, v *vocab.Vocabulary, opts LoadOptions) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	res, err := ReadRecipe1M(f, v, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// LoadDir 讀取目錄下所有切割後的 Recipe1M 片段（依檔名排序）
func LoadDir(dir string, v *vocab.Vocabulary, opts LoadOptions) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, fmt.Sprintf("read dir %s", dir), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	total := &LoadResult{Missing: make(map[string]int)}
	for i, name := range names {
		res, err := LoadFile(filepath.Join(dir, name), v, opts)
		if err != nil {
			return nil, err
		}
		total.Recipes = append(total.Recipes, res.Recipes...)
		total.Missing = MergeMissing(total.Missing, res.Missing)
		common.LogInfo("食譜片段已讀取",
			zap.String("file", name),
			zap.Int("progress", i+1),
			zap.Int("total", len(names)),
		)
	}
	return total, nil
}

// AttachIndicators 為缺少指示向量的食譜補上指示向量
func AttachIndicators(recipes []common.Recipe, v *vocab.Vocabulary) {
	for i := range recipes {
		if recipes[i].Indicator == nil {
			recipes[i].Indicator = BuildIndicator(v, recipes[i].Ingredients)
		}
	}
}

// TopMissing 出現最多次的未匹配食材行
func TopMissing(missing map[string]int, n int) []IngredientCount {
	return topCounts(missing, n)
}
