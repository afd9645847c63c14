package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"
)

const (
	fieldTitle       = "title"
	fieldIngredients = "ingredients"
	fieldText        = "text"
	fieldSource      = "source"

	indexBatchSize = 500
	samplePageSize = MaxQuerySize
)

// indexedRecipe Bleve 中的文件結構；source 保存完整食譜 JSON 供取回
type indexedRecipe struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Text        string   `json:"text"`
	Source      string   `json:"source"`
}

// Index 本地食譜搜尋索引
type Index struct {
	index bleve.Index
	vocab *vocab.Vocabulary
}

// BuildIndexMapping 食譜索引 mapping
func BuildIndexMapping() mapping.IndexMapping {
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name

	ingredientField := bleve.NewTextFieldMapping()
	ingredientField.Analyzer = keyword.Name

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Index = false
	sourceField.Store = true
	sourceField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldTitle, titleField)
	doc.AddFieldMappingsAt(fieldIngredients, ingredientField)
	doc.AddFieldMappingsAt(fieldText, textField)
	doc.AddFieldMappingsAt(fieldSource, sourceField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// OpenIndex 開啟既有索引，不存在時建立新索引
func OpenIndex(path string, v *vocab.Vocabulary) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, BuildIndexMapping())
	}
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "open index "+path, err)
	}
	return &Index{index: idx, vocab: v}, nil
}

// NewMemIndex 建立記憶體索引
func NewMemIndex(v *vocab.Vocabulary) (*Index, error) {
	idx, err := bleve.NewMemOnly(BuildIndexMapping())
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "create memory index", err)
	}
	return &Index{index: idx, vocab: v}, nil
}

// Put 以批次寫入食譜；相同 ID 會被覆寫
func (ix *Index) Put(ctx context.Context, recipes []common.Recipe) error {
	batch := ix.index.NewBatch()
	for i := range recipes {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := toIndexed(&recipes[i])
		if err != nil {
			return err
		}
		if err := batch.Index(recipes[i].ID, doc); err != nil {
			return common.NewIOError(common.StageCorpus, fmt.Sprintf("index recipe %q", recipes[i].ID), err)
		}
		if batch.Size() >= indexBatchSize {
			if err := ix.index.Batch(batch); err != nil {
				return common.NewIOError(common.StageCorpus, "flush batch", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := ix.index.Batch(batch); err != nil {
			return common.NewIOError(common.StageCorpus, "flush batch", err)
		}
	}
	common.LogDebug("食譜已寫入索引", zap.Int("count", len(recipes)))
	return nil
}

func toIndexed(r *common.Recipe) (*indexedRecipe, error) {
	src, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal recipe %q: %w", r.ID, err)
	}
	return &indexedRecipe{
		Title:       r.Title,
		Ingredients: r.Ingredients,
		Text:        r.Text(),
		Source:      string(src),
	}, nil
}

// Count 索引中的文件數
func (ix *Index) Count() (uint64, error) {
	return ix.index.DocCount()
}

// Recipes 執行查詢並取回食譜；帶有詞彙表時會重建指示向量
// Random 查詢會掃描整個索引抽樣，不限於前 MaxQuerySize 筆。
func (ix *Index) Recipes(ctx context.Context, q Query, size int) ([]common.Recipe, error) {
	if size <= 0 || size > MaxQuerySize {
		size = MaxQuerySize
	}

	var (
		recipes []common.Recipe
		total   uint64
		err     error
	)
	if q.Random {
		var sample []string
		sample, total, err = ix.sampleIDs(ctx, size, q.Seed)
		if err != nil {
			return nil, err
		}
		if len(sample) > 0 {
			recipes, _, err = ix.search(ctx, bleve.NewDocIDQuery(sample), len(sample), []string{"_id"})
		}
		shuffleRecipes(recipes, q.Seed)
	} else {
		recipes, total, err = ix.search(ctx, buildBleveQuery(q), size, []string{"-_score", "_id"})
	}
	if err != nil {
		return nil, err
	}

	common.LogInfo("索引查詢完成",
		zap.String("query", q.Name),
		zap.Uint64("total", total),
		zap.Int("returned", len(recipes)),
	)
	return recipes, nil
}

func (ix *Index) search(ctx context.Context, q query.Query, size int, sort []string) ([]common.Recipe, uint64, error) {
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{fieldSource}
	req.SortBy(sort)

	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, common.NewIOError(common.StageCorpus, "search index", err)
	}

	recipes := make([]common.Recipe, 0, len(res.Hits))
	for _, hit := range res.Hits {
		src, ok := hit.Fields[fieldSource].(string)
		if !ok {
			return nil, 0, common.NewIOError(common.StageCorpus, fmt.Sprintf("recipe %q has no stored source", hit.ID), nil)
		}
		var rec common.Recipe
		if err := json.Unmarshal([]byte(src), &rec); err != nil {
			return nil, 0, common.NewIOError(common.StageCorpus, fmt.Sprintf("decode recipe %q", hit.ID), err)
		}
		if ix.vocab != nil {
			rec.Indicator = BuildIndicator(ix.vocab, rec.Ingredients)
		}
		recipes = append(recipes, rec)
	}
	return recipes, res.Total, nil
}

// sampleIDs 依 _id 分頁走訪全部文件，以蓄水池抽樣取 size 個 ID
func (ix *Index) sampleIDs(ctx context.Context, size int, seed int64) ([]string, uint64, error) {
	rng := rand.New(rand.NewPCG(uint64(seed), 1))
	sample := make([]string, 0, size)
	var seen uint64
	var after []string
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), samplePageSize, 0, false)
		req.SortBy([]string{"_id"})
		if after != nil {
			req.SetSearchAfter(after)
		}
		res, err := ix.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, 0, common.NewIOError(common.StageCorpus, "scan index", err)
		}
		for _, hit := range res.Hits {
			if len(sample) < size {
				sample = append(sample, hit.ID)
			} else if j := rng.Uint64N(seen + 1); j < uint64(size) {
				sample[j] = hit.ID
			}
			seen++
		}
		if len(res.Hits) < samplePageSize {
			break
		}
		after = []string{res.Hits[len(res.Hits)-1].ID}
	}
	return sample, seen, nil
}

func buildBleveQuery(q Query) query.Query {
	if q.IsZero() {
		return bleve.NewMatchAllQuery()
	}
	if q.Text != "" {
		return bleve.NewQueryStringQuery(q.Text)
	}

	var clauses []query.Query
	for _, ing := range q.IngredientsAny {
		tq := bleve.NewTermQuery(ing)
		tq.SetField(fieldIngredients)
		clauses = append(clauses, tq)
	}
	for _, word := range q.TitleAny {
		tq := bleve.NewTermQuery(word)
		tq.SetField(fieldTitle)
		clauses = append(clauses, tq)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// Close 關閉索引
func (ix *Index) Close() error {
	return ix.index.Close()
}
