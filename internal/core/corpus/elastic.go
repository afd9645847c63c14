package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ElasticSource Elasticsearch 語料來源
type ElasticSource struct {
	client *resty.Client
	index  string
	vocab  *vocab.Vocabulary
}

// esRecipe Elasticsearch 中的食譜文件
type esRecipe struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	URL                  string   `json:"url,omitempty"`
	OriginalIngredients  []string `json:"original_ing_list,omitempty"`
	Instructions         []string `json:"instruction_list,omitempty"`
	InstructionsText     string   `json:"instructions_text"`
	IngredientsText      string   `json:"ingredients_text"`
	ProcessedIngredients []string `json:"proccessed_ing_list"`
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string   `json:"_id"`
			Source esRecipe `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticSource 創建 Elasticsearch 語料來源
func NewElasticSource(baseURL, index string, timeout time.Duration, v *vocab.Vocabulary) *ElasticSource {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &ElasticSource{
		client: client,
		index:  index,
		vocab:  v,
	}
}

// Recipes 以查詢條件取回食譜，依 Elasticsearch 分數排序
func (s *ElasticSource) Recipes(ctx context.Context, q Query, size int) ([]common.Recipe, error) {
	if size <= 0 || size > MaxQuerySize {
		size = MaxQuerySize
	}
	req := map[string]interface{}{
		"query": buildElasticQuery(q),
		"size":  size,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/" + s.index + "/_search")
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "failed to send request to Elasticsearch", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, common.NewIOError(common.StageCorpus,
			fmt.Sprintf("Elasticsearch returned status %d: %s", resp.StatusCode(), resp.String()), nil)
	}

	var result esSearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, common.NewIOError(common.StageCorpus, "failed to parse Elasticsearch response", err)
	}

	recipes := make([]common.Recipe, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		rec := hit.Source.toRecipe()
		if rec.ID == "" {
			rec.ID = hit.ID
		}
		if s.vocab != nil {
			rec.Indicator = BuildIndicator(s.vocab, rec.Ingredients)
		}
		recipes = append(recipes, rec)
	}

	common.LogInfo("Elasticsearch 查詢完成",
		zap.String("index", s.index),
		zap.String("query", q.Name),
		zap.Int("total", result.Hits.Total.Value),
		zap.Int("returned", len(recipes)),
	)
	return recipes, nil
}

// Reindex 刪除並重建索引後以 bulk API 寫入食譜
func (s *ElasticSource) Reindex(ctx context.Context, recipes []common.Recipe) error {
	resp, err := s.client.R().SetContext(ctx).Delete("/" + s.index)
	if err != nil {
		return common.NewIOError(common.StageCorpus, "failed to delete index", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNotFound {
		return common.NewIOError(common.StageCorpus, "delete index: "+resp.String(), nil)
	}

	resp, err = s.client.R().SetContext(ctx).Put("/" + s.index)
	if err != nil {
		return common.NewIOError(common.StageCorpus, "failed to create index", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return common.NewIOError(common.StageCorpus, "create index: "+resp.String(), nil)
	}

	if len(recipes) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i := range recipes {
		action := map[string]interface{}{
			"index": map[string]string{"_index": s.index, "_id": recipes[i].ID},
		}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(fromRecipe(&recipes[i])); err != nil {
			return err
		}
	}

	resp, err = s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(body.Bytes()).
		Post("/_bulk?refresh=true")
	if err != nil {
		return common.NewIOError(common.StageCorpus, "failed to send bulk request", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return common.NewIOError(common.StageCorpus, "bulk index: "+resp.String(), nil)
	}

	var bulk struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &bulk); err != nil {
		return common.NewIOError(common.StageCorpus, "failed to parse bulk response", err)
	}
	if bulk.Errors {
		return common.NewIOError(common.StageCorpus, "bulk index reported item errors", nil)
	}

	common.LogInfo("食譜已寫入 Elasticsearch",
		zap.String("index", s.index),
		zap.Int("count", len(recipes)),
	)
	return nil
}

func buildElasticQuery(q Query) map[string]interface{} {
	if q.Random {
		return map[string]interface{}{
			"function_score": map[string]interface{}{
				"functions": []interface{}{
					map[string]interface{}{
						"random_score": map[string]interface{}{"seed": fmt.Sprintf("%d", q.Seed)},
					},
				},
			},
		}
	}
	if q.IsZero() {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	if q.Text != "" {
		return map[string]interface{}{
			"query_string": map[string]interface{}{"query": q.Text},
		}
	}

	should := make([]interface{}, 0, len(q.IngredientsAny)+len(q.TitleAny))
	for _, ing := range q.IngredientsAny {
		should = append(should, map[string]interface{}{
			"term": map[string]interface{}{"proccessed_ing_list.keyword": ing},
		})
	}
	for _, word := range q.TitleAny {
		should = append(should, map[string]interface{}{
			"term": map[string]interface{}{"title": word},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"should": should},
	}
}

func (e esRecipe) toRecipe() common.Recipe {
	return common.Recipe{
		ID:                  e.ID,
		Title:               e.Title,
		URL:                 e.URL,
		Ingredients:         e.ProcessedIngredients,
		IngredientsText:     e.IngredientsText,
		InstructionsText:    e.InstructionsText,
		OriginalIngredients: e.OriginalIngredients,
		Instructions:        e.Instructions,
	}
}

func fromRecipe(r *common.Recipe) esRecipe {
	return esRecipe{
		ID:                   r.ID,
		Title:                r.Title,
		URL:                  r.URL,
		OriginalIngredients:  r.OriginalIngredients,
		Instructions:         r.Instructions,
		InstructionsText:     r.InstructionsText,
		IngredientsText:      r.IngredientsText,
		ProcessedIngredients: r.Ingredients,
	}
}
