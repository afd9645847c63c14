package corpus

import (
	"context"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
)

// MaxQuerySize 單次查詢最多取回的食譜數
const MaxQuerySize = 10000

// Source 食譜語料來源
type Source interface {
	Recipes(ctx context.Context, q Query, size int) ([]common.Recipe, error)
}

// Query 食譜查詢條件
// 食材與標題條件之間為 OR；Random 時忽略其他條件並以 Seed 隨機抽樣。
type Query struct {
	Name           string
	IngredientsAny []string
	TitleAny       []string
	Text           string
	Random         bool
	Seed           int64
}

// IsZero 無任何條件（取全部）
func (q Query) IsZero() bool {
	return !q.Random && q.Text == "" && len(q.IngredientsAny) == 0 && len(q.TitleAny) == 0
}

// 預定義查詢
var (
	QueryPasta  = Query{Name: "pasta", IngredientsAny: []string{"pasta", "macaroni"}}
	QueryFish   = Query{Name: "fish", IngredientsAny: []string{"fish"}}
	QueryPizza  = Query{Name: "pizza", TitleAny: []string{"pizza"}}
	QueryBurger = Query{Name: "burger", TitleAny: []string{"burger"}}
	QueryCake   = Query{Name: "cake", TitleAny: []string{"cake"}}
	QuerySalad  = Query{Name: "salad", TitleAny: []string{"salad"}}
)

// RandomQuery 以 seed 隨機抽樣
func RandomQuery(seed int64) Query {
	return Query{Name: "random", Random: true, Seed: seed}
}

// ParseQuery 解析查詢名稱；非預定義名稱視為全文查詢，空字串為全部
func ParseQuery(name string) Query {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Query{}
	case "pasta":
		return QueryPasta
	case "fish":
		return QueryFish
	case "pizza":
		return QueryPizza
	case "burger":
		return QueryBurger
	case "cake":
		return QueryCake
	case "salad":
		return QuerySalad
	case "random":
		return RandomQuery(time.Now().Unix())
	default:
		return Query{Name: "text", Text: name}
	}
}

// Matches 在記憶體中套用查詢條件（檔案來源使用）
func (q Query) Matches(r *common.Recipe) bool {
	if q.IsZero() || q.Random {
		return true
	}
	for _, want := range q.IngredientsAny {
		for _, ing := range r.Ingredients {
			if ing == want {
				return true
			}
		}
	}
	title := strings.Fields(strings.ToLower(r.Title))
	for _, want := range q.TitleAny {
		for _, w := range title {
			if w == want {
				return true
			}
		}
	}
	if q.Text != "" {
		text := strings.ToLower(r.Title + " " + r.Text())
		return strings.Contains(text, strings.ToLower(q.Text))
	}
	return false
}

// FileSource 從本地 Recipe1M 檔案或目錄讀取語料
type FileSource struct {
	Path    string
	Vocab   *vocab.Vocabulary
	Options LoadOptions
}

// Recipes 讀取並套用查詢條件
func (s *FileSource) Recipes(ctx context.Context, q Query, size int) ([]common.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, common.NewIOError(common.StageCorpus, "stat "+s.Path, err)
	}
	var res *LoadResult
	if info.IsDir() {
		res, err = LoadDir(s.Path, s.Vocab, s.Options)
	} else {
		res, err = LoadFile(s.Path, s.Vocab, s.Options)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Missing) > 0 {
		common.LogDebug("未匹配的食材",
			zap.Int("distinct", len(res.Missing)),
			zap.Any("top", TopMissing(res.Missing, 10)),
		)
	}

	recipes := filterRecipes(res.Recipes, q)
	if q.Random {
		shuffleRecipes(recipes, q.Seed)
	}
	return limit(recipes, size), nil
}

func filterRecipes(recipes []common.Recipe, q Query) []common.Recipe {
	if q.IsZero() || q.Random {
		return recipes
	}
	out := recipes[:0:0]
	for i := range recipes {
		if q.Matches(&recipes[i]) {
			out = append(out, recipes[i])
		}
	}
	return out
}

func limit(recipes []common.Recipe, size int) []common.Recipe {
	if size <= 0 || size > MaxQuerySize {
		size = MaxQuerySize
	}
	if len(recipes) > size {
		return recipes[:size]
	}
	return recipes
}

func shuffleRecipes(recipes []common.Recipe, seed int64) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	rng.Shuffle(len(recipes), func(i, j int) {
		recipes[i], recipes[j] = recipes[j], recipes[i]
	})
}
