package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"recipe-substitutes/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecipes() []common.Recipe {
	return []common.Recipe{
		{ID: "1", Title: "Pizza Margherita", Ingredients: []string{"tomato", "mozzarella"}, InstructionsText: "bake the pizza"},
		{ID: "2", Title: "Fish Tacos", Ingredients: []string{"fish", "tortilla"}, InstructionsText: "fry the fish"},
		{ID: "3", Title: "Mac and Cheese", Ingredients: []string{"macaroni", "cheddar"}, InstructionsText: "boil the macaroni"},
		{ID: "4", Title: "Green Salad", Ingredients: []string{"lettuce", "tomato"}, InstructionsText: "toss everything"},
	}
}

func ids(recipes []common.Recipe) []string {
	out := make([]string, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r.ID)
	}
	return out
}

func TestParseQuery(t *testing.T) {
	assert.Equal(t, QueryPasta, ParseQuery("Pasta"))
	assert.Equal(t, QuerySalad, ParseQuery(" salad "))
	assert.True(t, ParseQuery("").IsZero())
	assert.True(t, ParseQuery("random").Random)

	q := ParseQuery("chocolate chip")
	assert.Equal(t, "chocolate chip", q.Text)
}

func TestQueryMatches(t *testing.T) {
	recipes := sampleRecipes()

	assert.Equal(t, []string{"3"}, ids(filterRecipes(recipes, QueryPasta)))
	assert.Equal(t, []string{"2"}, ids(filterRecipes(recipes, QueryFish)))
	assert.Equal(t, []string{"1"}, ids(filterRecipes(recipes, QueryPizza)))
	assert.Equal(t, []string{"4"}, ids(filterRecipes(recipes, QuerySalad)))
	assert.Equal(t, []string{"2"}, ids(filterRecipes(recipes, Query{Text: "fry"})))
	assert.Len(t, filterRecipes(recipes, Query{}), 4)
}

func TestShuffleRecipes_Deterministic(t *testing.T) {
	a := sampleRecipes()
	b := sampleRecipes()
	shuffleRecipes(a, 42)
	shuffleRecipes(b, 42)

	assert.Equal(t, ids(a), ids(b))
	assert.ElementsMatch(t, []string{"1", "2", "3", "4"}, ids(a))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	require.NoError(t, os.WriteFile(path, []byte("["+fragmentA+fragmentB), 0o644))

	src := &FileSource{Path: path, Vocab: mustVocab(t, "butter", "margarine", "flour", "lettuce")}

	all, err := src.Recipes(context.Background(), Query{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(all))

	cakes, err := src.Recipes(context.Background(), QueryCake, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(cakes))
}

func TestMemIndex(t *testing.T) {
	v := mustVocab(t, "tomato", "mozzarella", "fish", "tortilla", "macaroni", "cheddar", "lettuce")
	ix, err := NewMemIndex(v)
	require.NoError(t, err)
	defer ix.Close()

	ctx := context.Background()
	require.NoError(t, ix.Put(ctx, sampleRecipes()))

	count, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	pasta, err := ix.Recipes(ctx, QueryPasta, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, ids(pasta))
	assert.Equal(t, []string{"macaroni", "cheddar"}, pasta[0].Ingredients)
	require.True(t, pasta[0].HasIndicator())
	assert.Equal(t, uint64(2), pasta[0].Indicator.GetCardinality())

	pizza, err := ix.Recipes(ctx, QueryPizza, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(pizza))

	all, err := ix.Recipes(ctx, Query{}, 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	random, err := ix.Recipes(ctx, RandomQuery(7), 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3", "4"}, ids(random))
}

func TestMemIndex_RandomCoversWholeIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("indexes more than MaxQuerySize recipes")
	}
	ix, err := NewMemIndex(nil)
	require.NoError(t, err)
	defer ix.Close()

	const n = MaxQuerySize + 200
	recipes := make([]common.Recipe, n)
	for i := range recipes {
		recipes[i] = common.Recipe{ID: fmt.Sprintf("r%05d", i), Title: "Recipe", Ingredients: []string{"salt"}}
	}
	ctx := context.Background()
	require.NoError(t, ix.Put(ctx, recipes))

	tail := 0
	for seed := int64(0); seed < 10; seed++ {
		sample, err := ix.Recipes(ctx, RandomQuery(seed), 100)
		require.NoError(t, err)
		require.Len(t, sample, 100)

		seen := make(map[string]bool, len(sample))
		for _, r := range sample {
			assert.False(t, seen[r.ID], "duplicate %s", r.ID)
			seen[r.ID] = true
			if r.ID >= fmt.Sprintf("r%05d", MaxQuerySize) {
				tail++
			}
		}
	}
	assert.Positive(t, tail, "recipes past the first page were never sampled")

	first, err := ix.Recipes(ctx, RandomQuery(3), 50)
	require.NoError(t, err)
	again, err := ix.Recipes(ctx, RandomQuery(3), 50)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))
}

func TestBuildElasticQuery(t *testing.T) {
	data, err := json.Marshal(buildElasticQuery(QueryPasta))
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"should":[
		{"term":{"proccessed_ing_list.keyword":"pasta"}},
		{"term":{"proccessed_ing_list.keyword":"macaroni"}}]}}`, string(data))

	data, err = json.Marshal(buildElasticQuery(RandomQuery(12)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"function_score":{"functions":[{"random_score":{"seed":"12"}}]}}`, string(data))

	data, err = json.Marshal(buildElasticQuery(QueryBurger))
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"should":[{"term":{"title":"burger"}}]}}`, string(data))
}

func TestElasticSource_Recipes(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reduced_all_recipes/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[
			{"_id":"abc","_source":{"title":"Fish Tacos","proccessed_ing_list":["fish","tortilla"],
			 "ingredients_text":"1 lb fish","instructions_text":"fry"}}]}}`))
	}))
	defer srv.Close()

	src := NewElasticSource(srv.URL, "reduced_all_recipes", time.Second, mustVocab(t, "fish", "tortilla"))
	recipes, err := src.Recipes(context.Background(), QueryFish, 5)
	require.NoError(t, err)

	require.Len(t, recipes, 1)
	assert.Equal(t, "abc", recipes[0].ID)
	assert.Equal(t, []string{"fish", "tortilla"}, recipes[0].Ingredients)
	assert.Equal(t, "fry 1 lb fish", recipes[0].Text())
	assert.Equal(t, uint64(2), recipes[0].Indicator.GetCardinality())
	assert.EqualValues(t, 5, gotBody["size"])
}

func TestElasticSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"index_not_found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewElasticSource(srv.URL, "missing", time.Second, nil)
	_, err := src.Recipes(context.Background(), Query{}, 5)
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeIO, common.ErrorCode(err))
}

func TestElasticSource_Reindex(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/_bulk":
			_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
		default:
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	}))
	defer srv.Close()

	src := NewElasticSource(srv.URL, "all_recipes", time.Second, nil)
	require.NoError(t, src.Reindex(context.Background(), sampleRecipes()))

	assert.Equal(t, []string{"DELETE /all_recipes", "PUT /all_recipes", "POST /_bulk"}, calls)
}
