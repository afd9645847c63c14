package cooccur

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPartitions(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
		want    []Partition
	}{
		{"even", 6, 3, []Partition{{0, 0, 2}, {1, 2, 4}, {2, 4, 6}}},
		{"remainder", 7, 3, []Partition{{0, 0, 2}, {1, 2, 4}, {2, 4, 7}}},
		{"more workers than columns", 2, 10, []Partition{{0, 0, 1}, {1, 1, 2}}},
		{"single", 5, 1, []Partition{{0, 0, 5}}},
		{"empty", 0, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partitions(tt.n, tt.workers))
		})
	}
}

func TestPartitions_CoverAllColumns(t *testing.T) {
	for n := 1; n < 40; n++ {
		for w := 1; w < 12; w++ {
			parts := Partitions(n, w)
			next := 0
			for _, p := range parts {
				require.Equal(t, next, p.Start)
				require.Greater(t, p.Len(), 0)
				next = p.End
			}
			require.Equal(t, n, next)
		}
	}
}

func TestAccumulate_ButterMargarine(t *testing.T) {
	v := vocab.New([]string{"butter", "margarine", "salt", "sugar"})
	recipes := []common.Recipe{
		{ID: "a", Ingredients: []string{"butter", "salt", "sugar"}},
		{ID: "b", Ingredients: []string{"margarine", "salt", "sugar"}},
	}
	sim := mat.NewSymDense(2, []float64{0, 0.8, 0.8, 0})

	got, err := NewAccumulator(v, 4).Accumulate(context.Background(), recipes, sim)
	require.NoError(t, err)

	assert.Equal(t, 0.8, got.At(0, 1))
	assert.Equal(t, 0.8, got.At(1, 0))
	assert.Equal(t, 1.6, mat.Sum(got))
}

func TestAccumulate_SupersetContributesNothing(t *testing.T) {
	v := vocab.New([]string{"butter", "salt", "sugar"})
	recipes := []common.Recipe{
		{ID: "a", Ingredients: []string{"butter", "salt", "sugar"}},
		{ID: "b", Ingredients: []string{"salt", "sugar"}},
	}
	sim := mat.NewSymDense(2, []float64{0, 0.9, 0.9, 0})

	got, err := NewAccumulator(v, 2).Accumulate(context.Background(), recipes, sim)
	require.NoError(t, err)
	assert.Zero(t, mat.Sum(got))
}

func randomCorpus(r *rand.Rand, n, vocabSize int) ([]common.Recipe, *vocab.Vocabulary, *mat.SymDense) {
	terms := make([]string, vocabSize)
	for i := range terms {
		terms[i] = fmt.Sprintf("ing%02d", i)
	}
	v := vocab.New(terms)

	recipes := make([]common.Recipe, n)
	for i := range recipes {
		seen := map[int]bool{}
		for k := 0; k < 2+r.IntN(5); k++ {
			id := r.IntN(vocabSize)
			if !seen[id] {
				seen[id] = true
				recipes[i].Ingredients = append(recipes[i].Ingredients, terms[id])
			}
		}
		recipes[i].ID = fmt.Sprintf("r%d", i)
	}

	sim := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r.Float64() < 0.7 {
				sim.SetSym(i, j, r.Float64())
			}
		}
	}
	return recipes, v, sim
}

func TestAccumulate_PartitionInvariance(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	recipes, v, sim := randomCorpus(r, 23, 12)

	base, err := NewAccumulator(v, 1).Accumulate(context.Background(), recipes, sim)
	require.NoError(t, err)
	require.Greater(t, mat.Sum(base), 0.0)

	for _, workers := range []int{3, 10} {
		got, err := NewAccumulator(v, workers).Accumulate(context.Background(), recipes, sim)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(base, got, 1e-9), "workers=%d", workers)
	}
}

func TestAccumulate_SymmetricZeroDiagonal(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	recipes, v, sim := randomCorpus(r, 15, 8)

	got, err := NewAccumulator(v, 3).Accumulate(context.Background(), recipes, sim)
	require.NoError(t, err)

	n, _ := got.Dims()
	for a := 0; a < n; a++ {
		assert.Zero(t, got.At(a, a))
		for b := 0; b < n; b++ {
			assert.InDelta(t, got.At(a, b), got.At(b, a), 1e-12)
		}
	}
}

func TestAccumulate_WorkerFailureAborts(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	recipes, v, sim := randomCorpus(r, 10, 6)

	acc := NewAccumulator(v, 3)
	acc.scan = func(ctx context.Context, in *input, p Partition) (*mat.Dense, error) {
		if p.Index == 1 {
			return nil, errors.New("disk full")
		}
		return scanPartition(ctx, in, p)
	}

	got, err := acc.Accumulate(context.Background(), recipes, sim)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, common.IsWorkerFailure(err))
	assert.Contains(t, err.Error(), "partition 1")
}

func TestAccumulate_WorkerPanicAborts(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	recipes, v, sim := randomCorpus(r, 6, 6)

	acc := NewAccumulator(v, 2)
	acc.scan = func(ctx context.Context, in *input, p Partition) (*mat.Dense, error) {
		panic("index out of range")
	}

	_, err := acc.Accumulate(context.Background(), recipes, sim)
	require.Error(t, err)
	assert.True(t, common.IsWorkerFailure(err))
}

func TestAccumulate_UnknownIngredient(t *testing.T) {
	v := vocab.New([]string{"butter"})
	recipes := []common.Recipe{
		{ID: "a", Ingredients: []string{"butter"}},
		{ID: "b", Ingredients: []string{"ghee"}},
	}

	_, err := NewAccumulator(v, 1).Accumulate(context.Background(), recipes, mat.NewSymDense(2, nil))
	require.Error(t, err)
	assert.True(t, common.IsLookup(err))
	assert.Contains(t, err.Error(), "ghee")
}

func TestAccumulate_DimensionMismatch(t *testing.T) {
	v := vocab.New([]string{"butter"})
	recipes := []common.Recipe{{ID: "a"}, {ID: "b"}}

	_, err := NewAccumulator(v, 1).Accumulate(context.Background(), recipes, mat.NewSymDense(3, nil))
	require.Error(t, err)
	assert.True(t, common.IsInvalidInput(err))
}

func TestAccumulate_EmptyVocabulary(t *testing.T) {
	recipes := []common.Recipe{{ID: "a"}, {ID: "b"}}

	for _, v := range []*vocab.Vocabulary{vocab.New(nil), nil} {
		_, err := NewAccumulator(v, 3).Accumulate(context.Background(), recipes, mat.NewSymDense(2, nil))
		require.Error(t, err)
		assert.True(t, common.IsInvalidInput(err))
		assert.False(t, common.IsWorkerFailure(err))
	}
}

func TestPoolStatus(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 9))
	recipes, v, sim := randomCorpus(r, 9, 5)

	acc := NewAccumulator(v, 4)
	_, err := acc.Accumulate(context.Background(), recipes, sim)
	require.NoError(t, err)

	st := acc.Status()
	assert.Equal(t, 4, st.Partitions)
	assert.Equal(t, 4, st.ProcessedCount)
	assert.Equal(t, 4, st.Workers)
}
