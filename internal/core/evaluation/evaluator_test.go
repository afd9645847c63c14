package evaluation

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// rank(a→b) = 2, rank(b→a) = 4
func sampleRanker(t *testing.T) *ranking.Ranker {
	t.Helper()
	v := vocab.New([]string{"a", "b", "c", "d", "e"})
	m := mat.NewDense(5, 5, []float64{
		0, 0.5, 0.9, 0, 0,
		0.1, 0, 0.9, 0.8, 0.7,
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
	})
	r, err := ranking.NewRanker(m, v, nil)
	require.NoError(t, err)
	return r
}

func TestEvaluate_Modes(t *testing.T) {
	pairs := []common.SubstitutionPair{{A: "a", B: "b"}}

	tests := []struct {
		mode  Mode
		score float64
		mrr   float64
	}{
		{ModeAvg, 3, 1.0 / 3},
		{ModeMin, 2, 0.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			report, err := NewEvaluator(sampleRanker(t), tt.mode).Evaluate(pairs)
			require.NoError(t, err)
			require.Len(t, report.Scores, 1)
			assert.Equal(t, 2, report.Scores[0].Forward)
			assert.Equal(t, 4, report.Scores[0].Backward)
			assert.Equal(t, tt.score, report.Scores[0].Score)
			assert.InDelta(t, tt.mrr, report.MRR, 1e-12)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	e := NewEvaluator(sampleRanker(t), ModeAvg)

	_, err := e.Evaluate(nil)
	assert.True(t, common.IsInvalidInput(err))

	_, err = e.Evaluate([]common.SubstitutionPair{{A: "a", B: "ghee"}})
	require.Error(t, err)
	assert.True(t, common.IsLookup(err))
	assert.Contains(t, err.Error(), "ghee")
}

func TestReport_WriteTo(t *testing.T) {
	report := &Report{
		Scores: []PairScore{
			{Pair: common.SubstitutionPair{A: "butter", B: "margarine"}, Score: 3},
			{Pair: common.SubstitutionPair{A: "milk", B: "cream"}, Score: 1.5},
		},
		MRR: 0.5,
	}

	var buf bytes.Buffer
	_, err := report.WriteTo(&buf)
	require.NoError(t, err)

	assert.Equal(t, "Score between margarine and butter is 3.0\n"+
		"Score between cream and milk is 1.5\n"+
		"Final score: 0.5\n", buf.String())
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "evaluation.txt")
	report, err := NewEvaluator(sampleRanker(t), ModeMin).Evaluate([]common.SubstitutionPair{{A: "a", B: "b"}})
	require.NoError(t, err)

	require.NoError(t, WriteReport(path, report))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Score between b and a is 2\nFinal score: 0.5\n", string(data))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("MIN")
	require.NoError(t, err)
	assert.Equal(t, ModeMin, m)

	_, err = ParseMode("median")
	assert.True(t, common.IsInvalidInput(err))
}

func TestLoadPairs(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "pairs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# known\nbutter,margarine\nmilk <---> cream\nmargarine, butter\n"), 0o644))
	pairs, err := LoadPairs(list)
	require.NoError(t, err)
	assert.Equal(t, []common.SubstitutionPair{
		{A: "butter", B: "margarine"},
		{A: "cream", B: "milk"},
	}, pairs)

	annotated := filepath.Join(dir, "annotations.txt")
	require.NoError(t, os.WriteFile(annotated, []byte("Cake\n[butter, sugar]\nAND\nCake 2\n[margarine, sugar]\nbutter <---> margarine\n"), 0o644))
	pairs, err = LoadPairs(annotated)
	require.NoError(t, err)
	assert.Equal(t, []common.SubstitutionPair{{A: "butter", B: "margarine"}}, pairs)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("butter\n"), 0o644))
	_, err = LoadPairs(bad)
	assert.True(t, common.IsInvalidInput(err))
}
