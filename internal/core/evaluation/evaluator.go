package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
)

// Mode 雙向名次的合併方式
type Mode string

const (
	ModeAvg Mode = "avg" // 兩個方向名次的平均
	ModeMin Mode = "min" // 兩個方向中較好的名次
)

// ParseMode 解析合併方式
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAvg, ModeMin:
		return m, nil
	}
	return "", common.NewInvalidInputError(common.StageEvaluate, fmt.Sprintf("unknown evaluation mode %q", s))
}

// PairScore 單一替代對的評估結果
type PairScore struct {
	Pair     common.SubstitutionPair `json:"pair"`
	Forward  int                     `json:"forward"`  // rank(A→B)
	Backward int                     `json:"backward"` // rank(B→A)
	Score    float64                 `json:"score"`
}

// Report 評估報告
type Report struct {
	Mode   Mode        `json:"mode"`
	Scores []PairScore `json:"scores"`
	MRR    float64     `json:"mrr"`
}

// Evaluator 以平均倒數名次評估替代排名
type Evaluator struct {
	ranker *ranking.Ranker
	mode   Mode
}

// NewEvaluator 創建評估器
func NewEvaluator(r *ranking.Ranker, mode Mode) *Evaluator {
	return &Evaluator{ranker: r, mode: mode}
}

// Evaluate 計算每個替代對的名次分數與 MRR
func (e *Evaluator) Evaluate(pairs []common.SubstitutionPair) (*Report, error) {
	if len(pairs) == 0 {
		return nil, common.NewInvalidInputError(common.StageEvaluate, "no substitution pairs to evaluate")
	}

	report := &Report{Mode: e.mode, Scores: make([]PairScore, 0, len(pairs))}
	var sum float64
	for _, p := range pairs {
		fwd, err := e.ranker.Rank(p.A, p.B)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", p, err)
		}
		bwd, err := e.ranker.Rank(p.B, p.A)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", p, err)
		}

		var score float64
		switch e.mode {
		case ModeMin:
			score = float64(min(fwd, bwd))
		default:
			score = float64(fwd+bwd) / 2
		}
		report.Scores = append(report.Scores, PairScore{Pair: p, Forward: fwd, Backward: bwd, Score: score})
		sum += 1 / score
	}
	report.MRR = sum / float64(len(pairs))

	common.LogInfo("評估完成",
		zap.String("mode", string(e.mode)),
		zap.Int("pairs", len(pairs)),
		zap.Float64("mrr", report.MRR),
	)
	return report, nil
}

// WriteTo 以文字格式輸出報告
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, s := range r.Scores {
		n, err := fmt.Fprintf(bw, "Score between %s and %s is %s\n", s.Pair.B, s.Pair.A, r.formatScore(s.Score))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := fmt.Fprintf(bw, "Final score: %s\n", formatFloat(r.MRR))
	total += int64(n)
	if err != nil {
		return total, err
	}
	return total, bw.Flush()
}

// WriteReport 將報告寫入檔案
func WriteReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.NewIOError(common.StageEvaluate, "create dir for "+path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return common.NewIOError(common.StageEvaluate, "create "+path, err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return common.NewIOError(common.StageEvaluate, "write "+path, err)
	}
	if err := f.Close(); err != nil {
		return common.NewIOError(common.StageEvaluate, "close "+path, err)
	}
	return nil
}

// formatScore min 模式的分數為整數名次，直接輸出整數
func (r *Report) formatScore(v float64) string {
	if r.Mode == ModeMin && v == math.Trunc(v) && math.Abs(v) < 1e16 {
		return strconv.FormatInt(int64(v), 10)
	}
	return formatFloat(v)
}

// formatFloat 整數值保留一位小數（3.0），其餘以最短表示
func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e16 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
