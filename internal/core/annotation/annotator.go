package annotation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"recipe-substitutes/internal/core/ranking"
	"recipe-substitutes/internal/core/similarity"
	"recipe-substitutes/internal/pkg/common"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultEnough 每次標註最多確認的替代對數
const DefaultEnough = 20

// Annotator 互動式標註：從最相似的食譜對中列出差異食材組合，讓使用者確認
type Annotator struct {
	in     *bufio.Reader
	out    io.Writer
	enough int

	// True 與 False 為已知的正確與錯誤替代對，不會重複詢問
	True  common.PairSet
	False common.PairSet

	// Rejected 不為 nil 時，被否決的替代對以 "a <---> b" 行寫入
	Rejected io.Writer
}

// Result 標註結果
type Result struct {
	Added    []common.SubstitutionPair
	Rejected []common.SubstitutionPair
	Asked    int
	Blocks   int
}

// NewAnnotator 創建標註器
func NewAnnotator(in io.Reader, out io.Writer, enough int) *Annotator {
	if enough <= 0 {
		enough = DefaultEnough
	}
	return &Annotator{
		in:     bufio.NewReader(in),
		out:    out,
		enough: enough,
		True:   make(common.PairSet),
		False:  make(common.PairSet),
	}
}

// Candidates 兩份食譜雙向差異食材的所有組合
func Candidates(a, b *common.Recipe) []common.SubstitutionPair {
	onlyA := difference(a.Ingredients, b.Ingredients)
	onlyB := difference(b.Ingredients, a.Ingredients)
	if len(onlyA) == 0 || len(onlyB) == 0 {
		return nil
	}
	out := make([]common.SubstitutionPair, 0, len(onlyA)*len(onlyB))
	for _, x := range onlyA {
		for _, y := range onlyB {
			out = append(out, common.SubstitutionPair{A: x, B: y})
		}
	}
	return out
}

func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, s := range b {
		exclude[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := exclude[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// Run 對前 topK 對最相似的食譜進行標註，並將區塊寫入 w
func (a *Annotator) Run(recipes []common.Recipe, sim mat.Symmetric, topK int, w io.Writer) (*Result, error) {
	if sim.SymmetricDim() != len(recipes) {
		return nil, common.NewInvalidInputError(common.StageAnnotate,
			fmt.Sprintf("similarity matrix has %d rows but corpus has %d recipes", sim.SymmetricDim(), len(recipes)))
	}

	res := &Result{}
	inputClosed := false

	for _, pair := range similarity.TopPairs(sim, topK) {
		ra, rb := &recipes[pair.I], &recipes[pair.J]
		subs := Candidates(ra, rb)
		if len(subs) == 0 {
			continue
		}

		if err := WriteBlockHeader(w, ra, rb); err != nil {
			return nil, common.NewIOError(common.StageAnnotate, "write annotation block", err)
		}
		res.Blocks++
		fmt.Fprintf(a.out, "From %s and %s we can substitute:\n\n", ra, rb)

		for _, s := range subs {
			fmt.Fprintf(a.out, "%s\n", s)
			if err := a.confirm(s, res, &inputClosed, w); err != nil {
				return nil, err
			}
		}
		fmt.Fprintln(a.out)
	}

	common.LogInfo("標註完成",
		zap.Int("blocks", res.Blocks),
		zap.Int("asked", res.Asked),
		zap.Int("added", len(res.Added)),
	)
	return res, nil
}

// Review 逐一確認候選清單中的替代對，確認者以 "a <---> b" 行寫入 w
func (a *Annotator) Review(lists []ranking.Neighborhood, w io.Writer) (*Result, error) {
	res := &Result{}
	inputClosed := false

	for _, n := range lists {
		if len(n.Candidates) == 0 {
			continue
		}
		res.Blocks++
		fmt.Fprintf(a.out, "Candidates for %s:\n\n", n.Ingredient)
		for _, c := range n.Candidates {
			s := common.SubstitutionPair{A: n.Ingredient, B: c.Ingredient}
			if !s.Valid() {
				continue
			}
			fmt.Fprintf(a.out, "%s (%.4g)\n", s, c.Score)
			if err := a.confirm(s, res, &inputClosed, w); err != nil {
				return nil, err
			}
		}
		fmt.Fprintln(a.out)
	}

	common.LogInfo("候選清單確認完成",
		zap.Int("lists", res.Blocks),
		zap.Int("asked", res.Asked),
		zap.Int("added", len(res.Added)),
	)
	return res, nil
}

// confirm 詢問單一替代對；已知、已達上限或輸入結束時略過
func (a *Annotator) confirm(s common.SubstitutionPair, res *Result, inputClosed *bool, w io.Writer) error {
	sorted := common.NewSubstitutionPair(s.A, s.B)
	if *inputClosed || a.True.Has(sorted) || a.False.Has(sorted) || len(res.Added) >= a.enough {
		fmt.Fprintf(a.out, "Already added %s\n", s)
		return nil
	}

	answer, err := a.ask(s)
	if errors.Is(err, io.EOF) {
		*inputClosed = true
		return nil
	}
	if err != nil {
		return common.NewIOError(common.StageAnnotate, "read answer", err)
	}
	res.Asked++

	if answer != "y" {
		a.False.Add(sorted)
		res.Rejected = append(res.Rejected, sorted)
		if a.Rejected != nil {
			if err := WritePair(a.Rejected, sorted); err != nil {
				return common.NewIOError(common.StageAnnotate, "write rejected pair", err)
			}
		}
		return nil
	}
	a.True.Add(sorted)
	res.Added = append(res.Added, sorted)
	fmt.Fprintf(a.out, "Added %d pairs\n", len(res.Added))
	if err := WritePair(w, sorted); err != nil {
		return common.NewIOError(common.StageAnnotate, "write annotation pair", err)
	}
	return nil
}

func (a *Annotator) ask(p common.SubstitutionPair) (string, error) {
	fmt.Fprintf(a.out, "Add \033[4m%s\033[0m and \033[4m%s\033[0m to true pairs:", p.A, p.B)
	line, err := a.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}
