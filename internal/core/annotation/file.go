package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"recipe-substitutes/internal/pkg/common"
)

const (
	// Separator 兩份食譜之間的分隔行
	Separator = "AND"
	// PairArrow 替代對的分隔符號
	PairArrow = "<--->"
)

// Block 一組標註：兩份來源食譜的文字與確認的替代對
type Block struct {
	First  string
	Second string
	Pairs  []common.SubstitutionPair
}

// File 標註檔
type File struct {
	Blocks []Block
}

// Pairs 所有確認的替代對（去重，保持出現順序）
func (f *File) Pairs() []common.SubstitutionPair {
	seen := make(common.PairSet)
	var out []common.SubstitutionPair
	for _, b := range f.Blocks {
		for _, p := range b.Pairs {
			if !seen.Has(p) {
				seen.Add(p)
				out = append(out, p)
			}
		}
	}
	return out
}

// ParsePairLine 解析 `a <---> b` 形式的行
func ParsePairLine(line string) (common.SubstitutionPair, bool) {
	a, b, ok := strings.Cut(line, PairArrow)
	if !ok {
		return common.SubstitutionPair{}, false
	}
	p := common.NewSubstitutionPair(strings.TrimSpace(a), strings.TrimSpace(b))
	return p, p.Valid()
}

type parseState int

const (
	stateFirst parseState = iota
	stateSecond
	statePairs
)

// Parse 解析標註檔。
// 每個區塊為：第一份食譜（直到 AND 行）、第二份食譜（標題行之後的第一個 [食材] 行）、零或多行替代對。
func Parse(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	file := &File{}
	var cur *Block
	var first, second []string
	state := stateFirst
	lineNo := 0

	flush := func() {
		if cur != nil {
			cur.First = strings.Join(first, "\n")
			cur.Second = strings.Join(second, "\n")
			file.Blocks = append(file.Blocks, *cur)
		}
		cur, first, second = nil, nil, nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		// 第二份食譜的標題行即使為空也保留
		if strings.TrimSpace(line) == "" && (state != stateSecond || len(second) > 0) {
			continue
		}

		switch state {
		case stateFirst:
			if line == Separator {
				if cur == nil {
					return nil, common.NewInvalidInputError(common.StageAnnotate,
						fmt.Sprintf("line %d: %s without a preceding recipe", lineNo, Separator))
				}
				state = stateSecond
				continue
			}
			if cur == nil {
				cur = &Block{}
			}
			first = append(first, line)
		case stateSecond:
			second = append(second, line)
			// 第一行為標題，標題本身可能帶有方括號
			if len(second) > 1 && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
				state = statePairs
			}
		case statePairs:
			if p, ok := ParsePairLine(line); ok {
				cur.Pairs = append(cur.Pairs, p)
				continue
			}
			flush()
			cur = &Block{}
			first = append(first, line)
			state = stateFirst
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.NewIOError(common.StageAnnotate, "read annotations", err)
	}
	if state == stateSecond {
		return nil, common.NewInvalidInputError(common.StageAnnotate, "annotation file ends inside a recipe block")
	}
	if state == stateFirst && cur != nil {
		return nil, common.NewInvalidInputError(common.StageAnnotate,
			fmt.Sprintf("line %d: recipe without %s separator", lineNo, Separator))
	}
	flush()
	return file, nil
}

// ParseFile 讀取並解析標註檔
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewIOError(common.StageAnnotate, "open "+path, err)
	}
	defer f.Close()
	return Parse(f)
}

// WriteBlockHeader 寫入區塊開頭：兩份食譜與分隔行
func WriteBlockHeader(w io.Writer, a, b *common.Recipe) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", a.String(), Separator, b.String())
	return err
}

// WritePair 寫入一行替代對
func WritePair(w io.Writer, p common.SubstitutionPair) error {
	_, err := fmt.Fprintf(w, "%s\n", p.String())
	return err
}
