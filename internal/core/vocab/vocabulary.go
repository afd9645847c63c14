package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"recipe-substitutes/internal/pkg/common"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Vocabulary 標準食材詞彙表
// ID 與字串為 [0, V) 上互逆的雙射，建立後不可變更。
type Vocabulary struct {
	terms []string
	ids   map[string]int
}

// New 依給定順序建立詞彙表；重複或空白項目會被略過
func New(terms []string) *Vocabulary {
	v := &Vocabulary{
		terms: make([]string, 0, len(terms)),
		ids:   make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := v.ids[t]; ok {
			continue
		}
		v.ids[t] = len(v.terms)
		v.terms = append(v.terms, t)
	}
	return v
}

// Normalize 食材字串正規化：NFKC、case fold、移除雙引號、合併空白
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, `"`, "")
	return strings.Join(strings.Fields(s), " ")
}

// Read 讀取一行一個食材的詞彙檔，並依字數由多到少穩定排序，
// 讓多字食材先於其單字子字串比對。
func Read(r io.Reader) (*Vocabulary, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var terms []string
	for scanner.Scan() {
		if t := Normalize(scanner.Text()); t != "" {
			terms = append(terms, t)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.NewIOError(common.StageVocabulary, "failed to read vocabulary", err)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return strings.Count(terms[i], " ") > strings.Count(terms[j], " ")
	})

	v := New(terms)
	if v.Len() == 0 {
		return nil, common.NewInvalidInputError(common.StageVocabulary, "vocabulary is empty")
	}
	return v, nil
}

// Load 從檔案載入詞彙表
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewIOError(common.StageVocabulary, fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	v, err := Read(f)
	if err != nil {
		return nil, err
	}
	common.LogDebug("詞彙表已載入")
	return v, nil
}

// Len 詞彙數量 V
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// ID 食材對應的 ID
func (v *Vocabulary) ID(term string) (int, bool) {
	id, ok := v.ids[term]
	return id, ok
}

// MustID 食材對應的 ID；不存在時返回 LookupError
func (v *Vocabulary) MustID(stage, term string) (int, error) {
	id, ok := v.ids[term]
	if !ok {
		return -1, common.NewLookupError(stage, term)
	}
	return id, nil
}

// Term ID 對應的食材
func (v *Vocabulary) Term(id int) string {
	return v.terms[id]
}

// Terms 詞彙表副本（保持順序）
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Contains 是否包含食材
func (v *Vocabulary) Contains(term string) bool {
	_, ok := v.ids[term]
	return ok
}
