package evaluation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"recipe-substitutes/internal/core/annotation"
	"recipe-substitutes/internal/pkg/common"
)

// LoadPairs 讀取評估用的替代對。
// 含有 AND 分隔行的檔案視為標註檔，否則每行為 `a,b` 或 `a <---> b`。
func LoadPairs(path string) ([]common.SubstitutionPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewIOError(common.StageEvaluate, "read "+path, err)
	}
	text := string(data)

	if isAnnotationFile(text) {
		file, err := annotation.Parse(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return file.Pairs(), nil
	}
	return parsePairList(text)
}

func isAnnotationFile(text string) bool {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == annotation.Separator {
			return true
		}
	}
	return false
}

func parsePairList(text string) ([]common.SubstitutionPair, error) {
	seen := make(common.PairSet)
	var out []common.SubstitutionPair
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var p common.SubstitutionPair
		var ok bool
		if strings.Contains(line, annotation.PairArrow) {
			p, ok = annotation.ParsePairLine(line)
		} else if a, b, found := strings.Cut(line, ","); found {
			p = common.SubstitutionPair{A: strings.TrimSpace(a), B: strings.TrimSpace(b)}
			ok = p.Valid()
		}
		if !ok {
			return nil, common.NewInvalidInputError(common.StageEvaluate,
				fmt.Sprintf("line %d: invalid substitution pair %q", i+1, line))
		}
		if !seen.Has(p) {
			seen.Add(p)
			out = append(out, p)
		}
	}
	return out, nil
}
