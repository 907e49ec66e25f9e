package algorithms

import (
	"slices"
	"strings"
)

// Scorer функция схожести двух строк на шкале [0, 100]
type Scorer func(a, b string) float64

// Ratio нормированная схожесть по расстоянию вставок и удалений:
// 100 * 2 * LCS / (len(a) + len(b)), длины в рунах.
// Если хотя бы одна строка пуста, возвращает 0.
func Ratio(a, b string) float64 {
	r1 := []rune(a)
	r2 := []rune(b)
	total := len(r1) + len(r2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0
	}

	lcs := longestCommonSubsequence(r1, r2)
	return 100 * float64(2*lcs) / float64(total)
}

// TokenSortRatio сортирует токены обеих строк и сравнивает результат через Ratio.
// Порядок слов не влияет на оценку: "keyboard wireless" и "wireless keyboard" дают 100.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio сравнивает пересечение множеств токенов с каждой из строк.
// Если множество токенов одной строки содержится в другой, результат 100.
func TokenSetRatio(a, b string) float64 {
	set1 := tokenSet(a)
	set2 := tokenSet(b)
	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	var sect, diff12, diff21 []string
	for token := range set1 {
		if _, ok := set2[token]; ok {
			sect = append(sect, token)
		} else {
			diff12 = append(diff12, token)
		}
	}
	for token := range set2 {
		if _, ok := set1[token]; !ok {
			diff21 = append(diff21, token)
		}
	}
	slices.Sort(sect)
	slices.Sort(diff12)
	slices.Sort(diff21)

	if len(sect) > 0 && (len(diff12) == 0 || len(diff21) == 0) {
		return 100
	}

	sectStr := strings.Join(sect, " ")
	combined12 := strings.TrimSpace(sectStr + " " + strings.Join(diff12, " "))
	combined21 := strings.TrimSpace(sectStr + " " + strings.Join(diff21, " "))

	best := Ratio(combined12, combined21)
	if sectStr != "" {
		best = max(best, Ratio(sectStr, combined12), Ratio(sectStr, combined21))
	}
	return best
}

// ScorerByName возвращает функцию оценки по имени из конфигурации
func ScorerByName(name string) (Scorer, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "token_sort", "token_sort_ratio":
		return TokenSortRatio, true
	case "token_set", "token_set_ratio":
		return TokenSetRatio, true
	case "ratio":
		return Ratio, true
	default:
		return nil, false
	}
}

func sortedTokens(text string) string {
	tokens := strings.Fields(text)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(text) {
		set[token] = struct{}{}
	}
	return set
}

// longestCommonSubsequence длина наибольшей общей подпоследовательности, память O(min(n, m))
func longestCommonSubsequence(r1, r2 []rune) int {
	if len(r2) > len(r1) {
		r1, r2 = r2, r1
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			if r1[i-1] == r2[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
