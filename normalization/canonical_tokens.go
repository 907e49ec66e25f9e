package normalization

import (
	"cmp"
	"slices"
)

// CanonicalTokenSelector выбирает top_m токенов, лучше всего описывающих сущность.
// Вес токена равен сумме occurrence_count алиасов, в которых он встречается хотя бы раз,
// поэтому повтор токена внутри одного алиаса вес не увеличивает.
type CanonicalTokenSelector struct {
	topM int
}

// NewCanonicalTokenSelector создает селектор
func NewCanonicalTokenSelector(topM int) *CanonicalTokenSelector {
	return &CanonicalTokenSelector{topM: topM}
}

// Select возвращает канонические токены по убыванию веса, при равенстве лексикографически.
// tokens[i] уже отображены через RepresentativeMap и соответствуют observations[i].
func (s *CanonicalTokenSelector) Select(observations []AliasObservation, tokens [][]string) []string {
	scores := make(map[string]int)
	for i, obs := range observations {
		if i >= len(tokens) {
			break
		}
		seen := make(map[string]struct{}, len(tokens[i]))
		for _, token := range tokens[i] {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			scores[token] += obs.OccurrenceCount
		}
	}

	if len(scores) == 0 {
		return []string{}
	}

	selected := make([]string, 0, len(scores))
	for token := range scores {
		selected = append(selected, token)
	}
	slices.SortFunc(selected, func(a, b string) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	if len(selected) > s.topM {
		selected = selected[:s.topM]
	}
	return selected
}
