package normalization

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"orderly/normalization/algorithms"
)

// TypoCollapser объединяет близкие по написанию токены одной сущности в кластеры
// и заменяет каждый токен представителем его кластера.
type TypoCollapser struct {
	maxEditDistance         int
	minRepresentativeLength int
}

// NewTypoCollapser создает коллапсер с заданным радиусом кластера
func NewTypoCollapser(maxEditDistance, minRepresentativeLength int) *TypoCollapser {
	return &TypoCollapser{
		maxEditDistance:         maxEditDistance,
		minRepresentativeLength: minRepresentativeLength,
	}
}

// BuildTokenFrequencies строит таблицу частот по токенизированным алиасам.
// tokens[i] соответствует observations[i]; каждый токен учитывается один раз на алиас.
func BuildTokenFrequencies(observations []AliasObservation, tokens [][]string) TokenFrequencyTable {
	table := make(TokenFrequencyTable)
	for i, obs := range observations {
		seen := make(map[string]struct{}, len(tokens[i]))
		for _, token := range tokens[i] {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			stats := table[token]
			stats.PresenceCount++
			stats.Weight += obs.OccurrenceCount
			table[token] = stats
		}
	}
	return table
}

// Collapse строит RepresentativeMap.
// Токены обходятся по убыванию веса (при равенстве лексикографически); короткие токены
// не могут стать представителями, но могут быть присоединены к чужому кластеру.
func (tc *TypoCollapser) Collapse(frequencies TokenFrequencyTable) RepresentativeMap {
	result := make(RepresentativeMap, len(frequencies))
	if len(frequencies) == 0 {
		return result
	}

	type weighted struct {
		token  string
		weight int
		length int
	}

	ordered := make([]weighted, 0, len(frequencies))
	for token, stats := range frequencies {
		ordered = append(ordered, weighted{token: token, weight: stats.Weight, length: utf8.RuneCountInString(token)})
	}
	slices.SortFunc(ordered, func(a, b weighted) int {
		if c := cmp.Compare(b.weight, a.weight); c != 0 {
			return c
		}
		return cmp.Compare(a.token, b.token)
	})

	for _, rep := range ordered {
		if _, assigned := result[rep.token]; assigned {
			continue
		}
		if rep.length < tc.minRepresentativeLength {
			continue
		}

		result[rep.token] = rep.token
		// Просматриваются все свободные токены, включая пропущенные ранее короткие
		for _, candidate := range ordered {
			if _, assigned := result[candidate.token]; assigned {
				continue
			}
			if absDiff(rep.length, candidate.length) > tc.maxEditDistance {
				continue
			}
			if algorithms.WithinDistance(rep.token, candidate.token, tc.maxEditDistance) {
				result[candidate.token] = rep.token
			}
		}
	}

	// Токены, не попавшие ни в один кластер, остаются сами собой
	for _, w := range ordered {
		if _, assigned := result[w.token]; !assigned {
			result[w.token] = w.token
		}
	}

	return result
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
