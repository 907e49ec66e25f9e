package normalization

import (
	"cmp"
	"slices"
	"strings"

	"orderly/normalization/algorithms"
)

// AliasRanker оценивает исходные алиасы относительно канонических токенов
type AliasRanker struct {
	scorer algorithms.Scorer
	topK   int
}

// NewAliasRanker создает ранжировщик; nil scorer означает TokenSortRatio
func NewAliasRanker(scorer algorithms.Scorer, topK int) *AliasRanker {
	if scorer == nil {
		scorer = algorithms.TokenSortRatio
	}
	return &AliasRanker{scorer: scorer, topK: topK}
}

// RankInput один алиас для ранжирования
type RankInput struct {
	Observation AliasObservation
	// Tokens нормализованные токены исходного текста
	Tokens []string
	// Canonicalized токены после отображения через RepresentativeMap
	Canonicalized []string
}

// Rank возвращает полный отсортированный список алиасов.
// Порядок: оценка по убыванию, затем occurrence_count по убыванию, затем исходный текст.
// При пустом наборе канонических токенов все оценки равны нулю.
func (r *AliasRanker) Rank(inputs []RankInput, canonicalTokens []string) []RankedAlias {
	reference := strings.Join(canonicalTokens, " ")

	ranked := make([]RankedAlias, 0, len(inputs))
	for _, in := range inputs {
		score := 0.0
		if reference != "" {
			score = r.scorer(strings.Join(in.Tokens, " "), reference)
		}
		ranked = append(ranked, RankedAlias{
			Text:              in.Observation.RawText,
			CanonicalizedText: strings.Join(in.Canonicalized, " "),
			Score:             score,
			OccurrenceCount:   in.Observation.OccurrenceCount,
		})
	}

	slices.SortStableFunc(ranked, compareRanked)
	return ranked
}

// TopK обрезает список до размера шорт-листа
func (r *AliasRanker) TopK(ranked []RankedAlias) []RankedAlias {
	if len(ranked) > r.topK {
		return ranked[:r.topK]
	}
	return ranked
}

func compareRanked(a, b RankedAlias) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.OccurrenceCount, a.OccurrenceCount); c != 0 {
		return c
	}
	return cmp.Compare(a.Text, b.Text)
}
