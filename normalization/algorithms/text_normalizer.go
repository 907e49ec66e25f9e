package algorithms

import (
	"iter"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// punctuationRegex всё, что не является символом слова или пробелом
	punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	// htmlTagRegex открывающие, закрывающие и самозакрывающиеся теги
	htmlTagRegex = regexp.MustCompile(`</?[a-z][a-z0-9]*(?:\s[^<>]*)?/?>`)
)

// ReplacementRule одно правило замены в таблице очистки.
// Срабатывает ровно один из вариантов: Pattern, Literal или Func.
type ReplacementRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Literal     string
	Replacement string
	Func        func(string) string
}

// Apply применяет правило к строке
func (r ReplacementRule) Apply(text string) string {
	switch {
	case r.Func != nil:
		return r.Func(text)
	case r.Pattern != nil:
		return r.Pattern.ReplaceAllString(text, r.Replacement)
	case r.Literal != "":
		return strings.ReplaceAll(text, r.Literal, r.Replacement)
	default:
		return text
	}
}

// DefaultReplacementRules возвращает таблицу правил очистки HTML и артефактов кодировки.
// Порядок важен: теги удаляются до декодирования сущностей, иначе "&lt;b&gt;" превратится в тег.
func DefaultReplacementRules() []ReplacementRule {
	return []ReplacementRule{
		// Тег заменяется пробелом: "keyboard<br>black" это два слова
		{Name: "html_tags", Pattern: htmlTagRegex, Replacement: " "},
		{Name: "html_entities", Func: html.UnescapeString},
		// Двойное кодирование вида "&amp;amp;" после первого прохода даёт "&amp;"
		{Name: "html_entities_double", Func: html.UnescapeString},
		{Name: "mojibake_apostrophe", Literal: "â€™", Replacement: "'"},
		{Name: "mojibake_quote_open", Literal: "â€œ", Replacement: "\""},
		{Name: "mojibake_quote_close", Literal: "â€\u009d", Replacement: "\""},
		{Name: "mojibake_en_dash", Literal: "â€“", Replacement: "-"},
		{Name: "mojibake_em_dash", Literal: "â€”", Replacement: "-"},
		{Name: "mojibake_e_acute", Literal: "ã©", Replacement: "é"},
		{Name: "non_breaking_space", Literal: "\u00a0", Replacement: " "},
	}
}

// Profile описывает конфигурацию нормализатора для одного типа сущностей (SKU, поставщик, отрасль).
// После передачи в NewTextNormalizer профиль копируется, поэтому дальнейшие изменения
// исходных map и срезов на нормализатор не влияют.
type Profile struct {
	Name string
	// StopWords закрытый список служебных слов
	StopWords map[string]struct{}
	// Rules таблица замен, применяемая до токенизации
	Rules []ReplacementRule
	// Abbreviations раскрытие сокращений: "kb" -> "keyboard"
	Abbreviations map[string]string
	// FoldAccents приводит "café" к "cafe"
	FoldAccents bool
	// Stem включает английский стемминг Snowball
	Stem bool
	// AlphaOnly оставляет в словаре сущности только буквенные токены
	AlphaOnly bool
}

// DefaultProfile профиль по умолчанию для названий товаров
func DefaultProfile() Profile {
	return Profile{
		Name:        "default",
		StopWords:   DefaultStopWords(),
		Rules:       DefaultReplacementRules(),
		FoldAccents: true,
	}
}

// TextNormalizer нормализует свободный текст строки заказа в последовательность токенов.
// Не хранит изменяемого состояния и безопасен для конкурентного использования.
type TextNormalizer struct {
	name          string
	stopWords     map[string]struct{}
	rules         []ReplacementRule
	abbreviations map[string]string
	foldAccents   bool
	alphaOnly     bool
	stemmer       *EnglishStemmer
}

// NewTextNormalizer создает нормализатор из профиля
func NewTextNormalizer(profile Profile) *TextNormalizer {
	tn := &TextNormalizer{
		name:          profile.Name,
		stopWords:     maps.Clone(profile.StopWords),
		rules:         slices.Clone(profile.Rules),
		abbreviations: make(map[string]string, len(profile.Abbreviations)),
		foldAccents:   profile.FoldAccents,
		alphaOnly:     profile.AlphaOnly,
	}
	if tn.stopWords == nil {
		tn.stopWords = map[string]struct{}{}
	}
	for abbr, expansion := range profile.Abbreviations {
		tn.abbreviations[strings.ToLower(abbr)] = strings.ToLower(expansion)
	}
	if profile.Stem {
		tn.stemmer = NewEnglishStemmer()
	}
	return tn
}

// Name возвращает имя профиля
func (tn *TextNormalizer) Name() string {
	return tn.name
}

// Normalize выполняет полную нормализацию и возвращает новый срез токенов.
// Пустая строка даёт пустой срез.
func (tn *TextNormalizer) Normalize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	// 1. Нижний регистр
	text = strings.ToLower(text)

	// 2. HTML и артефакты кодировки, строго до токенизации
	for _, rule := range tn.rules {
		text = rule.Apply(text)
	}

	// 3. Диакритика. Сущности вида &#75; раскрываются в заглавные буквы,
	// поэтому регистр понижается повторно
	if tn.foldAccents {
		text = foldAccents(text)
	}
	text = strings.ToLower(text)

	// 4. Пунктуация заменяется пробелом, чтобы не склеивать соседние слова
	text = punctuationRegex.ReplaceAllString(text, " ")

	// 5. Схлопывание пробелов и разбиение
	words := strings.Fields(text)

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		for _, token := range tn.expand(word) {
			// 6-7. Стоп-слова и пустые токены
			if token == "" {
				continue
			}
			if _, stop := tn.stopWords[token]; stop {
				continue
			}
			if tn.stemmer != nil {
				token = tn.stemmer.StemWithCache(token)
			}
			tokens = append(tokens, token)
		}
	}

	return tokens
}

// Tokens возвращает перезапускаемую ленивую последовательность токенов.
// Каждый обход заново нормализует текст.
func (tn *TextNormalizer) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, token := range tn.Normalize(text) {
			if !yield(token) {
				return
			}
		}
	}
}

// VocabularyTokens токены, участвующие в построении словаря сущности.
// При AlphaOnly токены с цифрами и подчеркиваниями отбрасываются.
func (tn *TextNormalizer) VocabularyTokens(text string) []string {
	tokens := tn.Normalize(text)
	if !tn.alphaOnly {
		return tokens
	}

	result := tokens[:0]
	for _, token := range tokens {
		if isAlpha(token) {
			result = append(result, token)
		}
	}
	return result
}

// NormalizeString нормализует текст и склеивает токены через пробел
func (tn *TextNormalizer) NormalizeString(text string) string {
	return strings.Join(tn.Normalize(text), " ")
}

// expand раскрывает сокращение, раскрытие может состоять из нескольких слов
func (tn *TextNormalizer) expand(word string) []string {
	if expansion, ok := tn.abbreviations[word]; ok {
		return strings.Fields(punctuationRegex.ReplaceAllString(expansion, " "))
	}
	return []string{word}
}

// foldAccents удаляет комбинирующие диакритические знаки через NFD-разложение
func foldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}

func isAlpha(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
