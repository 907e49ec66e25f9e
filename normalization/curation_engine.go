package normalization

import (
	"cmp"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"orderly/normalization/algorithms"
)

// Normalizer превращает текст алиаса в токены.
// Normalize дает поток для сравнения алиасов, VocabularyTokens для словаря сущности.
type Normalizer interface {
	Normalize(text string) []string
	VocabularyTokens(text string) []string
}

// Options параметры конвейера курирования
type Options struct {
	MaxEditDistance         int     `json:"max_edit_distance" yaml:"max_edit_distance"`
	MinRepresentativeLength int     `json:"min_representative_length" yaml:"min_representative_length"`
	TopMCanonicalTokens     int     `json:"top_m_canonical_tokens" yaml:"top_m_canonical_tokens"`
	TopKRankedAliases       int     `json:"top_k_ranked_aliases" yaml:"top_k_ranked_aliases"`
	AutoApprovalThreshold   float64 `json:"auto_approval_score_threshold" yaml:"auto_approval_score_threshold"`
	// Scorer имя функции схожести: token_sort (по умолчанию), token_set, ratio
	Scorer string `json:"scorer" yaml:"scorer"`
	// Workers число параллельных обработчиков в пакетном режиме
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOptions параметры по умолчанию для генерации сида
func DefaultOptions() Options {
	return Options{
		MaxEditDistance:         2,
		MinRepresentativeLength: 4,
		TopMCanonicalTokens:     2,
		TopKRankedAliases:       3,
		AutoApprovalThreshold:   DefaultAutoApprovalThreshold,
		Scorer:                  "token_sort",
		Workers:                 runtime.NumCPU(),
	}
}

// CandidateExportOptions параметры для выгрузки кандидатов на ручную проверку
func CandidateExportOptions() Options {
	opts := DefaultOptions()
	opts.TopMCanonicalTokens = 5
	return opts
}

// Validate проверяет параметры и возвращает первую ConfigurationError
func (o Options) Validate() error {
	switch {
	case o.MaxEditDistance < 0:
		return &ConfigurationError{Parameter: "max_edit_distance", Value: o.MaxEditDistance, Reason: "must be >= 0"}
	case o.MinRepresentativeLength < 1:
		return &ConfigurationError{Parameter: "min_representative_length", Value: o.MinRepresentativeLength, Reason: "must be >= 1"}
	case o.TopMCanonicalTokens <= 0:
		return &ConfigurationError{Parameter: "top_m_canonical_tokens", Value: o.TopMCanonicalTokens, Reason: "must be > 0"}
	case o.TopKRankedAliases <= 0:
		return &ConfigurationError{Parameter: "top_k_ranked_aliases", Value: o.TopKRankedAliases, Reason: "must be > 0"}
	case o.AutoApprovalThreshold < 0 || o.AutoApprovalThreshold > 100:
		return &ConfigurationError{Parameter: "auto_approval_score_threshold", Value: o.AutoApprovalThreshold, Reason: "must be within [0, 100]"}
	case o.Workers < 0:
		return &ConfigurationError{Parameter: "workers", Value: o.Workers, Reason: "must be >= 0"}
	}
	if _, ok := algorithms.ScorerByName(o.Scorer); !ok {
		return &ConfigurationError{Parameter: "scorer", Value: o.Scorer, Reason: "unknown scorer"}
	}
	return nil
}

// EngineOption функциональная опция CurationEngine
type EngineOption func(*CurationEngine)

// WithLogger задает логгер движка
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *CurationEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNormalizer задает нормализатор для типа сущности
func WithNormalizer(kind EntityKind, n Normalizer) EngineOption {
	return func(e *CurationEngine) {
		if n != nil {
			e.normalizers[kind] = n
		}
	}
}

// CurationEngine конвейер курирования одной сущности:
// нормализация, схлопывание опечаток, выбор канонических токенов, ранжирование, решение.
// Не хранит изменяемого состояния между вызовами Curate.
type CurationEngine struct {
	opts        Options
	normalizers map[EntityKind]Normalizer
	collapser   *TypoCollapser
	selector    *CanonicalTokenSelector
	ranker      *AliasRanker
	decision    *DecisionEngine
	logger      *slog.Logger
}

// NewCurationEngine проверяет параметры и собирает конвейер
func NewCurationEngine(opts Options, options ...EngineOption) (*CurationEngine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	scorer, _ := algorithms.ScorerByName(opts.Scorer)

	e := &CurationEngine{
		opts: opts,
		normalizers: map[EntityKind]Normalizer{
			EntityKindSKU:    algorithms.NewTextNormalizer(algorithms.SKUProfile()),
			EntityKindVendor: algorithms.NewTextNormalizer(algorithms.VendorProfile()),
		},
		collapser: NewTypoCollapser(opts.MaxEditDistance, opts.MinRepresentativeLength),
		selector:  NewCanonicalTokenSelector(opts.TopMCanonicalTokens),
		ranker:    NewAliasRanker(scorer, opts.TopKRankedAliases),
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	e.decision = NewDecisionEngine(opts.AutoApprovalThreshold, opts.TopKRankedAliases, e.logger)

	return e, nil
}

// Options возвращает параметры движка
func (e *CurationEngine) Options() Options {
	return e.opts
}

// Explanation промежуточные результаты всех стадий для одной сущности
type Explanation struct {
	Group             EntityGroup         `json:"group"`
	TokenFrequencies  TokenFrequencyTable `json:"token_frequencies"`
	RepresentativeMap RepresentativeMap   `json:"representative_map"`
	CanonicalTokens   []string            `json:"canonical_tokens"`
	Ranked            []RankedAlias       `json:"ranked"`
	Record            *CurationRecord     `json:"record"`
}

// Curate строит CurationRecord для одной сущности
func (e *CurationEngine) Curate(group EntityGroup) (*CurationRecord, error) {
	explanation, err := e.Explain(group)
	if err != nil {
		return nil, err
	}
	return explanation.Record, nil
}

// Explain выполняет конвейер и возвращает результаты каждой стадии
func (e *CurationEngine) Explain(group EntityGroup) (*Explanation, error) {
	prepared, err := prepareGroup(group)
	if err != nil {
		return nil, err
	}

	normalizer, err := e.normalizerFor(prepared)
	if err != nil {
		return nil, err
	}

	observations := prepared.Observations
	tokens := make([][]string, len(observations))
	vocabulary := make([][]string, len(observations))
	for i, obs := range observations {
		tokens[i] = normalizer.Normalize(obs.RawText)
		vocabulary[i] = normalizer.VocabularyTokens(obs.RawText)
	}

	frequencies := BuildTokenFrequencies(observations, vocabulary)
	representatives := e.collapser.Collapse(frequencies)

	mappedVocabulary := make([][]string, len(vocabulary))
	for i, v := range vocabulary {
		mappedVocabulary[i] = representatives.MapTokens(v)
	}
	canonical := e.selector.Select(observations, mappedVocabulary)

	inputs := make([]RankInput, len(observations))
	for i, obs := range observations {
		inputs[i] = RankInput{
			Observation:   obs,
			Tokens:        tokens[i],
			Canonicalized: representatives.MapTokens(tokens[i]),
		}
	}
	ranked := e.ranker.Rank(inputs, canonical)

	record, err := e.decision.Decide(prepared.EntityID, ranked)
	if err != nil {
		return nil, err
	}
	record.Kind = prepared.Kind
	record.CanonicalTokens = canonical
	record.RawAliases = make([]string, len(observations))
	for i, obs := range observations {
		record.RawAliases[i] = obs.RawText
		record.TotalOccurrences += obs.OccurrenceCount
	}

	return &Explanation{
		Group:             prepared,
		TokenFrequencies:  frequencies,
		RepresentativeMap: representatives,
		CanonicalTokens:   canonical,
		Ranked:            ranked,
		Record:            record,
	}, nil
}

func (e *CurationEngine) normalizerFor(group EntityGroup) (Normalizer, error) {
	kind := group.Kind
	if kind == "" {
		kind = EntityKindSKU
	}
	n, ok := e.normalizers[kind]
	if !ok {
		return nil, &InputShapeError{EntityID: group.EntityID, Reason: fmt.Sprintf("unknown entity kind %q", group.Kind)}
	}
	return n, nil
}

// prepareGroup проверяет наблюдения, объединяет повторы и упорядочивает их детерминированно:
// по убыванию числа вхождений, затем по тексту.
func prepareGroup(group EntityGroup) (EntityGroup, error) {
	if strings.TrimSpace(group.EntityID) == "" {
		return EntityGroup{}, &InputShapeError{EntityID: group.EntityID, Reason: "entity_id is empty"}
	}
	if group.Kind == "" {
		group.Kind = EntityKindSKU
	}

	counts := make(map[string]int, len(group.Observations))
	for _, obs := range group.Observations {
		if obs.OccurrenceCount < 1 {
			return EntityGroup{}, &InputShapeError{
				EntityID: group.EntityID,
				Reason:   fmt.Sprintf("occurrence_count %d for %q must be >= 1", obs.OccurrenceCount, obs.RawText),
			}
		}
		text := strings.TrimSpace(obs.RawText)
		if text == "" {
			continue
		}
		counts[text] += obs.OccurrenceCount
	}

	if len(counts) == 0 {
		return EntityGroup{}, &InputShapeError{EntityID: group.EntityID, Reason: "entity has no observations"}
	}

	observations := make([]AliasObservation, 0, len(counts))
	for text, count := range counts {
		observations = append(observations, AliasObservation{RawText: text, OccurrenceCount: count})
	}
	slices.SortFunc(observations, func(a, b AliasObservation) int {
		if c := cmp.Compare(b.OccurrenceCount, a.OccurrenceCount); c != 0 {
			return c
		}
		return cmp.Compare(a.RawText, b.RawText)
	})

	return EntityGroup{EntityID: group.EntityID, Kind: group.Kind, Observations: observations}, nil
}
