package normalization

import (
	"strings"
	"time"
)

// EntityKind тип курируемой сущности
type EntityKind string

const (
	EntityKindSKU    EntityKind = "sku"
	EntityKindVendor EntityKind = "vendor"
)

// Valid проверяет, что тип сущности известен
func (k EntityKind) Valid() bool {
	return k == EntityKindSKU || k == EntityKindVendor
}

// Decision решение по маршрутизации записи
type Decision string

const (
	// DecisionAuto запись утверждена автоматически
	DecisionAuto Decision = "AUTO"
	// DecisionNeedApproval требуется ручная проверка
	DecisionNeedApproval Decision = "NEED_APPROVAL"
	// DecisionApproved запись проверена и утверждена человеком
	DecisionApproved Decision = "APPROVED"
)

// ParseDecision разбирает решение из строки выгрузки или API
func ParseDecision(s string) (Decision, bool) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionAuto:
		return DecisionAuto, true
	case DecisionNeedApproval:
		return DecisionNeedApproval, true
	case DecisionApproved:
		return DecisionApproved, true
	default:
		return "", false
	}
}

// RawAliasDelimiter разделитель алиасов в сериализованном поле raw_aliases
const RawAliasDelimiter = " | "

// AliasObservation вариант написания сущности и число его вхождений
type AliasObservation struct {
	RawText         string `json:"raw_text"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// EntityGroup все наблюдаемые варианты написания одной сущности
type EntityGroup struct {
	EntityID     string             `json:"entity_id"`
	Kind         EntityKind         `json:"kind,omitempty"`
	Observations []AliasObservation `json:"observations"`
}

// TokenStats статистика токена внутри одной сущности
type TokenStats struct {
	// PresenceCount число различных алиасов, содержащих токен
	PresenceCount int
	// Weight сумма occurrence_count по алиасам, содержащим токен
	Weight int
}

// TokenFrequencyTable частоты токенов одной сущности
type TokenFrequencyTable map[string]TokenStats

// RepresentativeMap отображение токена на представителя кластера опечаток
type RepresentativeMap map[string]string

// Lookup возвращает представителя, неизвестный токен отображается сам на себя
func (m RepresentativeMap) Lookup(token string) string {
	if rep, ok := m[token]; ok {
		return rep
	}
	return token
}

// MapTokens применяет отображение к последовательности токенов
func (m RepresentativeMap) MapTokens(tokens []string) []string {
	mapped := make([]string, len(tokens))
	for i, token := range tokens {
		mapped[i] = m.Lookup(token)
	}
	return mapped
}

// RankedAlias алиас с оценкой схожести с каноническими токенами
type RankedAlias struct {
	Text              string  `json:"text"`
	CanonicalizedText string  `json:"canonicalized_text"`
	Score             float64 `json:"score"`
	OccurrenceCount   int     `json:"occurrence_count"`
}

// CurationRecord итог курирования одной сущности
type CurationRecord struct {
	EntityID           string        `json:"entity_id"`
	Kind               EntityKind    `json:"kind,omitempty"`
	RawAliases         []string      `json:"raw_aliases"`
	BestMatchText      string        `json:"best_match_text"`
	MatchScore         float64       `json:"match_score"`
	RunnerUpScore      float64       `json:"runner_up_score"`
	FinalCanonicalName *string       `json:"final_canonical_name"`
	Decision           Decision      `json:"decision"`
	CanonicalTokens    []string      `json:"canonical_tokens"`
	AlternativeNames   []string      `json:"alternative_names"`
	RankedAliases      []RankedAlias `json:"ranked_aliases"`
	TotalOccurrences   int           `json:"total_occurrences"`
	ReviewedBy         string        `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time    `json:"reviewed_at,omitempty"`
}

// RawAliasesString сериализует список алиасов для табличной выгрузки
func (r *CurationRecord) RawAliasesString() string {
	return JoinAliases(r.RawAliases)
}

// aliasEscaper экранирует обратную косую черту и вертикальную черту,
// чтобы алиас с " | " внутри не совпадал с разделителем
var aliasEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// JoinAliases склеивает алиасы через RawAliasDelimiter, экранируя символы разделителя
func JoinAliases(aliases []string) string {
	escaped := make([]string, len(aliases))
	for i, alias := range aliases {
		escaped[i] = aliasEscaper.Replace(alias)
	}
	return strings.Join(escaped, RawAliasDelimiter)
}

// FinalName возвращает итоговое имя или пустую строку
func (r *CurationRecord) FinalName() string {
	if r.FinalCanonicalName == nil {
		return ""
	}
	return *r.FinalCanonicalName
}

// IsSingleton сущность с единственным вариантом написания
func (r *CurationRecord) IsSingleton() bool {
	return len(r.RawAliases) == 1
}

func stringPtr(s string) *string {
	return &s
}
