package normalization

import (
	"log/slog"
)

// DefaultAutoApprovalThreshold минимальная оценка лидера для автоматического утверждения
const DefaultAutoApprovalThreshold = 80.0

// DecisionEngine движок принятия решений по ранжированному списку алиасов
type DecisionEngine struct {
	threshold float64
	topK      int
	logger    *slog.Logger
}

// NewDecisionEngine создает новый движок принятия решений
func NewDecisionEngine(threshold float64, topK int, logger *slog.Logger) *DecisionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionEngine{
		threshold: threshold,
		topK:      topK,
		logger:    logger,
	}
}

// Threshold возвращает порог автоматического утверждения
func (d *DecisionEngine) Threshold() float64 {
	return d.threshold
}

// Decide принимает решение по отсортированному списку алиасов.
// AUTO ставится только если лидер строго лучше второго места и строго выше порога;
// иначе итоговое имя не заполняется.
func (d *DecisionEngine) Decide(entityID string, ranked []RankedAlias) (*CurationRecord, error) {
	if len(ranked) == 0 {
		return nil, &InputShapeError{EntityID: entityID, Reason: "ranked alias list is empty"}
	}

	top := ranked[0]
	runnerUp := 0.0
	if len(ranked) > 1 {
		runnerUp = ranked[1].Score
	}

	shortlist := ranked
	if d.topK > 0 && len(shortlist) > d.topK {
		shortlist = shortlist[:d.topK]
	}

	record := &CurationRecord{
		EntityID:         entityID,
		BestMatchText:    top.CanonicalizedText,
		MatchScore:       top.Score,
		RunnerUpScore:    runnerUp,
		Decision:         DecisionNeedApproval,
		RankedAliases:    append([]RankedAlias(nil), shortlist...),
		AlternativeNames: alternativeNames(shortlist),
	}
	if record.BestMatchText == "" {
		record.BestMatchText = top.Text
	}

	if top.Score > runnerUp && top.Score > d.threshold {
		record.Decision = DecisionAuto
		record.FinalCanonicalName = stringPtr(top.Text)
	}

	d.logger.Debug("curation decision",
		"entity_id", entityID,
		"decision", record.Decision,
		"top_score", top.Score,
		"runner_up_score", runnerUp,
		"threshold", d.threshold,
	)

	return record, nil
}

// alternativeNames канонизированные тексты шорт-листа без повторов, в порядке ранга
func alternativeNames(shortlist []RankedAlias) []string {
	names := make([]string, 0, len(shortlist))
	seen := make(map[string]struct{}, len(shortlist))
	for _, alias := range shortlist {
		name := alias.CanonicalizedText
		if name == "" {
			name = alias.Text
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
