package normalization

import (
	"fmt"
	"strings"
)

// ConfusionMatrix матрица ошибок маршрутизации.
// Положительный класс - решение AUTO.
type ConfusionMatrix struct {
	TruePositive  int `json:"true_positive"`  // AUTO с верным именем
	TrueNegative  int `json:"true_negative"`  // отправлено на проверку, лидер неверен
	FalsePositive int `json:"false_positive"` // AUTO с неверным именем
	FalseNegative int `json:"false_negative"` // отправлено на проверку, хотя лидер верен
}

// MetricsResult содержит все вычисленные метрики
type MetricsResult struct {
	ConfusionMatrix   ConfusionMatrix `json:"confusion_matrix"`
	Precision         float64         `json:"precision"`
	Recall            float64         `json:"recall"`
	F1Score           float64         `json:"f1_score"`
	Accuracy          float64         `json:"accuracy"`
	FalsePositiveRate float64         `json:"false_positive_rate"`
	// Evaluated сущности, для которых нашлось эталонное имя
	Evaluated int `json:"evaluated"`
	// Unmatched сущности без эталона
	Unmatched int `json:"unmatched"`
}

// CalculateMetrics вычисляет метрики на основе матрицы ошибок
func CalculateMetrics(matrix ConfusionMatrix) MetricsResult {
	result := MetricsResult{ConfusionMatrix: matrix}

	tp := float64(matrix.TruePositive)
	fp := float64(matrix.FalsePositive)
	fn := float64(matrix.FalseNegative)
	tn := float64(matrix.TrueNegative)

	// Precision: TP / (TP + FP)
	if tp+fp > 0 {
		result.Precision = tp / (tp + fp)
	}
	// Recall: TP / (TP + FN)
	if tp+fn > 0 {
		result.Recall = tp / (tp + fn)
	}
	if result.Precision+result.Recall > 0 {
		result.F1Score = 2 * (result.Precision * result.Recall) / (result.Precision + result.Recall)
	}
	if total := tp + tn + fp + fn; total > 0 {
		result.Accuracy = (tp + tn) / total
	}
	if fp+tn > 0 {
		result.FalsePositiveRate = fp / (fp + tn)
	}
	return result
}

// String возвращает строковое представление метрик
func (mr MetricsResult) String() string {
	return fmt.Sprintf(
		"Precision: %.4f, Recall: %.4f, F1: %.4f, Accuracy: %.4f, FPR: %.4f\n"+
			"TP: %d, TN: %d, FP: %d, FN: %d, evaluated: %d, unmatched: %d",
		mr.Precision, mr.Recall, mr.F1Score, mr.Accuracy, mr.FalsePositiveRate,
		mr.ConfusionMatrix.TruePositive, mr.ConfusionMatrix.TrueNegative,
		mr.ConfusionMatrix.FalsePositive, mr.ConfusionMatrix.FalseNegative,
		mr.Evaluated, mr.Unmatched,
	)
}

// ThresholdMetrics метрики при одном пороге автоутверждения
type ThresholdMetrics struct {
	Threshold float64       `json:"threshold"`
	Metrics   MetricsResult `json:"metrics"`
}

// Evaluator сравнивает записи курирования с эталонным справочником
type Evaluator struct {
	reference map[string]string
}

// NewEvaluator строит оценщик по строкам справочника
func NewEvaluator(reference []SeedRow) *Evaluator {
	byID := make(map[string]string, len(reference))
	for _, row := range reference {
		byID[row.EntityID] = row.CanonicalName
	}
	return &Evaluator{reference: byID}
}

// Evaluate оценивает решения, уже записанные в записях.
// APPROVED считается положительным решением наравне с AUTO.
func (e *Evaluator) Evaluate(records []*CurationRecord) MetricsResult {
	return e.evaluate(records, func(r *CurationRecord) bool {
		return r.Decision == DecisionAuto || r.Decision == DecisionApproved
	})
}

// EvaluateWithThresholds пересчитывает решение для каждого порога по сохраненным оценкам:
// AUTO, если лидер строго выше второго места и строго выше порога
func (e *Evaluator) EvaluateWithThresholds(records []*CurationRecord, thresholds []float64) []ThresholdMetrics {
	results := make([]ThresholdMetrics, 0, len(thresholds))
	for _, threshold := range thresholds {
		metrics := e.evaluate(records, func(r *CurationRecord) bool {
			return r.MatchScore > r.RunnerUpScore && r.MatchScore > threshold
		})
		results = append(results, ThresholdMetrics{Threshold: threshold, Metrics: metrics})
	}
	return results
}

func (e *Evaluator) evaluate(records []*CurationRecord, positive func(*CurationRecord) bool) MetricsResult {
	var matrix ConfusionMatrix
	evaluated, unmatched := 0, 0

	for _, record := range records {
		want, ok := e.reference[record.EntityID]
		if !ok || len(record.RankedAliases) == 0 {
			unmatched++
			continue
		}
		evaluated++

		// Для AUTO сравнивается итоговое имя, для остальных кандидат с первого места
		candidate := record.RankedAliases[0].Text
		if record.Decision != DecisionNeedApproval && record.FinalName() != "" {
			candidate = record.FinalName()
		}
		correct := sameName(candidate, want)

		switch auto := positive(record); {
		case auto && correct:
			matrix.TruePositive++
		case auto:
			matrix.FalsePositive++
		case correct:
			matrix.FalseNegative++
		default:
			matrix.TrueNegative++
		}
	}

	result := CalculateMetrics(matrix)
	result.Evaluated = evaluated
	result.Unmatched = unmatched
	return result
}

// sameName сравнение без учета регистра и лишних пробелов
func sameName(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}
