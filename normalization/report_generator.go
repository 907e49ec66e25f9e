package normalization

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// CurationReport отчет по пакетному прогону курирования
type CurationReport struct {
	GeneratedAt      string         `json:"generated_at"`
	RunID            string         `json:"run_id,omitempty"`
	TotalEntities    int            `json:"total_entities"`
	Decisions        map[string]int `json:"decisions"`
	Failures         int            `json:"failures"`
	AutoApprovalRate float64        `json:"auto_approval_rate"`
	// SingletonEntities сущности с одним вариантом написания, SingletonAuto из них получили AUTO
	SingletonEntities int          `json:"singleton_entities"`
	SingletonAuto     int          `json:"singleton_auto"`
	Scores            ScoreMetrics `json:"scores"`
	// NearThreshold сущности NEED_APPROVAL, которым не хватило до порога не более 5 пунктов
	NearThreshold int `json:"near_threshold"`
}

// ScoreMetrics распределение оценок лидера
type ScoreMetrics struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ReportGenerator генератор отчетов
type ReportGenerator struct {
	threshold float64
}

// NewReportGenerator создает генератор; порог нужен для подсчета пограничных сущностей
func NewReportGenerator(threshold float64) *ReportGenerator {
	return &ReportGenerator{threshold: threshold}
}

// Generate строит отчет по записям и ошибкам прогона
func (g *ReportGenerator) Generate(records []*CurationRecord, failures int) *CurationReport {
	report := &CurationReport{
		GeneratedAt:   time.Now().Format(time.RFC3339),
		TotalEntities: len(records) + failures,
		Decisions: map[string]int{
			string(DecisionAuto):         0,
			string(DecisionNeedApproval): 0,
			string(DecisionApproved):     0,
		},
		Failures: failures,
	}

	scores := make([]float64, 0, len(records))
	for _, record := range records {
		report.Decisions[string(record.Decision)]++
		scores = append(scores, record.MatchScore)

		if record.IsSingleton() {
			report.SingletonEntities++
			if record.Decision == DecisionAuto {
				report.SingletonAuto++
			}
		}
		if record.Decision == DecisionNeedApproval && record.MatchScore <= g.threshold && g.threshold-record.MatchScore <= 5 {
			report.NearThreshold++
		}
	}

	if len(records) > 0 {
		report.AutoApprovalRate = roundScore(float64(report.Decisions[string(DecisionAuto)]) / float64(len(records)) * 100)
	}
	report.Scores = scoreMetrics(scores)

	return report
}

// GenerateFromBatch строит отчет по результату BatchProcessor
func (g *ReportGenerator) GenerateFromBatch(result *BatchResult) *CurationReport {
	report := g.Generate(result.Records, len(result.Failures))
	report.RunID = result.RunID
	return report
}

// SaveToFile сохраняет отчет в JSON
func (g *ReportGenerator) SaveToFile(report *CurationReport, filename string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func scoreMetrics(scores []float64) ScoreMetrics {
	if len(scores) == 0 {
		return ScoreMetrics{}
	}

	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	metrics := ScoreMetrics{
		Mean:   roundScore(stat.Mean(sorted, nil)),
		Median: roundScore(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		P10:    roundScore(stat.Quantile(0.1, stat.Empirical, sorted, nil)),
		P90:    roundScore(stat.Quantile(0.9, stat.Empirical, sorted, nil)),
		Min:    roundScore(sorted[0]),
		Max:    roundScore(sorted[len(sorted)-1]),
	}
	if len(sorted) > 1 {
		metrics.StdDev = roundScore(stat.StdDev(sorted, nil))
	}
	return metrics
}
