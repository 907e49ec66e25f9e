package normalization

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchResult результат пакетного курирования.
// Ошибка одной сущности не прерывает обработку остальных и попадает в Failures.
type BatchResult struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Records    []*CurationRecord `json:"records"`
	Failures   []EntityFailure   `json:"failures"`
	// Skipped сущности, не отправленные в обработку из-за отмены контекста
	Skipped int `json:"skipped"`
}

// Duration длительность прогона
func (r *BatchResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BatchProcessor параллельно применяет CurationEngine к набору сущностей
type BatchProcessor struct {
	engine  *CurationEngine
	workers int
	logger  *slog.Logger
}

// NewBatchProcessor создает обработчик; workers <= 0 означает runtime.NumCPU()
func NewBatchProcessor(engine *CurationEngine, workers int, logger *slog.Logger) *BatchProcessor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{engine: engine, workers: workers, logger: logger}
}

// Process обрабатывает сущности с ограничением параллелизма.
// Отмена ctx останавливает отправку новых сущностей; уже запущенные доводятся до конца,
// а возвращаемая ошибка равна ctx.Err(). Записи и ошибки упорядочены по entity_id.
func (p *BatchProcessor) Process(ctx context.Context, groups []EntityGroup) (*BatchResult, error) {
	result := &BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	p.logger.Info("curation batch started",
		"run_id", result.RunID,
		"entities", len(groups),
		"workers", p.workers,
	)

	records := make([]*CurationRecord, len(groups))
	failures := make([]*EntityFailure, len(groups))
	seen := make(map[string]struct{}, len(groups))

	var g errgroup.Group
	g.SetLimit(p.workers)

	submitted := 0
	for i, group := range groups {
		if ctx.Err() != nil {
			break
		}
		submitted++

		if _, dup := seen[group.EntityID]; dup {
			failure := newEntityFailure(group.EntityID, &InputShapeError{EntityID: group.EntityID, Reason: "duplicate entity_id in batch"})
			failures[i] = &failure
			continue
		}
		seen[group.EntityID] = struct{}{}

		g.Go(func() error {
			record, err := p.curateSafe(group)
			if err != nil {
				failure := newEntityFailure(group.EntityID, err)
				failures[i] = &failure
				return nil
			}
			records[i] = record
			return nil
		})
	}
	_ = g.Wait()

	for i := range groups {
		if records[i] != nil {
			result.Records = append(result.Records, records[i])
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
			p.logger.Warn("entity curation failed",
				"run_id", result.RunID,
				"entity_id", failures[i].EntityID,
				"error", failures[i].Message,
			)
		}
	}
	slices.SortFunc(result.Records, func(a, b *CurationRecord) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	slices.SortStableFunc(result.Failures, func(a, b EntityFailure) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	result.Skipped = len(groups) - submitted
	result.FinishedAt = time.Now().UTC()

	p.logger.Info("curation batch finished",
		"run_id", result.RunID,
		"records", len(result.Records),
		"failures", len(result.Failures),
		"skipped", result.Skipped,
		"duration", result.Duration().String(),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("curation batch %s interrupted: %w", result.RunID, err)
	}
	return result, nil
}

// curateSafe изолирует панику в обработке одной сущности
func (p *BatchProcessor) curateSafe(group EntityGroup) (record *CurationRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while curating entity %q: %v", group.EntityID, r)
		}
	}()
	return p.engine.Curate(group)
}
