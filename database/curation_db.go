package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"orderly/normalization"
)

// ErrRecordNotFound запись курирования не найдена
var ErrRecordNotFound = errors.New("curation record not found")

// DBConfig конфигурация пула соединений
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retry           RetryConfig
}

// CurationDB хранилище строк заказов, записей курирования и справочника имен
type CurationDB struct {
	conn  *sql.DB
	retry RetryConfig
}

// NewCurationDB открывает базу SQLite и применяет миграции
func NewCurationDB(dbPath string) (*CurationDB, error) {
	config := DBConfig{Retry: DefaultRetryConfig()}

	// Для in-memory SQLite каждое новое соединение получает пустую БД
	if isInMemory(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	return NewCurationDBWithConfig(dbPath, config)
}

func isInMemory(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}
	return strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory")
}

// NewCurationDBWithConfig открывает базу с явной конфигурацией пула
func NewCurationDBWithConfig(dbPath string, config DBConfig) (*CurationDB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open curation database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		// SQLite плохо справляется с большим количеством одновременных соединений
		conn.SetMaxOpenConns(10)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(3)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryConfig()
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping curation database: %w", err)
	}

	// WAL позволяет читать записи во время пакетного сохранения
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("[CurationDB] Warning: Failed to enable WAL mode: %v", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Printf("[CurationDB] Warning: Failed to set busy timeout: %v", err)
	}

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize curation schema: %w", err)
	}

	return &CurationDB{conn: conn, retry: config.Retry}, nil
}

// Close закрывает подключение
func (db *CurationDB) Close() error {
	return db.conn.Close()
}

// Ping проверяет подключение к базе данных
func (db *CurationDB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// LineItem строка заказа со свободным текстом
type LineItem struct {
	OrderID  string                   `json:"order_id"`
	EntityID string                   `json:"entity_id"`
	Kind     normalization.EntityKind `json:"kind"`
	RawText  string                   `json:"raw_text"`
}

// InsertLineItems сохраняет строки заказов одной транзакцией
func (db *CurationDB) InsertLineItems(ctx context.Context, items []LineItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	err := withRetry(ctx, db.retry, "insert line items", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO line_items(order_id, entity_id, kind, raw_text) VALUES(?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			kind := item.Kind
			if kind == "" {
				kind = normalization.EntityKindSKU
			}
			if _, err := stmt.ExecContext(ctx, item.OrderID, item.EntityID, string(kind), item.RawText); err != nil {
				return fmt.Errorf("failed to insert line item for %s: %w", item.EntityID, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// LoadEntityGroups агрегирует строки заказов в группы: entity_id + текст с числом вхождений.
// Курсор закрывается на всех путях выхода.
func (db *CurationDB) LoadEntityGroups(ctx context.Context, kind normalization.EntityKind) ([]normalization.EntityGroup, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT entity_id, TRIM(raw_text) AS text, COUNT(*) AS cnt
		FROM line_items
		WHERE kind = ? AND TRIM(raw_text) <> ''
		GROUP BY entity_id, TRIM(raw_text)
		ORDER BY entity_id, cnt DESC, text
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query entity groups: %w", err)
	}
	defer rows.Close()

	var groups []normalization.EntityGroup
	for rows.Next() {
		var entityID, text string
		var count int
		if err := rows.Scan(&entityID, &text, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity group row: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].EntityID != entityID {
			groups = append(groups, normalization.EntityGroup{EntityID: entityID, Kind: kind})
		}
		last := &groups[len(groups)-1]
		last.Observations = append(last.Observations, normalization.AliasObservation{RawText: text, OccurrenceCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity groups: %w", err)
	}
	return groups, nil
}

// SaveCurationRecords сохраняет записи прогона.
// Записи, уже утвержденные человеком, повторным прогоном не перезаписываются.
func (db *CurationDB) SaveCurationRecords(ctx context.Context, runID string, records []*normalization.CurationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var saved int
	err := withRetry(ctx, db.retry, "save curation records", func() error {
		saved = 0
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO curation_records(
				entity_id, kind, run_id, raw_aliases, best_match_text, match_score, runner_up_score,
				final_canonical_name, decision, canonical_tokens, alternative_names, ranked_aliases,
				total_occurrences, updated_at
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_id) DO UPDATE SET
				kind = excluded.kind,
				run_id = excluded.run_id,
				raw_aliases = excluded.raw_aliases,
				best_match_text = excluded.best_match_text,
				match_score = excluded.match_score,
				runner_up_score = excluded.runner_up_score,
				final_canonical_name = excluded.final_canonical_name,
				decision = excluded.decision,
				canonical_tokens = excluded.canonical_tokens,
				alternative_names = excluded.alternative_names,
				ranked_aliases = excluded.ranked_aliases,
				total_occurrences = excluded.total_occurrences,
				updated_at = excluded.updated_at
			WHERE curation_records.decision <> 'APPROVED'
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339)
		for _, record := range records {
			args, err := recordArgs(record)
			if err != nil {
				return err
			}
			args = append([]any{record.EntityID, string(record.Kind), runID}, args...)
			args = append(args, record.TotalOccurrences, now)

			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("failed to save record %s: %w", record.EntityID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				saved++
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// recordArgs сериализует поля записи от raw_aliases до ranked_aliases
func recordArgs(record *normalization.CurationRecord) ([]any, error) {
	rawAliases, err := marshalList(record.RawAliases)
	if err != nil {
		return nil, err
	}
	canonical, err := marshalList(record.CanonicalTokens)
	if err != nil {
		return nil, err
	}
	alternatives, err := marshalList(record.AlternativeNames)
	if err != nil {
		return nil, err
	}
	ranked, err := json.Marshal(record.RankedAliases)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ranked aliases: %w", err)
	}

	var finalName sql.NullString
	if record.FinalCanonicalName != nil {
		finalName = sql.NullString{String: *record.FinalCanonicalName, Valid: true}
	}

	return []any{
		rawAliases, record.BestMatchText, record.MatchScore, record.RunnerUpScore,
		finalName, string(record.Decision), canonical, alternatives, string(ranked),
	}, nil
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(data), nil
}

// RecordFilter фильтр выборки записей
type RecordFilter struct {
	Kind     normalization.EntityKind
	Decision normalization.Decision
	Limit    int
	Offset   int
}

const recordColumns = `entity_id, kind, raw_aliases, best_match_text, match_score, runner_up_score,
	final_canonical_name, decision, canonical_tokens, alternative_names, ranked_aliases,
	total_occurrences, reviewed_by, reviewed_at`

// ListCurationRecords возвращает записи по фильтру, упорядоченные по entity_id
func (db *CurationDB) ListCurationRecords(ctx context.Context, filter RecordFilter) ([]*normalization.CurationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM curation_records`
	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, string(filter.Decision))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY entity_id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query curation records: %w", err)
	}
	defer rows.Close()

	records := []*normalization.CurationRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate curation records: %w", err)
	}
	return records, nil
}

// GetCurationRecord возвращает запись по entity_id
func (db *CurationDB) GetCurationRecord(ctx context.Context, entityID string) (*normalization.CurationRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM curation_records WHERE entity_id = ?`, entityID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, entityID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ApproveCurationRecord утверждает запись. Пустое finalName означает
// уже выбранное системой имя, а при его отсутствии исходный текст лидера ранжирования.
func (db *CurationDB) ApproveCurationRecord(ctx context.Context, entityID, finalName, reviewer string) (*normalization.CurationRecord, error) {
	record, err := db.GetCurationRecord(ctx, entityID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(finalName)
	if name == "" {
		name = record.FinalName()
	}
	if name == "" && len(record.RankedAliases) > 0 {
		name = record.RankedAliases[0].Text
	}
	if name == "" {
		return nil, fmt.Errorf("cannot approve %s: final canonical name is empty: %w", entityID, normalization.ErrInputShape)
	}

	reviewedAt := time.Now().UTC()
	err = withRetry(ctx, db.retry, "approve curation record", func() error {
		_, err := db.conn.ExecContext(ctx, `
			UPDATE curation_records
			SET final_canonical_name = ?, decision = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
			WHERE entity_id = ?
		`, name, string(normalization.DecisionApproved), reviewer, reviewedAt.Format(time.RFC3339), reviewedAt.Format(time.RFC3339), entityID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve record %s: %w", entityID, err)
	}

	record.FinalCanonicalName = &name
	record.Decision = normalization.DecisionApproved
	record.ReviewedBy = reviewer
	record.ReviewedAt = &reviewedAt
	return record, nil
}

// CountByDecision число записей по каждому решению, пустой kind означает все виды
func (db *CurationDB) CountByDecision(ctx context.Context, kind normalization.EntityKind) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT decision, COUNT(*) FROM curation_records WHERE (? = '' OR kind = ?) GROUP BY decision`,
		string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		counts[decision] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*normalization.CurationRecord, error) {
	var (
		record                                          normalization.CurationRecord
		kind, decision                                  string
		rawAliases, canonical, alternatives, rankedJSON string
		finalName, reviewedAt                           sql.NullString
	)
	err := row.Scan(
		&record.EntityID, &kind, &rawAliases, &record.BestMatchText, &record.MatchScore, &record.RunnerUpScore,
		&finalName, &decision, &canonical, &alternatives, &rankedJSON,
		&record.TotalOccurrences, &record.ReviewedBy, &reviewedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan curation record: %w", err)
	}

	record.Kind = normalization.EntityKind(kind)
	record.Decision = normalization.Decision(decision)
	if finalName.Valid {
		name := finalName.String
		record.FinalCanonicalName = &name
	}
	if ts := parseTimestamp(reviewedAt.String); reviewedAt.Valid && !ts.IsZero() {
		record.ReviewedAt = &ts
	}

	for _, field := range []struct {
		raw  string
		dest any
	}{
		{rawAliases, &record.RawAliases},
		{canonical, &record.CanonicalTokens},
		{alternatives, &record.AlternativeNames},
		{rankedJSON, &record.RankedAliases},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dest); err != nil {
			return nil, fmt.Errorf("failed to decode stored record %s: %w", record.EntityID, err)
		}
	}
	return &record, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
