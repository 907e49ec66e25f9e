package normalization

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// SeedSource происхождение строки справочника
type SeedSource string

const (
	SeedSourceApproved SeedSource = "approved_seed"
	SeedSourceAuto     SeedSource = "auto_ref"
)

// priority утвержденные человеком имена важнее автоматических
func (s SeedSource) priority() int {
	switch s {
	case SeedSourceApproved:
		return 2
	case SeedSourceAuto:
		return 1
	default:
		return 0
	}
}

// SeedColumns колонки CSV справочника
var SeedColumns = []string{"entity_id", "canonical_name", "source", "effective_from", "version"}

// ErrSeedValidation строка справочника не прошла проверку
var ErrSeedValidation = errors.New("seed validation failed")

var seedVersionRegex = regexp.MustCompile(`^v(\d+)(?:\.(\d+))?$`)

// SeedRow строка справочника канонических имен
type SeedRow struct {
	EntityID      string     `json:"entity_id"`
	CanonicalName string     `json:"canonical_name"`
	Source        SeedSource `json:"source"`
	EffectiveFrom string     `json:"effective_from"`
	Version       string     `json:"version"`
}

// ReviewedRow строка выгрузки после ручной проверки
type ReviewedRow struct {
	EntityID  string
	FinalName string
	Decision  string
}

var (
	entityIDHeaders  = []string{"entity_id", "sku_id", "vendor_id"}
	finalNameHeaders = []string{"final_canonical_name", "final_sku_name", "final_vendor_name", "final_name"}
)

// ReadReviewedCSV читает проверенную выгрузку. Заголовки нечувствительны к регистру,
// пробелы в них приравниваются к подчеркиваниям.
func ReadReviewedCSV(r io.Reader) ([]ReviewedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := headerIndex(header)

	idCol := firstColumn(columns, entityIDHeaders)
	nameCol := firstColumn(columns, finalNameHeaders)
	decisionCol, hasDecision := columns["decision"]

	var missing []string
	if idCol < 0 {
		missing = append(missing, "entity_id")
	}
	if nameCol < 0 {
		missing = append(missing, "final_canonical_name")
	}
	if !hasDecision {
		missing = append(missing, "decision")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("reviewed CSV missing columns: %s", strings.Join(missing, ", "))
	}

	var rows []ReviewedRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		rows = append(rows, ReviewedRow{
			EntityID:  field(record, idCol),
			FinalName: field(record, nameCol),
			Decision:  strings.ToUpper(field(record, decisionCol)),
		})
	}
	return rows, nil
}

// ReviewedFromRecords превращает записи курирования в строки для справочника
func ReviewedFromRecords(records []*CurationRecord) []ReviewedRow {
	rows := make([]ReviewedRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, ReviewedRow{
			EntityID:  record.EntityID,
			FinalName: record.FinalName(),
			Decision:  string(record.Decision),
		})
	}
	return rows
}

// BuildSeedRows оставляет строки APPROVED и AUTO и проверяет их.
// NEED_APPROVAL и прочие решения пропускаются.
func BuildSeedRows(reviewed []ReviewedRow, effectiveFrom, version string) ([]SeedRow, error) {
	var rows []SeedRow
	var emptyIDs, emptyNames int

	for _, r := range reviewed {
		decision, ok := ParseDecision(r.Decision)
		if !ok || decision == DecisionNeedApproval {
			continue
		}

		source := SeedSourceAuto
		if decision == DecisionApproved {
			source = SeedSourceApproved
		}

		id := strings.TrimSpace(r.EntityID)
		name := strings.TrimSpace(r.FinalName)
		if id == "" {
			emptyIDs++
			continue
		}
		if name == "" {
			emptyNames++
			continue
		}

		rows = append(rows, SeedRow{
			EntityID:      id,
			CanonicalName: name,
			Source:        source,
			EffectiveFrom: effectiveFrom,
			Version:       version,
		})
	}

	if emptyIDs > 0 {
		return nil, fmt.Errorf("%w: %d rows with empty entity_id", ErrSeedValidation, emptyIDs)
	}
	if emptyNames > 0 {
		return nil, fmt.Errorf("%w: %d rows with empty canonical_name", ErrSeedValidation, emptyNames)
	}
	return rows, nil
}

// MergeSeed объединяет справочник с новыми строками.
// Новая строка заменяет существующую, если ее источник не ниже по приоритету;
// утвержденное имя не перезаписывается автоматическим. Результат отсортирован по entity_id.
func MergeSeed(existing, incoming []SeedRow) []SeedRow {
	byID := make(map[string]SeedRow, len(existing)+len(incoming))
	for _, row := range existing {
		byID[row.EntityID] = row
	}
	for _, row := range incoming {
		old, found := byID[row.EntityID]
		if !found || row.Source.priority() >= old.Source.priority() {
			byID[row.EntityID] = row
		}
	}

	merged := make([]SeedRow, 0, len(byID))
	for _, row := range byID {
		merged = append(merged, row)
	}
	slices.SortFunc(merged, func(a, b SeedRow) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	return merged
}

// ParseSeedVersion разбирает "vX" или "vX.Y"; неизвестный формат дает (0, 0)
func ParseSeedVersion(v string) (major, minor int) {
	m := seedVersionRegex.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, 0
	}
	major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	return major, minor
}

// NextSeedVersion увеличивает младшую часть максимальной версии справочника.
// Для пустого справочника возвращает v0.1.
func NextSeedVersion(existing []SeedRow) string {
	if len(existing) == 0 {
		return "v0.1"
	}
	bestMajor, bestMinor := 0, 0
	for _, row := range existing {
		major, minor := ParseSeedVersion(row.Version)
		if major > bestMajor || (major == bestMajor && minor > bestMinor) {
			bestMajor, bestMinor = major, minor
		}
	}
	return fmt.Sprintf("v%d.%d", bestMajor, bestMinor+1)
}

// ReadSeedCSV читает справочник; колонка sku_id принимается как entity_id
func ReadSeedCSV(r io.Reader) ([]SeedRow, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []SeedRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed header: %w", err)
	}
	columns := headerIndex(header)
	idCol := firstColumn(columns, entityIDHeaders)

	var missing []string
	if idCol < 0 {
		missing = append(missing, "entity_id")
	}
	for _, col := range SeedColumns[1:] {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("existing seed missing columns: %s", strings.Join(missing, ", "))
	}

	rows := []SeedRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read seed row: %w", err)
		}
		rows = append(rows, SeedRow{
			EntityID:      field(record, idCol),
			CanonicalName: field(record, columns["canonical_name"]),
			Source:        SeedSource(field(record, columns["source"])),
			EffectiveFrom: field(record, columns["effective_from"]),
			Version:       field(record, columns["version"]),
		})
	}
	return rows, nil
}

// WriteSeedCSV пишет справочник в CSV в порядке строк
func WriteSeedCSV(w io.Writer, rows []SeedRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(SeedColumns); err != nil {
		return fmt.Errorf("failed to write seed header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.EntityID, row.CanonicalName, string(row.Source), row.EffectiveFrom, row.Version}); err != nil {
			return fmt.Errorf("failed to write seed row %s: %w", row.EntityID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveSeedFile записывает справочник в файл, создавая каталог
func SaveSeedFile(path string, rows []SeedRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create seed dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create seed file: %w", err)
	}
	if err := WriteSeedCSV(file, rows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadSeedFile читает справочник; отсутствующий файл означает пустой справочник
func LoadSeedFile(path string) ([]SeedRow, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []SeedRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()
	return ReadSeedCSV(file)
}

func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.Join(strings.Fields(strings.ToLower(strings.TrimPrefix(h, "\ufeff"))), "_")
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func firstColumn(columns map[string]int, names []string) int {
	for _, name := range names {
		if idx, ok := columns[name]; ok {
			return idx
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
