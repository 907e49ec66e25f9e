package normalization

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat формат экспорта
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "xlsx"
)

// ParseExportFormat разбирает формат из флага командной строки
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// CurationColumns колонки табличной выгрузки
var CurationColumns = []string{
	"entity_id", "kind", "raw_aliases", "best_match_text", "match_score",
	"runner_up_score", "final_canonical_name", "decision", "alternative_names", "canonical_tokens",
}

// Exporter выгружает записи курирования в каталог с датированными именами файлов
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter создает новый экспортер
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// FileName имя файла выгрузки: <kind>_name_curation_YYYYMMDD.<ext>
func FileName(kind EntityKind, format ExportFormat, date time.Time) string {
	if kind == "" {
		kind = EntityKindSKU
	}
	return fmt.Sprintf("%s_name_curation_%s.%s", kind, date.Format("20060102"), format)
}

// Export записывает записи в файл указанного формата и возвращает путь к нему
func (e *Exporter) Export(kind EntityKind, format ExportFormat, records []*CurationRecord) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(e.dir, FileName(kind, format, e.now()))

	var err error
	switch format {
	case FormatCSV:
		err = e.ExportToCSV(path, records)
	case FormatJSON:
		err = e.ExportToJSON(path, records)
	case FormatExcel:
		err = e.ExportToExcel(path, records)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// ExportToJSON экспортирует данные в JSON
func (e *Exporter) ExportToJSON(filename string, records []*CurationRecord) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return WriteJSON(file, records, e.now())
}

// WriteJSON пишет выгрузку в JSON с метаданными, оценки округлены до двух знаков
func WriteJSON(w io.Writer, records []*CurationRecord, exportedAt time.Time) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	rounded := make([]*CurationRecord, len(records))
	for i, record := range records {
		rounded[i] = roundedRecord(record)
	}

	result := map[string]interface{}{
		"exported_at": exportedAt.Format(time.RFC3339),
		"total":       len(records),
		"records":     rounded,
	}

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportToCSV экспортирует данные в CSV
func (e *Exporter) ExportToCSV(filename string, records []*CurationRecord) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return WriteCSV(file, records)
}

// WriteCSV пишет записи в CSV, оценки округлены до двух знаков
func WriteCSV(w io.Writer, records []*CurationRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CurationColumns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(csvRow(record)); err != nil {
			return fmt.Errorf("failed to write record %s: %w", record.EntityID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func csvRow(record *CurationRecord) []string {
	return []string{
		record.EntityID,
		string(record.Kind),
		record.RawAliasesString(),
		record.BestMatchText,
		formatScore(record.MatchScore),
		formatScore(record.RunnerUpScore),
		record.FinalName(),
		string(record.Decision),
		JoinAliases(record.AlternativeNames),
		strings.Join(record.CanonicalTokens, " "),
	}
}

// ExportToExcel экспортирует данные в Excel
func (e *Exporter) ExportToExcel(filename string, records []*CurationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Curation"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	// Стиль заголовков
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// Строки, требующие ручной проверки, подсвечиваются
	reviewStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create review style: %w", err)
	}

	for i, header := range CurationColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(CurationColumns))
	for rowIdx, record := range records {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), record.EntityID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), string(record.Kind))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), record.RawAliasesString())
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), record.BestMatchText)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), roundScore(record.MatchScore))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), roundScore(record.RunnerUpScore))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), record.FinalName())
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), string(record.Decision))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), JoinAliases(record.AlternativeNames))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), strings.Join(record.CanonicalTokens, " "))

		if record.Decision == DecisionNeedApproval {
			f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), reviewStyle)
		}
	}

	for i := range CurationColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 22)
	}

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

// roundedRecord копия записи с округленными оценками, исходная запись не меняется
func roundedRecord(record *CurationRecord) *CurationRecord {
	out := *record
	out.MatchScore = roundScore(record.MatchScore)
	out.RunnerUpScore = roundScore(record.RunnerUpScore)
	if record.RankedAliases != nil {
		out.RankedAliases = make([]RankedAlias, len(record.RankedAliases))
		for i, alias := range record.RankedAliases {
			alias.Score = roundScore(alias.Score)
			out.RankedAliases[i] = alias
		}
	}
	return &out
}

// roundScore округляет оценку до двух знаков после запятой
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

func formatScore(score float64) string {
	return strconv.FormatFloat(roundScore(score), 'f', 2, 64)
}
