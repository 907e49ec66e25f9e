package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"orderly/database"
	"orderly/normalization"
)

func newCurateCmd(a *app) *cobra.Command {
	var (
		kind       string
		formats    []string
		exportDir  string
		candidates bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Прогон курирования по строкам заказов и выгрузка результатов",
		Long: `Загружает строки заказов из базы, группирует их по entity_id, выбирает
каноническое имя каждой сущности и выгружает записи в каталог выгрузок.

--candidates расширяет набор канонических токенов (top_m = 5), как для выгрузки
кандидатов на ручную проверку.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entityKind := normalization.EntityKind(kind)
			if !entityKind.Valid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			exportFormats := make([]normalization.ExportFormat, 0, len(formats))
			for _, f := range formats {
				format, err := normalization.ParseExportFormat(f)
				if err != nil {
					return err
				}
				exportFormats = append(exportFormats, format)
			}
			if exportDir == "" {
				exportDir = a.cfg.ExportDir
			}
			if candidates {
				a.cfg.TopMCanonicalTokens = normalization.CandidateExportOptions().TopMCanonicalTokens
			}

			engine, err := a.cfg.NewEngine(normalization.WithLogger(a.logger))
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			groups, err := db.LoadEntityGroups(ctx, entityKind)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				return fmt.Errorf("no %s line items in %s, run `orderly simulate` first", entityKind, a.cfg.DatabasePath)
			}

			result, err := normalization.NewBatchProcessor(engine, a.cfg.Workers, a.logger).Process(ctx, groups)
			if err != nil {
				return err
			}

			if !noSave {
				if _, err := db.SaveCurationRecords(ctx, result.RunID, result.Records); err != nil {
					return err
				}
				if err := db.SaveCurationRun(ctx, database.RunFromBatch(entityKind, result)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			exporter := normalization.NewExporter(exportDir)
			for _, format := range exportFormats {
				path, err := exporter.Export(entityKind, format, result.Records)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Выгрузка: %s\n", path)
			}

			if err := os.MkdirAll(exportDir, 0o755); err != nil {
				return fmt.Errorf("failed to create export dir: %w", err)
			}
			reports := normalization.NewReportGenerator(a.cfg.AutoApprovalThreshold)
			report := reports.GenerateFromBatch(result)
			reportPath := filepath.Join(exportDir, fmt.Sprintf("%s_curation_report_%s.json", entityKind, result.StartedAt.Format("20060102")))
			if err := reports.SaveToFile(report, reportPath); err != nil {
				return err
			}

			fmt.Fprintf(out, "Прогон %s: %d сущностей, AUTO %d, NEED_APPROVAL %d, ошибок %d (%.1f%% автоматически)\n",
				result.RunID, report.TotalEntities,
				report.Decisions[string(normalization.DecisionAuto)],
				report.Decisions[string(normalization.DecisionNeedApproval)],
				report.Failures, report.AutoApprovalRate)
			fmt.Fprintf(out, "Отчет: %s\n", reportPath)
			for _, failure := range result.Failures {
				fmt.Fprintf(out, "  ✗ %s: %s\n", failure.EntityID, failure.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(normalization.EntityKindSKU), "вид сущностей: sku или vendor")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"csv"}, "форматы выгрузки: csv, json, xlsx")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "каталог выгрузок (по умолчанию ORDERLY_EXPORT_DIR)")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "расширенный набор канонических токенов для ручной проверки")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "не сохранять записи в базу")
	return cmd
}
