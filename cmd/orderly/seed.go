package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"orderly/database"
	"orderly/normalization"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		reviewed      string
		seedPath      string
		kind          string
		effectiveFrom string
		version       string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Обновить справочник канонических имен",
		Long: `Переносит строки с решением APPROVED и AUTO в справочник канонических имен.
Источник - проверенная выгрузка (--reviewed) или записи курирования в базе.
Утвержденные человеком имена не перезаписываются автоматическими,
версия справочника увеличивается автоматически (v0.1 -> v0.2).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedPath == "" {
				seedPath = a.cfg.SeedPath
			}
			if effectiveFrom == "" {
				effectiveFrom = time.Now().Format("2006-01-02")
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()

			var rows []normalization.ReviewedRow
			if reviewed != "" {
				file, err := os.Open(reviewed)
				if err != nil {
					return fmt.Errorf("failed to open reviewed export: %w", err)
				}
				rows, err = normalization.ReadReviewedCSV(file)
				file.Close()
				if err != nil {
					return err
				}
			} else {
				records, err := db.ListCurationRecords(ctx, database.RecordFilter{Kind: normalization.EntityKind(kind)})
				if err != nil {
					return err
				}
				rows = normalization.ReviewedFromRecords(records)
			}

			existing, err := normalization.LoadSeedFile(seedPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(version) == "" {
				version = normalization.NextSeedVersion(existing)
			}

			incoming, err := normalization.BuildSeedRows(rows, effectiveFrom, version)
			if err != nil {
				return err
			}
			merged := normalization.MergeSeed(existing, incoming)

			if err := normalization.SaveSeedFile(seedPath, merged); err != nil {
				return err
			}
			if _, err := db.UpsertSeedRows(ctx, merged); err != nil {
				return err
			}

			a.logger.Info("Seed updated", "path", seedPath, "version", version, "incoming", len(incoming), "total", len(merged))
			fmt.Fprintf(cmd.OutOrStdout(), "Справочник %s: версия %s, добавлено/обновлено %d, всего %d\n",
				seedPath, version, len(incoming), len(merged))
			return nil
		},
	}

	cmd.Flags().StringVar(&reviewed, "reviewed", "", "CSV проверенной выгрузки (entity_id, final_canonical_name, decision)")
	cmd.Flags().StringVar(&seedPath, "seed-path", "", "файл справочника (по умолчанию ORDERLY_SEED_PATH)")
	cmd.Flags().StringVar(&kind, "kind", string(normalization.EntityKindSKU), "вид сущностей при чтении из базы")
	cmd.Flags().StringVar(&effectiveFrom, "effective-from", "", "дата вступления в силу, YYYY-MM-DD (по умолчанию сегодня)")
	cmd.Flags().StringVar(&version, "version", "", "версия справочника (по умолчанию следующая)")
	return cmd
}
