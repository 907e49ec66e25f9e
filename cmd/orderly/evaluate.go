package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"orderly/database"
	"orderly/normalization"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		truth      string
		kind       string
		thresholds []float64
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Оценить решения курирования по эталонным именам",
		Long: `Сравнивает сохраненные записи курирования с эталонным справочником
(например, созданным orderly simulate --truth) и считает precision, recall и F1
автоутверждения. С --threshold решения пересчитываются для каждого порога.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if truth == "" {
				return fmt.Errorf("--truth is required")
			}
			reference, err := normalization.LoadSeedFile(truth)
			if err != nil {
				return err
			}
			if len(reference) == 0 {
				return fmt.Errorf("no reference rows in %s", truth)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListCurationRecords(cmd.Context(), database.RecordFilter{Kind: normalization.EntityKind(kind)})
			if err != nil {
				return err
			}

			evaluator := normalization.NewEvaluator(reference)
			current := evaluator.Evaluate(records)
			sweep := evaluator.EvaluateWithThresholds(records, thresholds)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"current": current, "thresholds": sweep})
			}
			fmt.Fprintf(out, "Текущие решения:\n%s\n", current)
			for _, tm := range sweep {
				fmt.Fprintf(out, "Порог %.1f:\n%s\n", tm.Threshold, tm.Metrics)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&truth, "truth", "", "CSV справочника с эталонными именами")
	cmd.Flags().StringVar(&kind, "kind", string(normalization.EntityKindSKU), "вид сущностей")
	cmd.Flags().Float64SliceVar(&thresholds, "threshold", nil, "пороги для пересчета решений, например 70,80,90")
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывод в JSON")
	return cmd
}
