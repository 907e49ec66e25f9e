package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"orderly/database"
	"orderly/internal/simulate"
	"orderly/normalization"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		skus    int
		vendors int
		seed    int64
		truth   string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Сгенерировать строки заказов с опечатками и шумом",
		RunE: func(cmd *cobra.Command, args []string) error {
			if skus < 0 || vendors < 0 {
				return fmt.Errorf("--skus and --vendors must be >= 0")
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			gen := simulate.NewGenerator(seed)
			var groups []normalization.EntityGroup
			groups = append(groups, gen.SKUGroups(skus)...)
			groups = append(groups, gen.VendorGroups(vendors)...)

			// Каждая строка заказа получает свой номер заказа
			lines := simulate.LineItems(groups)
			items := make([]database.LineItem, 0, len(lines))
			for _, line := range lines {
				items = append(items, database.LineItem{
					OrderID:  uuid.NewString(),
					EntityID: line.EntityID,
					Kind:     line.Kind,
					RawText:  line.RawText,
				})
			}

			n, err := db.InsertLineItems(cmd.Context(), items)
			if err != nil {
				return err
			}

			if truth != "" {
				rows := simulate.GroundTruth(groups, time.Now().Format("2006-01-02"))
				if err := normalization.SaveSeedFile(truth, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Эталонные имена: %s\n", truth)
			}

			a.logger.Info("Simulated line items", "skus", skus, "vendors", vendors, "line_items", n, "seed", seed)
			fmt.Fprintf(cmd.OutOrStdout(), "Сгенерировано %d строк заказов (%d SKU, %d поставщиков) в %s\n",
				n, skus, vendors, a.cfg.DatabasePath)
			return nil
		},
	}

	cmd.Flags().IntVar(&skus, "skus", 100, "число товаров")
	cmd.Flags().IntVar(&vendors, "vendors", 20, "число поставщиков")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed генератора (0 - случайный)")
	cmd.Flags().StringVar(&truth, "truth", "", "CSV с эталонными именами для orderly evaluate")
	return cmd
}
