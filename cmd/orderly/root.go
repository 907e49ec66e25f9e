package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"orderly/database"
	"orderly/internal/config"
	"orderly/server"
)

// app общее состояние подкоманд, заполняется в PersistentPreRunE
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	dbPath   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "orderly",
		Short: "Orderly - курирование названий товаров и поставщиков из строк заказов",
		Long: `Orderly собирает варианты написания каждой сущности из строк заказов,
выбирает каноническое имя и решает, можно ли утвердить его автоматически.

Examples:
  orderly simulate --skus 200 --vendors 50   # Сгенерировать строки заказов
  orderly curate --format csv,xlsx           # Прогон курирования и выгрузка
  orderly seed --reviewed reviewed.csv       # Обновить справочник по проверенной выгрузке
  orderly evaluate --truth truth.csv         # Качество автоутверждения
  orderly serve                              # API ручной проверки`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.DatabasePath = a.dbPath
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.logger = server.SetupLogger(cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "путь к базе SQLite (по умолчанию ORDERLY_DATABASE_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "уровень логирования: DEBUG, INFO, WARN, ERROR")

	root.AddCommand(
		newSimulateCmd(a),
		newCurateCmd(a),
		newSeedCmd(a),
		newEvaluateCmd(a),
		newServeCmd(a),
	)
	return root
}

// openDB открывает хранилище с параметрами пула из конфигурации
func (a *app) openDB() (*database.CurationDB, error) {
	db, err := database.NewCurationDBWithConfig(a.cfg.DatabasePath, database.DBConfig{
		MaxOpenConns:    a.cfg.MaxOpenConns,
		MaxIdleConns:    a.cfg.MaxIdleConns,
		ConnMaxLifetime: a.cfg.ConnMaxLifetime,
		Retry:           database.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.cfg.DatabasePath, err)
	}
	return db, nil
}
