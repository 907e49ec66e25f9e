package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"orderly/normalization"
	"orderly/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить API ручной проверки записей курирования",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			if !strings.EqualFold(a.cfg.LogLevel, "DEBUG") {
				gin.SetMode(gin.ReleaseMode)
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

			srv, err := server.NewServer(a.cfg, db, engine, a.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "порт HTTP (по умолчанию SERVER_PORT)")
	return cmd
}
