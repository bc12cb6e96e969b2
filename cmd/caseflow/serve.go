package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/caseflow/internal/container"
	httpapi "github.com/garyjia/caseflow/internal/interfaces/http"
	"github.com/garyjia/caseflow/pkg/database"
	"github.com/garyjia/caseflow/pkg/utils"
)

func (a *cli) serveCmd() *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			return a.runContainer(cmd.Context(), cfg, false, func(ctx context.Context, c *container.Container) error {
				logger := c.Logger()
				logger.Info("Starting caseflow",
					zap.String("driver", cfg.Database.Driver),
					zap.Int("port", cfg.Server.Port),
					zap.Int("max_active_cases", cfg.Workflow.MaxActiveCases))

				server := httpapi.NewServer(
					httpapi.ServerConfig{
						Host:         cfg.Server.Host,
						Port:         cfg.Server.Port,
						ReadTimeout:  cfg.Server.ReadTimeout,
						WriteTimeout: cfg.Server.WriteTimeout,
					},
					c.Workflow(),
					c.Services().Cases,
					func() (bool, interface{}) {
						h := c.Health()
						return h.Overall, h.Components
					},
					utils.NewKeyValueLogger(logger.Named("http")),
				)
				return server.Start(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func (a *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != container.DriverSQLite {
				return fmt.Errorf("migrate needs the sqlite driver, got %s", cfg.Database.Driver)
			}

			logger, err := a.newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.NewMigrator(db, logger).RunMigrations(database.Migrations())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "applied %d migration(s) to %s\n", applied, cfg.Database.Path)
			return nil
		},
	}
}
