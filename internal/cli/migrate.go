package cli

import (
	"context"
	"errors"
	"log"

	"mock-exam-service/internal/config"
	"mock-exam-service/internal/infra/sqldb"

	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationsWithConfig(ctx, cfg)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	driver, dsn := sqldb.DriverPostgres, cfg.Postgres.URL
	if dsn == "" {
		driver, dsn = sqldb.DriverSQLite, cfg.SQLite.DSN
	}
	if dsn == "" {
		return errors.New("neither postgres.url nor sqlite.dsn is configured")
	}

	db, err := openMigrated(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("%s migrations applied", driver)
	return nil
}
