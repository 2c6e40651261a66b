package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"

	"github.com/platinummonkey/folio/pkg/analytics"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/config"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/storage/postgres"
	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

// database is an open record store. conn routes reads to replicas when
// a connection manager is in use.
type database struct {
	dialect sqlstore.Dialect
	conn    auth.DB
	primary *sql.DB
	manager *postgres.ConnectionManager
}

func openDatabase(cfg config.StorageConfig, logger *observability.Logger) (*database, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if dialect == sqlstore.Postgres {
		cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
			PrimaryURL:  cfg.URL,
			ReplicaURLs: cfg.ReplicaURLs,
			MaxConns:    cfg.MaxConns,
			MinConns:    cfg.MinConns,
			Timeout:     cfg.Timeout,
			MaxLifetime: cfg.MaxLifetime,
			MaxIdleTime: cfg.MaxIdleTime,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &database{dialect: dialect, conn: cm, primary: cm.Primary(), manager: cm}, nil
	}

	db, err := sql.Open(dialect.DriverName(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; readers share the same handle
	db.SetMaxOpenConns(1)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &database{dialect: dialect, conn: db, primary: db}, nil
}

func (d *database) Close() error {
	if d.manager != nil {
		return d.manager.Close()
	}
	return d.primary.Close()
}

// serviceTables are the tables folio owns. CMS content tables belong to the
// CMS and are never created here.
func serviceTables(d sqlstore.Dialect) []string {
	return []string{auth.APIKeysTable(d), analytics.SearchEventsTable(d)}
}

func createServiceTables(ctx context.Context, db *database) error {
	for _, ddl := range serviceTables(db.dialect) {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// commandEnv loads configuration and opens the database for an
// administration command
func commandEnv(cmd *cobra.Command) (*config.Config, *database, *observability.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	logger := observability.NewLogger(cfg.Observability.Level(), cmd.ErrOrStderr())

	db, err := openDatabase(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, logger, nil
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the api_keys and search_events tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, logger, err := commandEnv(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := createServiceTables(cmd.Context(), db); err != nil {
				return err
			}
			logger.WithField("driver", db.dialect.String()).Info("service tables ready")
			fmt.Fprintln(cmd.OutOrStdout(), "service tables ready")
			return nil
		},
	}
}
