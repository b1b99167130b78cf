// treectl inspects and edits nested-set trees stored in SQLite or Postgres.
package main

import (
	"context"
	"fmt"

	"github.com/ammiranda/nestedset_service/config"
	"github.com/ammiranda/nestedset_service/repository"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	dbPath  string
	table   string
	idField string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "treectl",
		Short:         "Nested-set tree CLI",
		Long:          "treectl lists, prints and edits the trees of a nested-set node table.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to a SQLite database (default ~/.nestedset/tree.db, or DB_* settings when DB_DRIVER=postgres)")
	rootCmd.PersistentFlags().StringVar(&opts.table, "table", "folders", "node table to operate on")
	rootCmd.PersistentFlags().StringVar(&opts.idField, "id-field", "node_id", "primary key column of the node table")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage operations")

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newRootsCmd(opts),
		newShowCmd(opts),
		newAddRootCmd(opts),
		newAddCmd(opts),
		newMoveCmd(opts),
		newRemoveCmd(opts),
	)
	return rootCmd
}

// openStore opens and migrates the configured database
func (o *options) openStore(ctx context.Context) (*repository.SQLStore, error) {
	var store *repository.SQLStore
	if o.driver(ctx) == config.DriverPostgres {
		cfg, err := config.GetDatabaseConfig(ctx, config.NewEnvProvider(""))
		if err != nil {
			return nil, fmt.Errorf("failed to load database config: %w", err)
		}
		store = repository.NewStore(cfg)
	} else {
		store = repository.NewSQLiteStore(o.dbPath)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// openService opens the store and binds a service to the configured table.
// The returned func closes the store.
func (o *options) openService(ctx context.Context) (*service.TreeService, func(), error) {
	store, err := o.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	treeConfig := &config.TreeConfig{Table: o.table, IDField: o.idField}
	if err := treeConfig.Validate(); err != nil {
		store.Cleanup(ctx)
		return nil, nil, err
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			store.Cleanup(ctx)
			return nil, nil, err
		}
	}

	svc, err := service.InitRepository(store, treeConfig.Table, treeConfig.IDField, logger)
	if err != nil {
		store.Cleanup(ctx)
		return nil, nil, err
	}
	return svc, func() {
		_ = logger.Sync()
		_ = store.Cleanup(ctx)
	}, nil
}

// driver is sqlite3 unless --db is unset and DB_DRIVER names another driver
func (o *options) driver(ctx context.Context) string {
	if o.dbPath != "" {
		return config.DriverSQLite
	}
	driver, err := config.NewEnvProvider("").GetString(ctx, "DB_DRIVER")
	if err != nil {
		return config.DriverSQLite
	}
	return driver
}
