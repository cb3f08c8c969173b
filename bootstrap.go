package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
	"github.com/ekaya-inc/herdwise/pkg/config"
)

var bootstrapBackend string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the swine_alert table on a store",
	Long: `bootstrap applies the embedded migrations that create swine_alert on the
selected store. Local SQLite and DuckDB files are created when missing.
Running it again is a no-op once the schema is current.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVarP(&bootstrapBackend, "backend", "b", "", "Store to bootstrap (default from config)")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return err
	}

	name := bootstrapBackend
	if name == "" {
		name = cfg.Store.Default
	}
	var backend *config.BackendConfig
	for i := range cfg.Store.Backends {
		if cfg.Store.Backends[i].Name == name {
			backend = &cfg.Store.Backends[i]
		}
	}
	if backend == nil {
		return fmt.Errorf("backend %q is not configured (have %s)", name, strings.Join(cfg.Store.BackendNames(), ", "))
	}

	ctx := cmd.Context()
	executor, err := datasource.NewQueryExecutor(ctx, backend.Type, backend.Settings(), logger)
	if err != nil {
		return err
	}
	defer executor.Close()

	loader, ok := executor.(datasource.RecordLoader)
	if !ok {
		return fmt.Errorf("backend %q (%s) cannot be bootstrapped", name, backend.Type)
	}
	if err := loader.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("create schema on %s: %w", name, err)
	}
	logger.Info("Schema ready", zap.String("backend", name), zap.String("type", backend.Type))
	return nil
}
