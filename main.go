package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/herdwise/pkg/config"

	// Store adapters register themselves with the datasource registry.
	_ "github.com/ekaya-inc/herdwise/pkg/adapters/datasource/duckdb"
	_ "github.com/ekaya-inc/herdwise/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/herdwise/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/herdwise/pkg/adapters/datasource/sqlite"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "herdwise",
	Short: "Ask questions about swine farm performance in plain language",
	Long: `herdwise answers natural-language questions about swine farm alerts.

Each question is screened for harmful content and prompt injection, classified
as a chart or text request, translated into one read-only SQL statement,
executed against the configured store, and answered with a narrative and an
optional chart specification.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, askCmd, bootstrapCmd)
}

// newLogger builds a production JSON logger, or a debug one when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
